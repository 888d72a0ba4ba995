package events

import (
	"context"

	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
)

// callsUserID reads the user id of a calls plugin event.
func callsUserID(ev *model.Event) string {
	if id := ev.String("userID"); id != "" {
		return id
	}
	return ev.UserID()
}

func (d *Dispatcher) handleCallsToggled(enabled bool) HandlerFunc {
	return func(ctx context.Context, ev *model.Event) ([]store.Action, error) {
		return []store.Action{store.CallsChannelToggled{ChannelID: ev.ChannelID(), Enabled: enabled}}, nil
	}
}

func (d *Dispatcher) handleCallParticipant(joined bool) HandlerFunc {
	return func(ctx context.Context, ev *model.Event) ([]store.Action, error) {
		userID := callsUserID(ev)
		actions := []store.Action{store.CallParticipantChanged{
			ChannelID: ev.ChannelID(),
			UserID:    userID,
			Joined:    joined,
		}}
		if !joined {
			return actions, nil
		}
		profile, err := d.missingProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		return append(profile, actions...), nil
	}
}

func (d *Dispatcher) handleCallStart(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	startAt := ev.Int64("start_at")
	if startAt == 0 {
		startAt = d.now().UnixMilli()
	}
	return []store.Action{store.CallStarted{ChannelID: ev.ChannelID(), StartAt: startAt}}, nil
}

func (d *Dispatcher) handleCallEnd(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	return []store.Action{store.CallEnded{ChannelID: ev.ChannelID()}}, nil
}

// handleVoice updates the transient voice marker in place.
func (d *Dispatcher) handleVoice(on bool) HandlerFunc {
	return func(ctx context.Context, ev *model.Event) ([]store.Action, error) {
		d.store.Dispatch(store.VoiceChanged{ChannelID: ev.ChannelID(), UserID: callsUserID(ev), On: on})
		return nil, nil
	}
}
