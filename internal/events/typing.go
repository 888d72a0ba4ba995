package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
)

// handleTyping records a typing marker for the open channel and schedules
// its removal after the server's typing interval. A newer marker for the
// same user and context makes the scheduled removal a no-op.
func (d *Dispatcher) handleTyping(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	channelID := ev.ChannelID()
	if channelID == "" || channelID != d.store.CurrentChannelID() {
		return nil, nil
	}
	userID := ev.UserID()
	rootID := ev.String("parent_id")
	at := d.now().UnixMilli()

	d.store.Dispatch(store.UserTyping{ChannelID: channelID, RootID: rootID, UserID: userID, At: at})

	cfg := d.store.Config()
	timeout := cfg.Millis(model.ConfigTypingUpdateInterval, model.DefaultTypingUpdateInterval)
	d.afterFunc(timeout, func() { d.stopTyping(channelID, rootID, userID, at) })

	d.async(func() { d.store.Dispatch(d.typingExtras(ctx, cfg, channelID, userID)...) })
	return nil, nil
}

func (d *Dispatcher) stopTyping(channelID, rootID, userID string, at int64) {
	current, ok := d.store.TypingAt(channelID, rootID, userID)
	if !ok || current != at {
		return
	}
	d.store.Dispatch(store.UserStopTyping{ChannelID: channelID, RootID: rootID, UserID: userID, At: at})
}

// typingExtras fetches the typist's profile and status when missing. It is
// skipped for large channels and when typing messages are disabled. It runs
// off the stream goroutine and its actions land in their own batch.
func (d *Dispatcher) typingExtras(ctx context.Context, cfg model.ClientConfig, channelID, userID string) []store.Action {
	if !cfg.Bool(model.ConfigEnableUserTyping) {
		return nil
	}
	limit := cfg.Int(model.ConfigExtraUpdateInfoMaxMember, model.DefaultExtraUpdateInfoMembers)
	if ch, ok := d.store.Channel(channelID); ok && ch.MemberCount > int64(limit) {
		return nil
	}

	actions, err := d.missingProfile(ctx, userID)
	if err != nil {
		d.logger.Debug("typing profile fetch failed", zap.String("userID", userID), zap.Error(err))
	}
	if d.store.HasStatus(userID) {
		return actions
	}
	statuses, err := d.client.GetStatusesByIDs(ctx, []string{userID})
	if err != nil {
		d.logger.Debug("typing status fetch failed", zap.String("userID", userID), zap.Error(err))
		return actions
	}
	return append(actions, store.StatusesReceived{Statuses: statuses})
}
