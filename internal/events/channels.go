package events

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
)

// fetchChannel loads a channel and the current user's membership in it.
// A channel the user cannot see yields no actions.
func (d *Dispatcher) fetchChannel(ctx context.Context, channelID string) ([]store.Action, error) {
	if channelID == "" {
		return nil, nil
	}
	ch, err := d.client.GetChannel(ctx, channelID)
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	actions := []store.Action{store.ChannelsReceived{TeamID: ch.TeamID, Channels: []*model.Channel{ch}}}

	member, err := d.client.GetChannelMember(ctx, channelID, d.store.CurrentUserID())
	if err != nil {
		return actions, ignoreNotFound(err)
	}
	actions = append(actions, store.ChannelMemberReceived{Member: member})

	roles, err := d.missingRoles(ctx, member.Roles)
	if err != nil {
		return nil, err
	}
	return append(actions, roles...), nil
}

func (d *Dispatcher) handleChannelCreated(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	channelID := ev.ChannelID()
	if _, ok := d.store.Channel(channelID); ok {
		return nil, nil
	}
	if teamID := ev.TeamID(); teamID != "" && !d.store.IsTeamMember(teamID) {
		return nil, nil
	}
	return d.fetchChannel(ctx, channelID)
}

// refetchChannel reloads a channel whose server-side shape changed in a way
// the event does not carry.
func (d *Dispatcher) refetchChannel(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	return d.fetchChannel(ctx, ev.ChannelID())
}

func (d *Dispatcher) handleChannelDeleted(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	channelID := ev.ChannelID()
	ch, ok := d.store.Channel(channelID)
	if !ok {
		return nil, nil
	}

	actions := []store.Action{store.ChannelDeleted{ChannelID: channelID, DeleteAt: ev.Int64("delete_at")}}
	if d.store.Config().Bool(model.ConfigViewArchivedChannels) {
		return actions, nil
	}
	actions = append(actions, store.ChannelLeft{ChannelID: channelID})
	if d.store.CurrentChannelID() == channelID {
		actions = append(actions, store.SelectDefaultChannel{TeamID: ch.TeamID})
	}
	return actions, nil
}

func (d *Dispatcher) handleChannelUpdated(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var ch model.Channel
	if err := ev.Decode("channel", &ch); err != nil {
		return nil, err
	}
	return []store.Action{store.ChannelsReceived{TeamID: ch.TeamID, Channels: []*model.Channel{&ch}}}, nil
}

// handleChannelConverted marks a public channel private.
func (d *Dispatcher) handleChannelConverted(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	ch, ok := d.store.Channel(ev.ChannelID())
	if !ok {
		return nil, nil
	}
	updated := *ch
	updated.Type = model.ChannelPrivate
	return []store.Action{store.ChannelsReceived{TeamID: ch.TeamID, Channels: []*model.Channel{&updated}}}, nil
}

func (d *Dispatcher) handleChannelViewed(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	return []store.Action{store.ChannelsViewed{
		ChannelIDs: []string{ev.ChannelID()},
		At:         d.now().UnixMilli(),
	}}, nil
}

func (d *Dispatcher) handleMultipleChannelsViewed(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var times map[string]int64
	if err := ev.Decode("channel_times", &times); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(times))
	for id := range times {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	actions := make([]store.Action, 0, len(ids))
	for _, id := range ids {
		actions = append(actions, store.ChannelsViewed{ChannelIDs: []string{id}, At: times[id]})
	}
	return actions, nil
}

func (d *Dispatcher) handleChannelMemberUpdated(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var member model.ChannelMember
	if err := ev.Decode("channelMember", &member); err != nil {
		return nil, err
	}
	if member.UserID != d.store.CurrentUserID() {
		return nil, nil
	}
	roles, err := d.missingRoles(ctx, member.Roles)
	if err != nil {
		return nil, err
	}
	return append(roles, store.ChannelMemberReceived{Member: &member}), nil
}

// handleDirectAdded loads a new direct or group channel and its other
// member's profile.
func (d *Dispatcher) handleDirectAdded(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	actions, err := d.fetchChannel(ctx, ev.ChannelID())
	if err != nil {
		return nil, err
	}
	profile, err := d.missingProfile(ctx, ev.String("teammate_id"))
	if err != nil {
		return nil, err
	}
	return append(actions, profile...), nil
}

// handleUserAdded covers a user joining a channel. The current user joining
// loads the channel, anyone else only their profile.
func (d *Dispatcher) handleUserAdded(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	userID := ev.UserID()
	if userID == d.store.CurrentUserID() {
		return d.fetchChannel(ctx, ev.ChannelID())
	}
	return d.missingProfile(ctx, userID)
}

// handleUserRemoved covers a user leaving a channel. Only the current
// user's memberships are cached.
func (d *Dispatcher) handleUserRemoved(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	userID := ev.UserID()
	if userID != d.store.CurrentUserID() {
		return nil, nil
	}
	channelID := ev.ChannelID()
	ch, ok := d.store.Channel(channelID)
	if !ok {
		return nil, nil
	}

	actions := []store.Action{store.ChannelLeft{ChannelID: channelID}}
	if d.store.CurrentChannelID() == channelID {
		actions = append(actions, store.SelectDefaultChannel{TeamID: ch.TeamID})
	}
	d.logger.Info("removed from channel", zap.String("channel", ch.Name))
	return actions, nil
}
