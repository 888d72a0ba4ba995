package events

import (
	"context"
	"fmt"

	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
)

// handleAddedToTeam loads a team the current user just joined along with
// its channels.
func (d *Dispatcher) handleAddedToTeam(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	teamID := ev.TeamID()
	me := d.store.CurrentUserID()
	if ev.UserID() != me || d.store.IsTeamMember(teamID) {
		return nil, nil
	}

	team, err := d.client.GetTeam(ctx, teamID)
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	members, err := d.client.GetMyTeamMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("team members: %w", err)
	}
	channels, err := d.client.GetMyChannels(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("channels of %s: %w", teamID, err)
	}
	channelMembers, err := d.client.GetMyChannelMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("channel members of %s: %w", teamID, err)
	}

	var joined []*model.TeamMember
	for _, m := range members {
		if m != nil && m.TeamID == teamID {
			joined = append(joined, m)
		}
	}

	actions := []store.Action{
		store.TeamsReceived{Teams: []*model.Team{team}},
		store.MyTeamMembersReceived{Members: joined},
		store.ChannelsReceived{TeamID: teamID, Channels: channels},
		store.MyChannelMembersReceived{TeamID: teamID, Members: channelMembers},
	}

	roleNames := make([]string, 0, len(joined)+len(channelMembers))
	for _, m := range joined {
		roleNames = append(roleNames, m.Roles)
	}
	for _, m := range channelMembers {
		if m != nil {
			roleNames = append(roleNames, m.Roles)
		}
	}
	roles, err := d.missingRoles(ctx, roleNames...)
	if err != nil {
		return nil, err
	}
	return append(actions, roles...), nil
}

func (d *Dispatcher) handleLeaveTeam(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	return []store.Action{store.TeamLeft{UserID: ev.UserID(), TeamID: ev.TeamID()}}, nil
}

func (d *Dispatcher) handleTeamUpdated(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var team model.Team
	if err := ev.Decode("team", &team); err != nil {
		return nil, err
	}
	return []store.Action{store.TeamsReceived{Teams: []*model.Team{&team}}}, nil
}

func (d *Dispatcher) handleTeamDeleted(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var team model.Team
	if err := ev.Decode("team", &team); err != nil {
		return nil, err
	}
	return []store.Action{store.TeamDeleted{TeamID: team.ID}}, nil
}
