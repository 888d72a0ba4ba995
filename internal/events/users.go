package events

import (
	"context"

	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
)

func (d *Dispatcher) handleUserUpdated(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var user model.User
	if err := ev.Decode("user", &user); err != nil {
		return nil, err
	}
	if user.ID == d.store.CurrentUserID() {
		return []store.Action{store.CurrentUserReceived{User: &user}}, nil
	}
	return []store.Action{store.ProfilesReceived{Users: []*model.User{&user}}}, nil
}

// handleUserRoleUpdated applies new system roles of the current user.
func (d *Dispatcher) handleUserRoleUpdated(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	me, ok := d.store.User(ev.UserID())
	if !ok || me.ID != d.store.CurrentUserID() {
		return nil, nil
	}
	updated := *me
	updated.Roles = ev.String("roles")

	actions, err := d.missingRoles(ctx, updated.Roles)
	if err != nil {
		return nil, err
	}
	return append(actions, store.CurrentUserReceived{User: &updated}), nil
}

func (d *Dispatcher) handleRoleUpdated(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var role model.Role
	if err := ev.Decode("role", &role); err != nil {
		return nil, err
	}
	return []store.Action{store.RolesReceived{Roles: []*model.Role{&role}}}, nil
}

// handleMemberRoleUpdated applies new team roles of the current user.
func (d *Dispatcher) handleMemberRoleUpdated(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var member model.TeamMember
	if err := ev.Decode("member", &member); err != nil {
		return nil, err
	}
	if member.UserID != d.store.CurrentUserID() {
		return nil, nil
	}
	actions, err := d.missingRoles(ctx, member.Roles)
	if err != nil {
		return nil, err
	}
	return append(actions, store.MyTeamMembersReceived{Members: []*model.TeamMember{&member}}), nil
}

func (d *Dispatcher) handleStatusChanged(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	return []store.Action{store.StatusesReceived{Statuses: []*model.Status{{
		UserID: ev.UserID(),
		Status: ev.String("status"),
	}}}}, nil
}

func (d *Dispatcher) handlePreferenceChanged(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var pref model.Preference
	if err := ev.Decode("preference", &pref); err != nil {
		return nil, err
	}
	return []store.Action{store.PreferencesReceived{Preferences: []model.Preference{pref}}}, nil
}

func (d *Dispatcher) handlePreferencesChanged(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var prefs []model.Preference
	if err := ev.Decode("preferences", &prefs); err != nil {
		return nil, err
	}
	return []store.Action{store.PreferencesReceived{Preferences: prefs}}, nil
}

func (d *Dispatcher) handlePreferencesDeleted(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var prefs []model.Preference
	if err := ev.Decode("preferences", &prefs); err != nil {
		return nil, err
	}
	return []store.Action{store.PreferencesDeleted{Preferences: prefs}}, nil
}
