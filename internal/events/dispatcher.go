// Package events applies stream events to the local cache.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/api"
	"github.com/dgnsrekt/chatsync/internal/metrics"
	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
)

// HandlerFunc turns one event into the cache actions it implies. Handlers
// never touch the cache directly, apart from the transient markers.
type HandlerFunc func(ctx context.Context, ev *model.Event) ([]store.Action, error)

// AfterFunc runs fn once after d.
type AfterFunc func(d time.Duration, fn func())

// Dispatcher routes events by tag to their handler.
type Dispatcher struct {
	client api.Client
	store  *store.Store
	logger *zap.Logger

	now       func() time.Time
	afterFunc AfterFunc
	async     func(fn func())

	handlers map[string]HandlerFunc
}

func NewDispatcher(client api.Client, st *store.Store, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		client:    client,
		store:     st,
		logger:    logger,
		now:       time.Now,
		afterFunc: func(dur time.Duration, fn func()) { time.AfterFunc(dur, fn) },
		async:     func(fn func()) { go fn() },
	}
	d.handlers = map[string]HandlerFunc{
		model.EventHello: d.handleHello,

		model.EventPosted:      d.handlePosted,
		model.EventPostEdited:  d.handlePostEdited,
		model.EventPostDeleted: d.handlePostDeleted,
		model.EventPostUnread:  d.handlePostUnread,

		model.EventChannelCreated:         d.handleChannelCreated,
		model.EventChannelDeleted:         d.handleChannelDeleted,
		model.EventChannelRestored:        d.refetchChannel,
		model.EventChannelUpdated:         d.handleChannelUpdated,
		model.EventChannelConverted:       d.handleChannelConverted,
		model.EventChannelViewed:          d.handleChannelViewed,
		model.EventMultipleChannelsViewed: d.handleMultipleChannelsViewed,
		model.EventChannelMemberUpdated:   d.handleChannelMemberUpdated,
		model.EventChannelSchemeUpdated:   d.refetchChannel,
		model.EventDirectAdded:            d.handleDirectAdded,
		model.EventGroupAdded:             d.handleDirectAdded,
		model.EventUserAdded:              d.handleUserAdded,
		model.EventUserRemoved:            d.handleUserRemoved,

		model.EventSidebarCategoryCreated: d.handleCategoryCreated,
		model.EventSidebarCategoryUpdated: d.handleCategoryUpdated,
		model.EventSidebarCategoryDeleted: d.handleCategoryDeleted,
		model.EventSidebarCategoryReorder: d.handleCategoryOrder,

		model.EventAddedToTeam: d.handleAddedToTeam,
		model.EventLeaveTeam:   d.handleLeaveTeam,
		model.EventUpdateTeam:  d.handleTeamUpdated,
		model.EventDeleteTeam:  d.handleTeamDeleted,
		model.EventRestoreTeam: d.handleTeamUpdated,

		model.EventUserUpdated:       d.handleUserUpdated,
		model.EventUserRoleUpdated:   d.handleUserRoleUpdated,
		model.EventRoleUpdated:       d.handleRoleUpdated,
		model.EventMemberRoleUpdated: d.handleMemberRoleUpdated,
		model.EventStatusChanged:     d.handleStatusChanged,

		model.EventPreferenceChanged:  d.handlePreferenceChanged,
		model.EventPreferencesChanged: d.handlePreferencesChanged,
		model.EventPreferencesDeleted: d.handlePreferencesDeleted,

		model.EventTyping:          d.handleTyping,
		model.EventReactionAdded:   d.handleReactionAdded,
		model.EventReactionRemoved: d.handleReactionRemoved,
		model.EventEmojiAdded:      d.handleEmojiAdded,

		model.EventLicenseChanged:        d.handleLicenseChanged,
		model.EventConfigChanged:         d.handleConfigChanged,
		model.EventPluginStatusesChanged: d.handlePluginStatusesChanged,
		model.EventOpenDialog:            d.handleOpenDialog,
		model.EventReceivedGroup:         d.handleReceivedGroup,

		model.EventThreadUpdated:       d.handleThreadUpdated,
		model.EventThreadFollowChanged: d.handleThreadFollowChanged,
		model.EventThreadReadChanged:   d.handleThreadReadChanged,

		model.EventAppsRefreshBindings: d.handleAppsRefresh,

		model.EventCallsChannelEnabled:   d.handleCallsToggled(true),
		model.EventCallsChannelDisabled:  d.handleCallsToggled(false),
		model.EventCallsUserConnected:    d.handleCallParticipant(true),
		model.EventCallsUserDisconnected: d.handleCallParticipant(false),
		model.EventCallsCallStart:        d.handleCallStart,
		model.EventCallsCallEnd:          d.handleCallEnd,
		model.EventCallsUserVoiceOn:      d.handleVoice(true),
		model.EventCallsUserVoiceOff:     d.handleVoice(false),
	}
	return d
}

// Handles reports whether tag has a handler.
func (d *Dispatcher) Handles(tag string) bool {
	_, ok := d.handlers[tag]
	return ok
}

// Handle applies ev. Unknown tags are ignored.
func (d *Dispatcher) Handle(ctx context.Context, ev *model.Event) error {
	h, ok := d.handlers[ev.Event]
	if !ok {
		metrics.EventsTotal.WithLabelValues("other", "false").Inc()
		d.logger.Debug("ignoring unknown event", zap.String("event", ev.Event))
		return nil
	}
	metrics.EventsTotal.WithLabelValues(ev.Event, "true").Inc()

	actions, err := h(ctx, ev)
	if err != nil {
		return fmt.Errorf("handling %s: %w", ev.Event, err)
	}
	d.store.Dispatch(actions...)
	return nil
}

func (d *Dispatcher) handleHello(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	d.logger.Debug("server hello",
		zap.String("serverVersion", ev.String("server_version")),
		zap.String("connectionID", ev.String("connection_id")),
	)
	return nil, nil
}

// ignoreNotFound turns a not-found fetch into no actions.
func ignoreNotFound(err error) error {
	if errors.Is(err, api.ErrNotFound) {
		return nil
	}
	return err
}

// missingRoles fetches the roles named in roles that are not cached yet.
func (d *Dispatcher) missingRoles(ctx context.Context, roles ...string) ([]store.Action, error) {
	var missing []string
	for _, name := range store.SplitRoles(roles...) {
		if !d.store.HasRole(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	fetched, err := d.client.GetRolesByNames(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("roles %v: %w", missing, err)
	}
	return []store.Action{store.RolesReceived{Roles: fetched}}, nil
}

// missingProfile fetches a user's profile when it is not cached.
func (d *Dispatcher) missingProfile(ctx context.Context, userID string) ([]store.Action, error) {
	if userID == "" || userID == d.store.CurrentUserID() {
		return nil, nil
	}
	if _, ok := d.store.User(userID); ok {
		return nil, nil
	}
	u, err := d.client.GetUser(ctx, userID)
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	return []store.Action{store.ProfilesReceived{Users: []*model.User{u}}}, nil
}
