package events

import (
	"context"
	"fmt"

	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
)

func (d *Dispatcher) handleReactionAdded(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var r model.Reaction
	if err := ev.Decode("reaction", &r); err != nil {
		return nil, err
	}
	return []store.Action{store.ReactionAdded{Reaction: &r}}, nil
}

func (d *Dispatcher) handleReactionRemoved(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var r model.Reaction
	if err := ev.Decode("reaction", &r); err != nil {
		return nil, err
	}
	return []store.Action{store.ReactionRemoved{Reaction: &r}}, nil
}

func (d *Dispatcher) handleEmojiAdded(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var e model.Emoji
	if err := ev.Decode("emoji", &e); err != nil {
		return nil, err
	}
	return []store.Action{store.EmojiReceived{Emoji: &e}}, nil
}

func (d *Dispatcher) handleLicenseChanged(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var license map[string]string
	if err := ev.Decode("license", &license); err != nil {
		return nil, err
	}
	return []store.Action{store.LicenseReceived{License: license}}, nil
}

func (d *Dispatcher) handleConfigChanged(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var cfg model.ClientConfig
	if err := ev.Decode("config", &cfg); err != nil {
		return nil, err
	}
	return []store.Action{store.ConfigReceived{Config: cfg}}, nil
}

func (d *Dispatcher) handlePluginStatusesChanged(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var statuses []map[string]any
	if err := ev.Decode("plugin_statuses", &statuses); err != nil {
		return nil, err
	}
	return []store.Action{store.PluginStatusesReceived{Statuses: statuses}}, nil
}

func (d *Dispatcher) handleOpenDialog(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var dialog map[string]any
	if err := ev.Decode("dialog", &dialog); err != nil {
		return nil, err
	}
	return []store.Action{store.DialogOpened{Dialog: dialog}}, nil
}

func (d *Dispatcher) handleReceivedGroup(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var group map[string]any
	if err := ev.Decode("group", &group); err != nil {
		return nil, err
	}
	return []store.Action{store.GroupReceived{Group: group}}, nil
}

// handleCategoryCreated reloads the team's categories; the event only
// carries the new id.
func (d *Dispatcher) handleCategoryCreated(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	teamID := ev.TeamID()
	cats, err := d.client.GetCategories(ctx, d.store.CurrentUserID(), teamID)
	if err != nil {
		return nil, fmt.Errorf("categories of %s: %w", teamID, err)
	}
	return []store.Action{
		store.SidebarCategoriesReceived{Categories: cats.Categories},
		store.SidebarCategoryOrder{TeamID: teamID, Order: cats.Order},
	}, nil
}

func (d *Dispatcher) handleCategoryUpdated(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var cats []*model.SidebarCategory
	if err := ev.Decode("updatedCategories", &cats); err != nil {
		return nil, err
	}
	return []store.Action{store.SidebarCategoriesReceived{Categories: cats}}, nil
}

func (d *Dispatcher) handleCategoryDeleted(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	return []store.Action{store.SidebarCategoryDeleted{CategoryID: ev.String("category_id")}}, nil
}

func (d *Dispatcher) handleCategoryOrder(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var order []string
	if err := ev.Decode("order", &order); err != nil {
		return nil, err
	}
	return []store.Action{store.SidebarCategoryOrder{TeamID: ev.TeamID(), Order: order}}, nil
}

func (d *Dispatcher) handleThreadUpdated(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var th model.Thread
	if err := ev.Decode("thread", &th); err != nil {
		return nil, err
	}
	if th.TeamID == "" {
		th.TeamID = ev.TeamID()
	}
	return []store.Action{store.ThreadsReceived{Threads: []*model.Thread{&th}}}, nil
}

func (d *Dispatcher) handleThreadFollowChanged(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	return []store.Action{store.ThreadFollowChanged{
		ThreadID:  ev.String("thread_id"),
		Following: ev.Bool("state"),
	}}, nil
}

// handleThreadReadChanged applies a single thread's read state. Events
// without a thread id mark a whole team read and are left to the next
// thread refresh.
func (d *Dispatcher) handleThreadReadChanged(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	threadID := ev.String("thread_id")
	if threadID == "" {
		return nil, nil
	}
	return []store.Action{store.ThreadRead{
		ThreadID:       threadID,
		LastViewedAt:   ev.Int64("timestamp"),
		UnreadReplies:  ev.Int64("unread_replies"),
		UnreadMentions: ev.Int64("unread_mentions"),
	}}, nil
}

func (d *Dispatcher) handleAppsRefresh(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	if !d.store.Config().Bool(model.ConfigAppsEnabled) {
		return nil, nil
	}
	var userID, channelID, teamID string
	d.store.View(func(st *store.State) {
		userID, channelID, teamID = st.CurrentUserID, st.CurrentChannelID, st.CurrentTeamID
	})
	bindings, err := d.client.GetAppBindings(ctx, userID, channelID, teamID)
	if err != nil {
		return nil, fmt.Errorf("app bindings: %w", err)
	}
	return []store.Action{store.AppBindingsReceived{Bindings: bindings}}, nil
}
