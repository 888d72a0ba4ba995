package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/model"
	"github.com/dgnsrekt/chatsync/internal/store"
)

func (d *Dispatcher) handlePosted(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var post model.Post
	if err := ev.Decode("post", &post); err != nil {
		return nil, err
	}

	var actions []store.Action

	// A first message in a new direct or group channel arrives before any
	// channel event.
	// The post is cached even when these lookups fail.
	if _, ok := d.store.Channel(post.ChannelID); !ok {
		fetched, err := d.fetchChannel(ctx, post.ChannelID)
		if err != nil {
			d.logger.Warn("channel of new post not loaded",
				zap.String("channelID", post.ChannelID),
				zap.String("postID", post.ID),
				zap.Error(err),
			)
		}
		actions = append(actions, fetched...)
	}

	profile, err := d.missingProfile(ctx, post.UserID)
	if err != nil {
		d.logger.Debug("author of new post not loaded", zap.String("userID", post.UserID), zap.Error(err))
	}
	actions = append(actions, profile...)
	actions = append(actions, store.PostReceived{Post: &post})

	// Posting ends the author's typing indicator.
	if at, ok := d.store.TypingAt(post.ChannelID, post.RootID, post.UserID); ok {
		actions = append(actions, store.UserStopTyping{
			ChannelID: post.ChannelID,
			RootID:    post.RootID,
			UserID:    post.UserID,
			At:        at,
		})
	}
	return actions, nil
}

func (d *Dispatcher) handlePostEdited(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var post model.Post
	if err := ev.Decode("post", &post); err != nil {
		return nil, err
	}
	return []store.Action{store.PostsReceived{
		ChannelID: post.ChannelID,
		List:      &model.PostList{Order: []string{post.ID}, Posts: map[string]*model.Post{post.ID: &post}},
	}}, nil
}

func (d *Dispatcher) handlePostDeleted(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	var post model.Post
	if err := ev.Decode("post", &post); err != nil {
		return nil, err
	}
	return []store.Action{store.PostDeleted{Post: &post}}, nil
}

// handlePostUnread rewinds the current user's read state of a channel.
func (d *Dispatcher) handlePostUnread(ctx context.Context, ev *model.Event) ([]store.Action, error) {
	member, ok := d.store.MyChannelMember(ev.ChannelID())
	if !ok {
		return nil, nil
	}
	updated := *member
	updated.LastViewedAt = ev.Int64("last_viewed_at")
	updated.MsgCount = ev.Int64("msg_count")
	updated.MentionCount = ev.Int64("mention_count")
	return []store.Action{store.ChannelMemberReceived{Member: &updated}}, nil
}
