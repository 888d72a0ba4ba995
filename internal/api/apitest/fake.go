// Package apitest provides an in-memory api.Client for tests.
package apitest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dgnsrekt/chatsync/internal/api"
	"github.com/dgnsrekt/chatsync/internal/model"
)

// Fake serves canned responses and records every call as
// "Method arg1 arg2 ...". Errors are injected per method name.
type Fake struct {
	mu sync.Mutex

	Me             *model.User
	Teams          []*model.Team
	TeamMembers    []*model.TeamMember
	TeamUnreads    []*model.TeamUnread
	Preferences    []model.Preference
	Roles          map[string]*model.Role
	Users          map[string]*model.User
	Statuses       map[string]*model.Status
	Channels       map[string][]*model.Channel // by team id
	ChannelMembers map[string][]*model.ChannelMember
	Posts          map[string]*model.PostList // by channel id
	Threads        *model.ThreadList
	Config         model.ClientConfig
	Bindings       []model.AppBinding
	Emojis         map[string]*model.Emoji
	Categories     map[string]*model.SidebarCategories // by team id

	Errors map[string]error

	calls []string
}

var _ api.Client = (*Fake)(nil)

func NewFake() *Fake {
	return &Fake{
		Roles:          make(map[string]*model.Role),
		Users:          make(map[string]*model.User),
		Statuses:       make(map[string]*model.Status),
		Channels:       make(map[string][]*model.Channel),
		ChannelMembers: make(map[string][]*model.ChannelMember),
		Posts:          make(map[string]*model.PostList),
		Config:         model.ClientConfig{},
		Emojis:         make(map[string]*model.Emoji),
		Categories:     make(map[string]*model.SidebarCategories),
		Errors:         make(map[string]error),
	}
}

// Calls returns the recorded calls in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Called returns the recorded calls to method.
func (f *Fake) Called(method string) []string {
	var out []string
	for _, c := range f.Calls() {
		if c == method || strings.HasPrefix(c, method+" ") {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(method string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := method
	for _, a := range args {
		call += " " + fmt.Sprint(a)
	}
	f.calls = append(f.calls, call)
	return f.Errors[method]
}

func (f *Fake) GetMe(ctx context.Context) (*model.User, error) {
	if err := f.record("GetMe"); err != nil {
		return nil, err
	}
	if f.Me == nil {
		return nil, api.ErrNotFound
	}
	return f.Me, nil
}

func (f *Fake) GetMyTeams(ctx context.Context) ([]*model.Team, error) {
	if err := f.record("GetMyTeams"); err != nil {
		return nil, err
	}
	return f.Teams, nil
}

func (f *Fake) GetMyTeamMembers(ctx context.Context) ([]*model.TeamMember, error) {
	if err := f.record("GetMyTeamMembers"); err != nil {
		return nil, err
	}
	return f.TeamMembers, nil
}

func (f *Fake) GetMyTeamUnreads(ctx context.Context) ([]*model.TeamUnread, error) {
	if err := f.record("GetMyTeamUnreads"); err != nil {
		return nil, err
	}
	return f.TeamUnreads, nil
}

func (f *Fake) GetMyPreferences(ctx context.Context) ([]model.Preference, error) {
	if err := f.record("GetMyPreferences"); err != nil {
		return nil, err
	}
	return f.Preferences, nil
}

func (f *Fake) GetRolesByNames(ctx context.Context, names []string) ([]*model.Role, error) {
	if err := f.record("GetRolesByNames", names); err != nil {
		return nil, err
	}
	var roles []*model.Role
	for _, n := range names {
		if r, ok := f.Roles[n]; ok {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

func (f *Fake) GetProfilesByIDs(ctx context.Context, ids []string, since int64) ([]*model.User, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	if err := f.record("GetProfilesByIDs", sorted, since); err != nil {
		return nil, err
	}
	var users []*model.User
	for _, id := range sorted {
		if u, ok := f.Users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (f *Fake) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if err := f.record("GetUser", userID); err != nil {
		return nil, err
	}
	if u, ok := f.Users[userID]; ok {
		return u, nil
	}
	return nil, api.ErrNotFound
}

func (f *Fake) GetStatusesByIDs(ctx context.Context, ids []string) ([]*model.Status, error) {
	if err := f.record("GetStatusesByIDs", ids); err != nil {
		return nil, err
	}
	var statuses []*model.Status
	for _, id := range ids {
		if s, ok := f.Statuses[id]; ok {
			statuses = append(statuses, s)
		}
	}
	return statuses, nil
}

func (f *Fake) GetTeam(ctx context.Context, teamID string) (*model.Team, error) {
	if err := f.record("GetTeam", teamID); err != nil {
		return nil, err
	}
	for _, t := range f.Teams {
		if t.ID == teamID {
			return t, nil
		}
	}
	return nil, api.ErrNotFound
}

func (f *Fake) GetMyChannels(ctx context.Context, teamID string) ([]*model.Channel, error) {
	if err := f.record("GetMyChannels", teamID); err != nil {
		return nil, err
	}
	return f.Channels[teamID], nil
}

func (f *Fake) GetMyChannelMembers(ctx context.Context, teamID string) ([]*model.ChannelMember, error) {
	if err := f.record("GetMyChannelMembers", teamID); err != nil {
		return nil, err
	}
	return f.ChannelMembers[teamID], nil
}

func (f *Fake) GetChannel(ctx context.Context, channelID string) (*model.Channel, error) {
	if err := f.record("GetChannel", channelID); err != nil {
		return nil, err
	}
	for _, channels := range f.Channels {
		for _, ch := range channels {
			if ch.ID == channelID {
				return ch, nil
			}
		}
	}
	return nil, api.ErrNotFound
}

func (f *Fake) GetChannelMember(ctx context.Context, channelID, userID string) (*model.ChannelMember, error) {
	if err := f.record("GetChannelMember", channelID, userID); err != nil {
		return nil, err
	}
	for _, members := range f.ChannelMembers {
		for _, m := range members {
			if m.ChannelID == channelID && m.UserID == userID {
				return m, nil
			}
		}
	}
	return nil, api.ErrNotFound
}

func (f *Fake) GetCategories(ctx context.Context, userID, teamID string) (*model.SidebarCategories, error) {
	if err := f.record("GetCategories", userID, teamID); err != nil {
		return nil, err
	}
	if cats, ok := f.Categories[teamID]; ok {
		return cats, nil
	}
	return &model.SidebarCategories{}, nil
}

func (f *Fake) GetPostsSince(ctx context.Context, channelID string, since int64) (*model.PostList, error) {
	if err := f.record("GetPostsSince", channelID, since); err != nil {
		return nil, err
	}
	if list, ok := f.Posts[channelID]; ok {
		return list, nil
	}
	return &model.PostList{Posts: map[string]*model.Post{}}, nil
}

func (f *Fake) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	if err := f.record("GetPost", postID); err != nil {
		return nil, err
	}
	for _, list := range f.Posts {
		if p, ok := list.Posts[postID]; ok {
			return p, nil
		}
	}
	return nil, api.ErrNotFound
}

func (f *Fake) GetThreads(ctx context.Context, userID, teamID string, since int64) (*model.ThreadList, error) {
	if err := f.record("GetThreads", userID, teamID, since); err != nil {
		return nil, err
	}
	if f.Threads == nil {
		return &model.ThreadList{}, nil
	}
	return f.Threads, nil
}

func (f *Fake) GetThread(ctx context.Context, userID, teamID, threadID string) (*model.Thread, error) {
	if err := f.record("GetThread", userID, teamID, threadID); err != nil {
		return nil, err
	}
	if f.Threads != nil {
		for _, th := range f.Threads.Threads {
			if th.ID == threadID {
				return th, nil
			}
		}
	}
	return nil, api.ErrNotFound
}

func (f *Fake) GetClientConfig(ctx context.Context) (model.ClientConfig, error) {
	if err := f.record("GetClientConfig"); err != nil {
		return nil, err
	}
	return f.Config, nil
}

func (f *Fake) GetAppBindings(ctx context.Context, userID, channelID, teamID string) ([]model.AppBinding, error) {
	if err := f.record("GetAppBindings", userID, channelID, teamID); err != nil {
		return nil, err
	}
	return f.Bindings, nil
}

func (f *Fake) GetCustomEmoji(ctx context.Context, emojiID string) (*model.Emoji, error) {
	if err := f.record("GetCustomEmoji", emojiID); err != nil {
		return nil, err
	}
	if e, ok := f.Emojis[emojiID]; ok {
		return e, nil
	}
	return nil, api.ErrNotFound
}
