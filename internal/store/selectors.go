package store

import (
	"sort"
	"strings"

	"github.com/dgnsrekt/chatsync/internal/model"
)

func (s *Store) Connection() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Connection
}

func (s *Store) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentUserID
}

func (s *Store) CurrentTeamID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentTeamID
}

func (s *Store) CurrentChannelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentChannelID
}

// Config returns the last received server client config.
func (s *Store) Config() model.ClientConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := make(model.ClientConfig, len(s.state.Config))
	for k, v := range s.state.Config {
		cfg[k] = v
	}
	return cfg
}

// KnownUserIDs returns every cached user id, sorted.
func (s *Store) KnownUserIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.state.Users))
	for id := range s.state.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) User(id string) (*model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.Users[id]
	return u, ok
}

func (s *Store) HasStatus(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.Statuses[userID]
	return ok
}

func (s *Store) Channel(id string) (*model.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.state.Channels[id]
	return ch, ok
}

func (s *Store) MyChannelMember(channelID string) (*model.ChannelMember, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.state.ChannelMembers[channelID]
	return m, ok
}

func (s *Store) Post(id string) (*model.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.Posts[id]
	return p, ok
}

func (s *Store) Team(id string) (*model.Team, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.Teams[id]
	return t, ok
}

func (s *Store) IsTeamMember(teamID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.TeamMembers[teamID]
	return ok
}

func (s *Store) Thread(id string) (*model.Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.state.Threads[id]
	return th, ok
}

// LastPostAt returns the newest cached post time in a channel, or 0.
func (s *Store) LastPostAt(channelID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.state.PostsInChannel[channelID] {
		if p, ok := s.state.Posts[id]; ok {
			return p.CreateAt
		}
	}
	return 0
}

// TypingAt returns when the user's current typing marker was recorded.
func (s *Store) TypingAt(channelID, rootID, userID string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.state.Typing[TypingKey(channelID, rootID)][userID]
	return at, ok
}

// RoleNames collects every role named by the current user's profile and
// memberships.
func (s *Store) RoleNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := make(map[string]bool)
	if me, ok := s.state.Users[s.state.CurrentUserID]; ok {
		addRoles(set, me.Roles)
	}
	for _, m := range s.state.TeamMembers {
		addRoles(set, m.Roles)
	}
	for _, m := range s.state.ChannelMembers {
		addRoles(set, m.Roles)
	}
	return sortedKeys(set)
}

// HasRole reports whether a role is already cached.
func (s *Store) HasRole(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.Roles[name]
	return ok
}

// Counts summarizes cache contents.
type Counts struct {
	Users    int `json:"users"`
	Teams    int `json:"teams"`
	Channels int `json:"channels"`
	Posts    int `json:"posts"`
	Threads  int `json:"threads"`
	Roles    int `json:"roles"`
}

func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Counts()
}

func (st *State) Counts() Counts {
	return Counts{
		Users:    len(st.Users),
		Teams:    len(st.Teams),
		Channels: len(st.Channels),
		Posts:    len(st.Posts),
		Threads:  len(st.Threads),
		Roles:    len(st.Roles),
	}
}

func addRoles(set map[string]bool, roles string) {
	for _, r := range strings.Fields(roles) {
		set[r] = true
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SplitRoles splits a space-separated role list into names.
func SplitRoles(roles ...string) []string {
	set := make(map[string]bool)
	for _, r := range roles {
		addRoles(set, r)
	}
	return sortedKeys(set)
}
