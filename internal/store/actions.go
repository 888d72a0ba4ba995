package store

import (
	"sort"

	"github.com/dgnsrekt/chatsync/internal/model"
)

// Action is a single cache mutation. Actions are built by the sync and
// event layers and applied by Store.Dispatch.
type Action interface {
	Type() string
	apply(s *State)
}

// ConnectionChanged marks the stream connected. Connecting always clears
// the retry-failed flag.
type ConnectionChanged struct {
	At int64
}

func (ConnectionChanged) Type() string { return "WEBSOCKET_SUCCESS" }

func (a ConnectionChanged) apply(s *State) {
	s.Connection.Connected = true
	s.Connection.LastConnectAt = a.At
	s.Connection.RetryFailed = false
}

// ConnectionClosed marks the stream disconnected. LastDisconnectAt keeps the
// first drop of an outage so deltas cover the whole gap. FailCount is the
// number of consecutive failed attempts reported by the stream.
type ConnectionClosed struct {
	At          int64
	FailCount   int
	RetryFailed bool
}

func (ConnectionClosed) Type() string { return "WEBSOCKET_CLOSED" }

func (a ConnectionClosed) apply(s *State) {
	if s.Connection.Connected || s.Connection.LastDisconnectAt <= s.Connection.LastConnectAt {
		s.Connection.LastDisconnectAt = a.At
	}
	s.Connection.Connected = false
	s.Connection.RetryFailed = a.RetryFailed
}

type CurrentUserReceived struct {
	User *model.User
}

func (CurrentUserReceived) Type() string { return "RECEIVED_ME" }

func (a CurrentUserReceived) apply(s *State) {
	if a.User == nil {
		return
	}
	s.CurrentUserID = a.User.ID
	s.Users[a.User.ID] = a.User
}

type ProfilesReceived struct {
	Users []*model.User
}

func (ProfilesReceived) Type() string { return "RECEIVED_PROFILES" }

func (a ProfilesReceived) apply(s *State) {
	for _, u := range a.Users {
		if u != nil {
			s.Users[u.ID] = u
		}
	}
}

type StatusesReceived struct {
	Statuses []*model.Status
}

func (StatusesReceived) Type() string { return "RECEIVED_STATUSES" }

func (a StatusesReceived) apply(s *State) {
	for _, st := range a.Statuses {
		if st != nil {
			s.Statuses[st.UserID] = st.Status
		}
	}
}

type TeamsReceived struct {
	Teams []*model.Team
}

func (TeamsReceived) Type() string { return "RECEIVED_TEAMS" }

func (a TeamsReceived) apply(s *State) {
	for _, t := range a.Teams {
		if t != nil {
			s.Teams[t.ID] = t
		}
	}
}

// MyTeamMembersReceived replaces or merges the current user's team
// memberships. Replace drops memberships missing from the list.
type MyTeamMembersReceived struct {
	Members []*model.TeamMember
	Replace bool
}

func (MyTeamMembersReceived) Type() string { return "RECEIVED_MY_TEAM_MEMBERS" }

func (a MyTeamMembersReceived) apply(s *State) {
	if a.Replace {
		s.TeamMembers = make(map[string]*model.TeamMember, len(a.Members))
	}
	for _, m := range a.Members {
		if m == nil {
			continue
		}
		if m.DeleteAt > 0 {
			delete(s.TeamMembers, m.TeamID)
			continue
		}
		s.TeamMembers[m.TeamID] = m
	}
}

type TeamUnreadsReceived struct {
	Unreads []*model.TeamUnread
}

func (TeamUnreadsReceived) Type() string { return "RECEIVED_MY_TEAM_UNREADS" }

func (a TeamUnreadsReceived) apply(s *State) {
	for _, u := range a.Unreads {
		if u != nil {
			s.TeamUnreads[u.TeamID] = u
		}
	}
}

// TeamLeft removes a user from a team. When the user is the current user
// the team's channels are dropped and the current team is cleared.
type TeamLeft struct {
	UserID string
	TeamID string
}

func (TeamLeft) Type() string { return "LEAVE_TEAM" }

func (a TeamLeft) apply(s *State) {
	if a.UserID != s.CurrentUserID {
		return
	}
	delete(s.TeamMembers, a.TeamID)
	delete(s.TeamUnreads, a.TeamID)
	for id, ch := range s.Channels {
		if ch.TeamID == a.TeamID {
			removeChannel(s, id)
		}
	}
	if s.CurrentTeamID == a.TeamID {
		s.CurrentTeamID = ""
		s.CurrentChannelID = ""
	}
}

type TeamDeleted struct {
	TeamID string
}

func (TeamDeleted) Type() string { return "RECEIVED_TEAM_DELETED" }

func (a TeamDeleted) apply(s *State) {
	delete(s.Teams, a.TeamID)
	TeamLeft{UserID: s.CurrentUserID, TeamID: a.TeamID}.apply(s)
}

type CurrentTeamSelected struct {
	TeamID string
}

func (CurrentTeamSelected) Type() string { return "SELECT_TEAM" }

func (a CurrentTeamSelected) apply(s *State) { s.CurrentTeamID = a.TeamID }

type CurrentChannelSelected struct {
	ChannelID string
}

func (CurrentChannelSelected) Type() string { return "SELECT_CHANNEL" }

func (a CurrentChannelSelected) apply(s *State) { s.CurrentChannelID = a.ChannelID }

// SelectDefaultChannel switches to the team's default channel: town-square
// when joined, otherwise the first joined open channel by name.
type SelectDefaultChannel struct {
	TeamID string
}

func (SelectDefaultChannel) Type() string { return "SELECT_DEFAULT_CHANNEL" }

func (a SelectDefaultChannel) apply(s *State) {
	s.CurrentChannelID = defaultChannelID(s, a.TeamID)
}

// DefaultChannelName is the channel every team member belongs to.
const DefaultChannelName = "town-square"

func defaultChannelID(s *State, teamID string) string {
	var candidates []*model.Channel
	for id, ch := range s.Channels {
		if ch.TeamID != teamID || ch.DeleteAt > 0 {
			continue
		}
		if _, joined := s.ChannelMembers[id]; !joined {
			continue
		}
		if ch.Name == DefaultChannelName {
			return id
		}
		if ch.Type == model.ChannelOpen {
			candidates = append(candidates, ch)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return candidates[0].ID
}

// ChannelsReceived merges channels. With Replace set, channels of TeamID
// missing from the list are dropped.
type ChannelsReceived struct {
	TeamID   string
	Channels []*model.Channel
	Replace  bool
}

func (ChannelsReceived) Type() string { return "RECEIVED_CHANNELS" }

func (a ChannelsReceived) apply(s *State) {
	if a.Replace {
		keep := make(map[string]bool, len(a.Channels))
		for _, ch := range a.Channels {
			if ch != nil {
				keep[ch.ID] = true
			}
		}
		for id, ch := range s.Channels {
			if ch.TeamID == a.TeamID && !keep[id] {
				removeChannel(s, id)
			}
		}
	}
	for _, ch := range a.Channels {
		if ch != nil {
			s.Channels[ch.ID] = ch
		}
	}
}

// MyChannelMembersReceived merges the current user's channel memberships.
// With Replace set, memberships for channels of TeamID missing from the
// list are dropped.
type MyChannelMembersReceived struct {
	TeamID  string
	Members []*model.ChannelMember
	Replace bool
}

func (MyChannelMembersReceived) Type() string { return "RECEIVED_MY_CHANNEL_MEMBERS" }

func (a MyChannelMembersReceived) apply(s *State) {
	if a.Replace {
		keep := make(map[string]bool, len(a.Members))
		for _, m := range a.Members {
			if m != nil {
				keep[m.ChannelID] = true
			}
		}
		for id := range s.ChannelMembers {
			ch, ok := s.Channels[id]
			if ok && ch.TeamID != a.TeamID {
				continue
			}
			if !keep[id] {
				delete(s.ChannelMembers, id)
			}
		}
	}
	for _, m := range a.Members {
		if m != nil && (s.CurrentUserID == "" || m.UserID == s.CurrentUserID) {
			s.ChannelMembers[m.ChannelID] = m
		}
	}
}

type ChannelDeleted struct {
	ChannelID string
	DeleteAt  int64
}

func (ChannelDeleted) Type() string { return "RECEIVED_CHANNEL_DELETED" }

func (a ChannelDeleted) apply(s *State) {
	if ch, ok := s.Channels[a.ChannelID]; ok {
		updated := *ch
		updated.DeleteAt = a.DeleteAt
		s.Channels[a.ChannelID] = &updated
	}
}

// ChannelLeft drops the current user's membership and, unless the channel
// stays visible as archived, the channel itself.
type ChannelLeft struct {
	ChannelID string
}

func (ChannelLeft) Type() string { return "LEAVE_CHANNEL" }

func (a ChannelLeft) apply(s *State) {
	removeChannel(s, a.ChannelID)
	if s.CurrentChannelID == a.ChannelID {
		s.CurrentChannelID = ""
	}
}

func removeChannel(s *State, channelID string) {
	delete(s.ChannelMembers, channelID)
	delete(s.Channels, channelID)
	for _, postID := range s.PostsInChannel[channelID] {
		delete(s.Posts, postID)
		delete(s.Reactions, postID)
	}
	delete(s.PostsInChannel, channelID)
}

// ChannelsViewed clears unread counts for the given channels.
type ChannelsViewed struct {
	ChannelIDs []string
	At         int64
}

func (ChannelsViewed) Type() string { return "RECEIVED_CHANNELS_VIEWED" }

func (a ChannelsViewed) apply(s *State) {
	for _, id := range a.ChannelIDs {
		m, ok := s.ChannelMembers[id]
		if !ok {
			continue
		}
		updated := *m
		updated.LastViewedAt = a.At
		updated.MentionCount = 0
		if ch, ok := s.Channels[id]; ok {
			updated.MsgCount = ch.TotalMsgCount
		}
		s.ChannelMembers[id] = &updated
	}
}

// PostsReceived merges a post list into a channel's ordered posts.
type PostsReceived struct {
	ChannelID string
	List      *model.PostList
}

func (PostsReceived) Type() string { return "RECEIVED_POSTS" }

func (a PostsReceived) apply(s *State) {
	if a.List == nil {
		return
	}
	for _, p := range a.List.Posts {
		if p != nil {
			storePost(s, p)
		}
	}
}

type PostReceived struct {
	Post *model.Post
}

func (PostReceived) Type() string { return "RECEIVED_POST" }

func (a PostReceived) apply(s *State) {
	if a.Post == nil {
		return
	}
	storePost(s, a.Post)
	if ch, ok := s.Channels[a.Post.ChannelID]; ok && a.Post.CreateAt > ch.LastPostAt {
		updated := *ch
		updated.LastPostAt = a.Post.CreateAt
		updated.TotalMsgCount++
		s.Channels[ch.ID] = &updated
	}
}

// storePost inserts or replaces a post keeping PostsInChannel newest first.
func storePost(s *State, p *model.Post) {
	if p.DeleteAt > 0 {
		deletePost(s, p)
		return
	}
	_, exists := s.Posts[p.ID]
	s.Posts[p.ID] = p
	if exists {
		return
	}
	order := s.PostsInChannel[p.ChannelID]
	i := sort.Search(len(order), func(i int) bool {
		other := s.Posts[order[i]]
		return other == nil || other.CreateAt < p.CreateAt
	})
	order = append(order, "")
	copy(order[i+1:], order[i:])
	order[i] = p.ID
	s.PostsInChannel[p.ChannelID] = order
}

type PostDeleted struct {
	Post *model.Post
}

func (PostDeleted) Type() string { return "POST_DELETED" }

func (a PostDeleted) apply(s *State) {
	if a.Post != nil {
		deletePost(s, a.Post)
	}
}

func deletePost(s *State, p *model.Post) {
	delete(s.Posts, p.ID)
	delete(s.Reactions, p.ID)
	order := s.PostsInChannel[p.ChannelID]
	for i, id := range order {
		if id == p.ID {
			s.PostsInChannel[p.ChannelID] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	// Replies go with their root.
	if p.RootID == "" {
		for id, other := range s.Posts {
			if other.RootID == p.ID {
				deletePost(s, &model.Post{ID: id, ChannelID: other.ChannelID, RootID: p.ID})
			}
		}
		delete(s.Threads, p.ID)
	}
}

// ChannelMemberReceived replaces one of the current user's memberships.
type ChannelMemberReceived struct {
	Member *model.ChannelMember
}

func (ChannelMemberReceived) Type() string { return "RECEIVED_MY_CHANNEL_MEMBER" }

func (a ChannelMemberReceived) apply(s *State) {
	if a.Member != nil && a.Member.UserID == s.CurrentUserID {
		s.ChannelMembers[a.Member.ChannelID] = a.Member
	}
}

type ReactionAdded struct {
	Reaction *model.Reaction
}

func (ReactionAdded) Type() string { return "RECEIVED_REACTION" }

func (a ReactionAdded) apply(s *State) {
	r := a.Reaction
	if r == nil {
		return
	}
	if s.Reactions[r.PostID] == nil {
		s.Reactions[r.PostID] = make(map[string]*model.Reaction)
	}
	s.Reactions[r.PostID][r.UserID+"-"+r.EmojiName] = r
}

type ReactionRemoved struct {
	Reaction *model.Reaction
}

func (ReactionRemoved) Type() string { return "REACTION_DELETED" }

func (a ReactionRemoved) apply(s *State) {
	r := a.Reaction
	if r == nil {
		return
	}
	if byKey, ok := s.Reactions[r.PostID]; ok {
		delete(byKey, r.UserID+"-"+r.EmojiName)
		if len(byKey) == 0 {
			delete(s.Reactions, r.PostID)
		}
	}
}

type RolesReceived struct {
	Roles []*model.Role
}

func (RolesReceived) Type() string { return "RECEIVED_ROLES" }

func (a RolesReceived) apply(s *State) {
	for _, r := range a.Roles {
		if r != nil {
			s.Roles[r.Name] = r
		}
	}
}

type PreferencesReceived struct {
	Preferences []model.Preference
}

func (PreferencesReceived) Type() string { return "RECEIVED_PREFERENCES" }

func (a PreferencesReceived) apply(s *State) {
	for _, p := range a.Preferences {
		s.Preferences[p.Key()] = p
	}
}

type PreferencesDeleted struct {
	Preferences []model.Preference
}

func (PreferencesDeleted) Type() string { return "RECEIVED_PREFERENCES_DELETED" }

func (a PreferencesDeleted) apply(s *State) {
	for _, p := range a.Preferences {
		delete(s.Preferences, p.Key())
	}
}

type ThreadsReceived struct {
	Threads []*model.Thread
}

func (ThreadsReceived) Type() string { return "RECEIVED_THREADS" }

func (a ThreadsReceived) apply(s *State) {
	for _, th := range a.Threads {
		if th != nil {
			s.Threads[th.ID] = th
		}
	}
}

type ThreadFollowChanged struct {
	ThreadID  string
	Following bool
}

func (ThreadFollowChanged) Type() string { return "FOLLOW_CHANGED_THREAD" }

func (a ThreadFollowChanged) apply(s *State) {
	th, ok := s.Threads[a.ThreadID]
	if !ok {
		return
	}
	updated := *th
	updated.IsFollowing = a.Following
	s.Threads[a.ThreadID] = &updated
}

type ThreadRead struct {
	ThreadID       string
	LastViewedAt   int64
	UnreadReplies  int64
	UnreadMentions int64
}

func (ThreadRead) Type() string { return "READ_CHANGED_THREAD" }

func (a ThreadRead) apply(s *State) {
	th, ok := s.Threads[a.ThreadID]
	if !ok {
		return
	}
	updated := *th
	updated.LastViewedAt = a.LastViewedAt
	updated.UnreadReplies = a.UnreadReplies
	updated.UnreadMentions = a.UnreadMentions
	s.Threads[a.ThreadID] = &updated
}

type EmojiReceived struct {
	Emoji *model.Emoji
}

func (EmojiReceived) Type() string { return "RECEIVED_CUSTOM_EMOJI" }

func (a EmojiReceived) apply(s *State) {
	if a.Emoji != nil {
		s.Emojis[a.Emoji.Name] = a.Emoji
	}
}

type AppBindingsReceived struct {
	Bindings []model.AppBinding
}

func (AppBindingsReceived) Type() string { return "RECEIVED_APP_BINDINGS" }

func (a AppBindingsReceived) apply(s *State) { s.AppBindings = a.Bindings }

type ConfigReceived struct {
	Config model.ClientConfig
}

func (ConfigReceived) Type() string { return "CLIENT_CONFIG_RECEIVED" }

func (a ConfigReceived) apply(s *State) {
	if a.Config != nil {
		s.Config = a.Config
	}
}

type LicenseReceived struct {
	License map[string]string
}

func (LicenseReceived) Type() string { return "CLIENT_LICENSE_RECEIVED" }

func (a LicenseReceived) apply(s *State) {
	if a.License != nil {
		s.License = a.License
	}
}

type PluginStatusesReceived struct {
	Statuses []map[string]any
}

func (PluginStatusesReceived) Type() string { return "RECEIVED_PLUGIN_STATUSES" }

func (a PluginStatusesReceived) apply(s *State) { s.Plugins = a.Statuses }

type DialogOpened struct {
	Dialog map[string]any
}

func (DialogOpened) Type() string { return "RECEIVED_DIALOG" }

func (a DialogOpened) apply(s *State) { s.OpenDialog = a.Dialog }

type GroupReceived struct {
	Group map[string]any
}

func (GroupReceived) Type() string { return "RECEIVED_GROUP" }

func (a GroupReceived) apply(s *State) {
	if id, ok := a.Group["id"].(string); ok && id != "" {
		s.Groups[id] = a.Group
	}
}

type SidebarCategoriesReceived struct {
	Categories []*model.SidebarCategory
}

func (SidebarCategoriesReceived) Type() string { return "RECEIVED_CATEGORIES" }

func (a SidebarCategoriesReceived) apply(s *State) {
	for _, c := range a.Categories {
		if c != nil {
			s.SidebarCategories[c.ID] = c
		}
	}
}

type SidebarCategoryDeleted struct {
	CategoryID string
}

func (SidebarCategoryDeleted) Type() string { return "CATEGORY_DELETED" }

func (a SidebarCategoryDeleted) apply(s *State) {
	c, ok := s.SidebarCategories[a.CategoryID]
	if !ok {
		return
	}
	delete(s.SidebarCategories, a.CategoryID)
	order := s.CategoryOrder[c.TeamID]
	for i, id := range order {
		if id == a.CategoryID {
			s.CategoryOrder[c.TeamID] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
}

type SidebarCategoryOrder struct {
	TeamID string
	Order  []string
}

func (SidebarCategoryOrder) Type() string { return "RECEIVED_CATEGORY_ORDER" }

func (a SidebarCategoryOrder) apply(s *State) { s.CategoryOrder[a.TeamID] = a.Order }

// UserTyping records that a user started typing in a channel or thread.
type UserTyping struct {
	ChannelID string
	RootID    string
	UserID    string
	At        int64
}

func (UserTyping) Type() string { return "RECEIVED_TYPING" }

func (a UserTyping) apply(s *State) {
	key := TypingKey(a.ChannelID, a.RootID)
	if s.Typing[key] == nil {
		s.Typing[key] = make(map[string]int64)
	}
	s.Typing[key][a.UserID] = a.At
}

// UserStopTyping clears a typing marker, but only the one recorded at At.
type UserStopTyping struct {
	ChannelID string
	RootID    string
	UserID    string
	At        int64
}

func (UserStopTyping) Type() string { return "RECEIVED_STOP_TYPING" }

func (a UserStopTyping) apply(s *State) {
	key := TypingKey(a.ChannelID, a.RootID)
	users, ok := s.Typing[key]
	if !ok || users[a.UserID] != a.At {
		return
	}
	delete(users, a.UserID)
	if len(users) == 0 {
		delete(s.Typing, key)
	}
}

type VoiceChanged struct {
	ChannelID string
	UserID    string
	On        bool
}

func (VoiceChanged) Type() string { return "CALLS_USER_VOICE" }

func (a VoiceChanged) apply(s *State) {
	if a.On {
		if s.VoiceOn[a.ChannelID] == nil {
			s.VoiceOn[a.ChannelID] = make(map[string]bool)
		}
		s.VoiceOn[a.ChannelID][a.UserID] = true
		return
	}
	if users, ok := s.VoiceOn[a.ChannelID]; ok {
		delete(users, a.UserID)
		if len(users) == 0 {
			delete(s.VoiceOn, a.ChannelID)
		}
	}
}

type CallsChannelToggled struct {
	ChannelID string
	Enabled   bool
}

func (CallsChannelToggled) Type() string { return "CALLS_CHANNEL_TOGGLED" }

func (a CallsChannelToggled) apply(s *State) {
	call(s, a.ChannelID).Enabled = a.Enabled
}

type CallStarted struct {
	ChannelID string
	StartAt   int64
}

func (CallStarted) Type() string { return "CALLS_CALL_STARTED" }

func (a CallStarted) apply(s *State) {
	c := call(s, a.ChannelID)
	c.StartAt = a.StartAt
	c.Participants = make(map[string]bool)
}

type CallEnded struct {
	ChannelID string
}

func (CallEnded) Type() string { return "CALLS_CALL_ENDED" }

func (a CallEnded) apply(s *State) {
	if c, ok := s.Calls[a.ChannelID]; ok {
		c.StartAt = 0
		c.Participants = make(map[string]bool)
	}
	delete(s.VoiceOn, a.ChannelID)
}

type CallParticipantChanged struct {
	ChannelID string
	UserID    string
	Joined    bool
}

func (CallParticipantChanged) Type() string { return "CALLS_PARTICIPANT_CHANGED" }

func (a CallParticipantChanged) apply(s *State) {
	c := call(s, a.ChannelID)
	if a.Joined {
		c.Participants[a.UserID] = true
		return
	}
	delete(c.Participants, a.UserID)
	VoiceChanged{ChannelID: a.ChannelID, UserID: a.UserID}.apply(s)
}

func call(s *State, channelID string) *Call {
	c, ok := s.Calls[channelID]
	if !ok {
		c = &Call{ChannelID: channelID, Participants: make(map[string]bool)}
		s.Calls[channelID] = c
	}
	return c
}
