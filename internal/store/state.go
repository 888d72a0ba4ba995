package store

import "github.com/dgnsrekt/chatsync/internal/model"

// ConnectionState tracks the event stream lifecycle.
type ConnectionState struct {
	Connected        bool  `json:"connected"`
	LastConnectAt    int64 `json:"last_connect_at"`
	LastDisconnectAt int64 `json:"last_disconnect_at"`
	RetryFailed      bool  `json:"retry_failed"`
}

// State is the client-side cache. It is only mutated by Store.Dispatch.
type State struct {
	Connection ConnectionState `json:"connection"`

	CurrentUserID    string `json:"current_user_id"`
	CurrentTeamID    string `json:"current_team_id"`
	CurrentChannelID string `json:"current_channel_id"`

	Users    map[string]*model.User `json:"users"`
	Statuses map[string]string      `json:"statuses"`

	Teams       map[string]*model.Team       `json:"teams"`
	TeamMembers map[string]*model.TeamMember `json:"team_members"` // mine, by team id
	TeamUnreads map[string]*model.TeamUnread `json:"team_unreads"`

	Channels          map[string]*model.Channel         `json:"channels"`
	ChannelMembers    map[string]*model.ChannelMember   `json:"channel_members"` // mine, by channel id
	SidebarCategories map[string]*model.SidebarCategory `json:"sidebar_categories"`
	CategoryOrder     map[string][]string               `json:"category_order"` // by team id

	Posts          map[string]*model.Post                `json:"posts"`
	PostsInChannel map[string][]string                   `json:"posts_in_channel"` // newest first
	Reactions      map[string]map[string]*model.Reaction `json:"reactions"`        // by post id

	Roles       map[string]*model.Role      `json:"roles"`
	Preferences map[string]model.Preference `json:"preferences"`
	Threads     map[string]*model.Thread    `json:"threads"`
	Emojis      map[string]*model.Emoji     `json:"emojis"`
	AppBindings []model.AppBinding          `json:"app_bindings"`
	Groups      map[string]map[string]any   `json:"groups"`
	Config      model.ClientConfig          `json:"config"`
	License     map[string]string           `json:"license"`
	Plugins     []map[string]any            `json:"plugins"`

	// Transient markers, not persisted.
	Typing     map[string]map[string]int64 `json:"-"` // typing key -> user -> started at
	VoiceOn    map[string]map[string]bool  `json:"-"` // channel -> user
	Calls      map[string]*Call            `json:"-"`
	OpenDialog map[string]any              `json:"-"`
}

// Call is an active voice call in a channel.
type Call struct {
	ChannelID    string          `json:"channel_id"`
	Enabled      bool            `json:"enabled"`
	StartAt      int64           `json:"start_at"`
	Participants map[string]bool `json:"participants"`
}

// NewState returns an empty state with all maps allocated.
func NewState() *State {
	s := &State{}
	s.ensure()
	return s
}

func (s *State) ensure() {
	if s.Users == nil {
		s.Users = make(map[string]*model.User)
	}
	if s.Statuses == nil {
		s.Statuses = make(map[string]string)
	}
	if s.Teams == nil {
		s.Teams = make(map[string]*model.Team)
	}
	if s.TeamMembers == nil {
		s.TeamMembers = make(map[string]*model.TeamMember)
	}
	if s.TeamUnreads == nil {
		s.TeamUnreads = make(map[string]*model.TeamUnread)
	}
	if s.Channels == nil {
		s.Channels = make(map[string]*model.Channel)
	}
	if s.ChannelMembers == nil {
		s.ChannelMembers = make(map[string]*model.ChannelMember)
	}
	if s.SidebarCategories == nil {
		s.SidebarCategories = make(map[string]*model.SidebarCategory)
	}
	if s.CategoryOrder == nil {
		s.CategoryOrder = make(map[string][]string)
	}
	if s.Posts == nil {
		s.Posts = make(map[string]*model.Post)
	}
	if s.PostsInChannel == nil {
		s.PostsInChannel = make(map[string][]string)
	}
	if s.Reactions == nil {
		s.Reactions = make(map[string]map[string]*model.Reaction)
	}
	if s.Roles == nil {
		s.Roles = make(map[string]*model.Role)
	}
	if s.Preferences == nil {
		s.Preferences = make(map[string]model.Preference)
	}
	if s.Threads == nil {
		s.Threads = make(map[string]*model.Thread)
	}
	if s.Emojis == nil {
		s.Emojis = make(map[string]*model.Emoji)
	}
	if s.Groups == nil {
		s.Groups = make(map[string]map[string]any)
	}
	if s.Config == nil {
		s.Config = model.ClientConfig{}
	}
	if s.License == nil {
		s.License = make(map[string]string)
	}
	if s.Typing == nil {
		s.Typing = make(map[string]map[string]int64)
	}
	if s.VoiceOn == nil {
		s.VoiceOn = make(map[string]map[string]bool)
	}
	if s.Calls == nil {
		s.Calls = make(map[string]*Call)
	}
}

// TypingKey identifies a typing context: a channel, or a thread within it.
func TypingKey(channelID, rootID string) string {
	if rootID == "" {
		return channelID
	}
	return channelID + ":" + rootID
}
