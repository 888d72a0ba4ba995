package model

// User is a server user profile.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	Email     string `json:"email,omitempty"`
	Roles     string `json:"roles,omitempty"`
	UpdateAt  int64  `json:"update_at,omitempty"`
	DeleteAt  int64  `json:"delete_at,omitempty"`
}

// Status is a user's presence.
type Status struct {
	UserID         string `json:"user_id"`
	Status         string `json:"status"`
	Manual         bool   `json:"manual,omitempty"`
	LastActivityAt int64  `json:"last_activity_at,omitempty"`
}

type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	UpdateAt    int64  `json:"update_at,omitempty"`
	DeleteAt    int64  `json:"delete_at,omitempty"`
}

type TeamMember struct {
	TeamID   string `json:"team_id"`
	UserID   string `json:"user_id"`
	Roles    string `json:"roles"`
	DeleteAt int64  `json:"delete_at,omitempty"`
}

type TeamUnread struct {
	TeamID           string `json:"team_id"`
	MsgCount         int64  `json:"msg_count"`
	MentionCount     int64  `json:"mention_count"`
	ThreadCount      int64  `json:"thread_count,omitempty"`
	ThreadMentionCnt int64  `json:"thread_mention_count,omitempty"`
}

// Channel types as delivered by the server.
const (
	ChannelOpen    = "O"
	ChannelPrivate = "P"
	ChannelDirect  = "D"
	ChannelGroup   = "G"
)

type Channel struct {
	ID            string `json:"id"`
	TeamID        string `json:"team_id"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	DisplayName   string `json:"display_name"`
	Header        string `json:"header,omitempty"`
	Purpose       string `json:"purpose,omitempty"`
	LastPostAt    int64  `json:"last_post_at,omitempty"`
	TotalMsgCount int64  `json:"total_msg_count,omitempty"`
	MemberCount   int64  `json:"member_count,omitempty"`
	SchemeID      string `json:"scheme_id,omitempty"`
	UpdateAt      int64  `json:"update_at,omitempty"`
	DeleteAt      int64  `json:"delete_at,omitempty"`
}

type ChannelMember struct {
	ChannelID    string            `json:"channel_id"`
	UserID       string            `json:"user_id"`
	Roles        string            `json:"roles"`
	LastViewedAt int64             `json:"last_viewed_at"`
	MsgCount     int64             `json:"msg_count"`
	MentionCount int64             `json:"mention_count"`
	NotifyProps  map[string]string `json:"notify_props,omitempty"`
	LastUpdateAt int64             `json:"last_update_at,omitempty"`
}

type Post struct {
	ID         string         `json:"id"`
	ChannelID  string         `json:"channel_id"`
	UserID     string         `json:"user_id"`
	RootID     string         `json:"root_id,omitempty"`
	Message    string         `json:"message"`
	Type       string         `json:"type,omitempty"`
	CreateAt   int64          `json:"create_at"`
	UpdateAt   int64          `json:"update_at,omitempty"`
	EditAt     int64          `json:"edit_at,omitempty"`
	DeleteAt   int64          `json:"delete_at,omitempty"`
	IsPinned   bool           `json:"is_pinned,omitempty"`
	Props      map[string]any `json:"props,omitempty"`
	ReplyCount int64          `json:"reply_count,omitempty"`
}

// PostList is the server's ordered post response.
type PostList struct {
	Order      []string         `json:"order"`
	Posts      map[string]*Post `json:"posts"`
	NextPostID string           `json:"next_post_id,omitempty"`
	PrevPostID string           `json:"prev_post_id,omitempty"`
}

type Reaction struct {
	UserID    string `json:"user_id"`
	PostID    string `json:"post_id"`
	EmojiName string `json:"emoji_name"`
	CreateAt  int64  `json:"create_at"`
}

type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type Preference struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Value    string `json:"value"`
}

// Key identifies a preference within a user's set.
func (p Preference) Key() string {
	return p.Category + "--" + p.Name
}

type Thread struct {
	ID             string `json:"id"`
	TeamID         string `json:"team_id,omitempty"`
	ReplyCount     int64  `json:"reply_count"`
	LastReplyAt    int64  `json:"last_reply_at"`
	LastViewedAt   int64  `json:"last_viewed_at"`
	UnreadReplies  int64  `json:"unread_replies"`
	UnreadMentions int64  `json:"unread_mentions"`
	IsFollowing    bool   `json:"is_following"`
}

// ThreadList is the server's paged thread response.
type ThreadList struct {
	Total   int64     `json:"total"`
	Threads []*Thread `json:"threads"`
}

type Emoji struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatorID string `json:"creator_id"`
}

// AppBinding is a location-scoped entry contributed by an integration app.
type AppBinding struct {
	AppID    string       `json:"app_id"`
	Location string       `json:"location"`
	Label    string       `json:"label,omitempty"`
	Bindings []AppBinding `json:"bindings,omitempty"`
}

// SidebarCategory groups channels in the client sidebar.
type SidebarCategory struct {
	ID          string   `json:"id"`
	TeamID      string   `json:"team_id"`
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Type        string   `json:"type"`
	ChannelIDs  []string `json:"channel_ids"`
}

// SidebarCategories is a team's full category list in display order.
type SidebarCategories struct {
	Categories []*SidebarCategory `json:"categories"`
	Order      []string           `json:"order"`
}
