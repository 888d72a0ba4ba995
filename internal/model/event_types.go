package model

// Websocket event tags.
const (
	EventHello = "hello"

	EventPosted      = "posted"
	EventPostEdited  = "post_edited"
	EventPostDeleted = "post_deleted"
	EventPostUnread  = "post_unread"

	EventChannelCreated         = "channel_created"
	EventChannelDeleted         = "channel_deleted"
	EventChannelRestored        = "channel_restored"
	EventChannelUpdated         = "channel_updated"
	EventChannelConverted       = "channel_converted"
	EventChannelViewed          = "channel_viewed"
	EventMultipleChannelsViewed = "multiple_channels_viewed"
	EventChannelMemberUpdated   = "channel_member_updated"
	EventChannelSchemeUpdated   = "channel_scheme_updated"
	EventDirectAdded            = "direct_added"
	EventGroupAdded             = "group_added"
	EventSidebarCategoryCreated = "sidebar_category_created"
	EventSidebarCategoryUpdated = "sidebar_category_updated"
	EventSidebarCategoryDeleted = "sidebar_category_deleted"
	EventSidebarCategoryReorder = "sidebar_category_order_updated"
	EventAddedToTeam            = "added_to_team"
	EventLeaveTeam              = "leave_team"
	EventUpdateTeam             = "update_team"
	EventDeleteTeam             = "delete_team"
	EventRestoreTeam            = "restore_team"
	EventUserAdded              = "user_added"
	EventUserRemoved            = "user_removed"
	EventUserUpdated            = "user_updated"
	EventUserRoleUpdated        = "user_role_updated"
	EventRoleUpdated            = "role_updated"
	EventMemberRoleUpdated      = "memberrole_updated"
	EventStatusChanged          = "status_change"
	EventPreferenceChanged      = "preference_changed"
	EventPreferencesChanged     = "preferences_changed"
	EventPreferencesDeleted     = "preferences_deleted"
	EventTyping                 = "typing"
	EventReactionAdded          = "reaction_added"
	EventReactionRemoved        = "reaction_removed"
	EventEmojiAdded             = "emoji_added"
	EventLicenseChanged         = "license_changed"
	EventConfigChanged          = "config_changed"
	EventPluginStatusesChanged  = "plugin_statuses_changed"
	EventOpenDialog             = "open_dialog"
	EventReceivedGroup          = "received_group"
	EventThreadUpdated          = "thread_updated"
	EventThreadFollowChanged    = "thread_follow_changed"
	EventThreadReadChanged      = "thread_read_changed"
	EventAppsRefreshBindings    = "custom_com.mattermost.apps_refresh_bindings"
	EventCallsChannelEnabled    = "custom_com.mattermost.calls_channel_enable_voice"
	EventCallsChannelDisabled   = "custom_com.mattermost.calls_channel_disable_voice"
	EventCallsUserConnected     = "custom_com.mattermost.calls_user_connected"
	EventCallsUserDisconnected  = "custom_com.mattermost.calls_user_disconnected"
	EventCallsCallStart         = "custom_com.mattermost.calls_call_start"
	EventCallsCallEnd           = "custom_com.mattermost.calls_call_end"
	EventCallsUserVoiceOn       = "custom_com.mattermost.calls_user_voice_on"
	EventCallsUserVoiceOff      = "custom_com.mattermost.calls_user_voice_off"
)
