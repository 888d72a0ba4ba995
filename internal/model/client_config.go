package model

import (
	"strconv"
	"time"
)

// Server client-config keys read by the sync layer.
const (
	ConfigReliableWebSockets       = "EnableReliableWebSockets"
	ConfigCollapsedThreads         = "CollapsedThreads"
	ConfigViewArchivedChannels     = "ExperimentalViewArchivedChannels"
	ConfigEnableUserTyping         = "EnableUserTypingMessages"
	ConfigTypingUpdateInterval     = "TimeBetweenUserTypingUpdatesMilliseconds"
	ConfigMaxNotificationsChannel  = "MaxNotificationsPerChannel"
	ConfigExtraUpdateInfoMaxMember = "ExtraUpdateInfoMaxChannelMembers"
	ConfigAppsEnabled              = "FeatureFlagAppsEnabled"
)

// Collapsed-thread settings. Anything other than disabled turns the mode on.
const (
	CollapsedThreadsDisabled      = "disabled"
	CollapsedThreadsDefaultOn     = "default_on"
	CollapsedThreadsDefaultOff    = "default_off"
	CollapsedThreadsAlwaysOn      = "always_on"
	DefaultTypingUpdateInterval   = 5 * time.Second
	DefaultMaxNotificationsPerChn = 1000
	DefaultExtraUpdateInfoMembers = 20
)

// ClientConfig is the server's flattened client configuration. Booleans are
// delivered as "true"/"false" strings.
type ClientConfig map[string]string

func (c ClientConfig) Bool(key string) bool {
	return c[key] == "true"
}

// Int returns the integer at key, or def if missing or malformed.
func (c ClientConfig) Int(key string, def int) int {
	v, ok := c[key]
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Millis reads key as a millisecond count.
func (c ClientConfig) Millis(key string, def time.Duration) time.Duration {
	n := c.Int(key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func (c ClientConfig) CollapsedThreadsEnabled() bool {
	v := c[ConfigCollapsedThreads]
	return v != "" && v != CollapsedThreadsDisabled
}
