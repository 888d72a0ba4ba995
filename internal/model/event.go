package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Broadcast describes the audience of a websocket event.
type Broadcast struct {
	ChannelID string          `json:"channel_id,omitempty"`
	TeamID    string          `json:"team_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	OmitUsers map[string]bool `json:"omit_users,omitempty"`
}

// Event is a single message delivered over the event stream.
type Event struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Broadcast Broadcast      `json:"broadcast"`
	Seq       int64          `json:"seq"`
}

// String returns the string value at key, or "" if absent.
func (e *Event) String(key string) string {
	switch v := e.Data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the numeric value at key. String-encoded numbers are accepted.
func (e *Event) Int64(key string) int64 {
	switch v := e.Data[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func (e *Event) Bool(key string) bool {
	switch v := e.Data[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Decode unmarshals the value at key into out. The server sends several
// payloads (post, channel, user, preferences) JSON-encoded inside a string,
// so both encodings are handled.
func (e *Event) Decode(key string, out any) error {
	raw, ok := e.Data[key]
	if !ok || raw == nil {
		return fmt.Errorf("event %s: missing %q", e.Event, key)
	}

	var b []byte
	if s, ok := raw.(string); ok {
		b = []byte(s)
	} else {
		var err error
		if b, err = json.Marshal(raw); err != nil {
			return fmt.Errorf("event %s: re-encoding %q: %w", e.Event, key, err)
		}
	}

	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("event %s: decoding %q: %w", e.Event, key, err)
	}
	return nil
}

// ChannelID prefers the payload's channel_id and falls back to the broadcast.
func (e *Event) ChannelID() string {
	if id := e.String("channel_id"); id != "" {
		return id
	}
	return e.Broadcast.ChannelID
}

// TeamID prefers the payload's team_id and falls back to the broadcast.
func (e *Event) TeamID() string {
	if id := e.String("team_id"); id != "" {
		return id
	}
	return e.Broadcast.TeamID
}

// UserID prefers the payload's user_id and falls back to the broadcast.
func (e *Event) UserID() string {
	if id := e.String("user_id"); id != "" {
		return id
	}
	return e.Broadcast.UserID
}
