package notify

import (
	"errors"
	"fmt"
)

// Config holds ntfy notification configuration.
type Config struct {
	Enabled            bool   // Whether notifications are enabled
	Server             string // ntfy server URL (default: https://ntfy.sh)
	Topic              string // Topic name (required if enabled)
	Priority           string // Message priority: min, low, default, high, urgent
	Tags               string // Comma-separated emoji tags (e.g., "speech_balloon")
	Token              string // Optional access token for private topics
	AlertAfterFailures int    // Consecutive failed connects before alerting
}

// Validate checks configuration is valid when enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Topic == "" {
		return errors.New("notify.topic is required when notify.enabled=true")
	}

	validPriorities := map[string]bool{
		"min": true, "low": true, "default": true, "high": true, "urgent": true,
	}
	if !validPriorities[c.Priority] {
		return fmt.Errorf("invalid notify.priority: %s (valid: min, low, default, high, urgent)", c.Priority)
	}

	if c.AlertAfterFailures < 1 {
		return fmt.Errorf("notify.alert_after_failures must be at least 1, got %d", c.AlertAfterFailures)
	}

	return nil
}
