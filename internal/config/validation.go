package config

import (
	"fmt"
	"net/url"
	"strings"
)

// InvalidField represents a config key with an unusable value
type InvalidField struct {
	Key    string
	Value  string
	Reason string
}

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	MissingKeys   []string
	InvalidFields []InvalidField
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.MissingKeys) > 0 || len(e.InvalidFields) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	if len(e.MissingKeys) > 0 {
		sb.WriteString("\nMissing required keys:\n")
		for _, k := range e.MissingKeys {
			sb.WriteString(fmt.Sprintf("  - %s\n", k))
		}
	}

	if len(e.InvalidFields) > 0 {
		sb.WriteString("\nInvalid values:\n")
		for _, f := range e.InvalidFields {
			sb.WriteString(fmt.Sprintf("  - %s=%q (%s)\n", f.Key, f.Value, f.Reason))
		}
	}

	return sb.String()
}

func (e *ValidationErrors) missing(key string) {
	e.MissingKeys = append(e.MissingKeys, key)
}

func (e *ValidationErrors) invalid(key string, value any, reason string) {
	e.InvalidFields = append(e.InvalidFields, InvalidField{Key: key, Value: fmt.Sprint(value), Reason: reason})
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if c.Server.URL == "" {
		errs.missing("server.url (set CHATSYNC_SERVER_URL)")
	} else if u, err := url.Parse(c.Server.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.invalid("server.url", c.Server.URL, "must be an http or https URL")
	}
	if c.Server.Token == "" {
		errs.missing("server.token (set CHATSYNC_TOKEN)")
	}
	if c.Server.TimeoutSec < 1 {
		errs.invalid("server.timeout_sec", c.Server.TimeoutSec, "must be >= 1")
	}
	if c.Server.RetryCount < 0 {
		errs.invalid("server.retry_count", c.Server.RetryCount, "must be >= 0")
	}
	if c.Server.RatePerSecond < 1 {
		errs.invalid("server.rate_per_second", c.Server.RatePerSecond, "must be >= 1")
	}

	if c.Stream.PingIntervalSec < 1 {
		errs.invalid("stream.ping_interval_sec", c.Stream.PingIntervalSec, "must be >= 1")
	}
	if c.Stream.MaxReconnectDelaySec < c.Stream.MinReconnectDelaySec {
		errs.invalid("stream.max_reconnect_delay_sec", c.Stream.MaxReconnectDelaySec,
			fmt.Sprintf("must be >= stream.min_reconnect_delay_sec (%d)", c.Stream.MinReconnectDelaySec))
	}

	if c.Status.Enabled && c.Status.Addr == "" {
		errs.missing("status.addr")
	}

	if c.Notify.Enabled {
		if c.Notify.Topic == "" {
			errs.missing("notify.topic (set CHATSYNC_NOTIFY_TOPIC)")
		}
		if !ValidPriorities[c.Notify.Priority] {
			errs.invalid("notify.priority", c.Notify.Priority, "valid: min, low, default, high, urgent")
		}
		if c.Notify.AlertAfterFailures < 1 {
			errs.invalid("notify.alert_after_failures", c.Notify.AlertAfterFailures, "must be >= 1")
		}
	}

	if !ValidLogLevels[c.Logging.Level] {
		errs.invalid("logging.level", c.Logging.Level, "valid: debug, info, warn, error")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
