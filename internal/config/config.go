package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Status  StatusConfig  `mapstructure:"status"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	URL           string `mapstructure:"url"`
	Token         string `mapstructure:"token"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelay    int    `mapstructure:"retry_delay_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
}

type StreamConfig struct {
	PingIntervalSec      int `mapstructure:"ping_interval_sec"`
	MinReconnectDelaySec int `mapstructure:"min_reconnect_delay_sec"`
	MaxReconnectDelaySec int `mapstructure:"max_reconnect_delay_sec"`
}

type CacheConfig struct {
	SnapshotPath        string `mapstructure:"snapshot_path"`
	SnapshotIntervalSec int    `mapstructure:"snapshot_interval_sec"`
}

type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type NotifyConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Server             string `mapstructure:"server"`
	Topic              string `mapstructure:"topic"`
	Priority           string `mapstructure:"priority"`
	Tags               string `mapstructure:"tags"`
	Token              string `mapstructure:"token"`
	AlertAfterFailures int    `mapstructure:"alert_after_failures"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.timeout_sec", 30)
	v.SetDefault("server.retry_count", 3)
	v.SetDefault("server.retry_delay_sec", 1)
	v.SetDefault("server.rate_per_second", 10)
	v.SetDefault("stream.ping_interval_sec", 30)
	v.SetDefault("stream.min_reconnect_delay_sec", 3)
	v.SetDefault("stream.max_reconnect_delay_sec", 300)
	v.SetDefault("cache.snapshot_path", "data/cache.json.zst")
	v.SetDefault("cache.snapshot_interval_sec", 60)
	v.SetDefault("status.enabled", true)
	v.SetDefault("status.addr", "127.0.0.1:8065")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("notify.tags", "speech_balloon")
	v.SetDefault("notify.alert_after_failures", 5)
	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("CHATSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("server.url", "CHATSYNC_SERVER_URL")
	_ = v.BindEnv("server.token", "CHATSYNC_TOKEN")
	_ = v.BindEnv("notify.topic", "CHATSYNC_NOTIFY_TOPIC")
	_ = v.BindEnv("notify.token", "CHATSYNC_NOTIFY_TOKEN")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("chatsync")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c ServerConfig) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Second
}

// WebSocketURL derives the event stream endpoint from the server URL.
func (c ServerConfig) WebSocketURL() (string, error) {
	u, err := url.Parse(strings.TrimSuffix(c.URL, "/"))
	if err != nil {
		return "", fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path += "/api/v4/websocket"
	return u.String(), nil
}

func (c StreamConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSec) * time.Second
}

func (c StreamConfig) MinReconnectDelay() time.Duration {
	return time.Duration(c.MinReconnectDelaySec) * time.Second
}

func (c StreamConfig) MaxReconnectDelay() time.Duration {
	return time.Duration(c.MaxReconnectDelaySec) * time.Second
}

func (c CacheConfig) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSec) * time.Second
}
