package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHATSYNC_SERVER_URL", "https://chat.example.com")
	t.Setenv("CHATSYNC_TOKEN", "test-token-123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected config to load from env, got error: %v", err)
	}

	if cfg.Server.Token != "test-token-123" {
		t.Errorf("expected token 'test-token-123', got '%s'", cfg.Server.Token)
	}
	if cfg.Server.Timeout() != 30*time.Second {
		t.Errorf("expected default 30s timeout, got %s", cfg.Server.Timeout())
	}
	if cfg.Stream.MaxReconnectDelay() != 5*time.Minute {
		t.Errorf("expected default 5m max reconnect delay, got %s", cfg.Stream.MaxReconnectDelay())
	}
	if cfg.Notify.Enabled {
		t.Error("expected notifications disabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got '%s'", cfg.Logging.Level)
	}
}

func TestLoadWithoutToken(t *testing.T) {
	t.Setenv("CHATSYNC_SERVER_URL", "https://chat.example.com")
	t.Setenv("CHATSYNC_TOKEN", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error when token is missing")
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("CHATSYNC_TOKEN", "file-test")
	path := filepath.Join(t.TempDir(), "chatsync.yaml")
	yaml := `
server:
  url: http://localhost:8065
  rate_per_second: 4
stream:
  ping_interval_sec: 15
notify:
  enabled: true
  topic: alerts
  alert_after_failures: 2
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%s) error: %v", path, err)
	}
	if cfg.Server.RatePerSecond != 4 {
		t.Errorf("expected rate 4, got %d", cfg.Server.RatePerSecond)
	}
	if cfg.Stream.PingInterval() != 15*time.Second {
		t.Errorf("expected 15s ping interval, got %s", cfg.Stream.PingInterval())
	}
	if !cfg.Notify.Enabled || cfg.Notify.Topic != "alerts" || cfg.Notify.AlertAfterFailures != 2 {
		t.Errorf("unexpected notify config: %+v", cfg.Notify)
	}
	if cfg.Notify.Server != "https://ntfy.sh" {
		t.Errorf("expected default ntfy server, got '%s'", cfg.Notify.Server)
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://chat.example.com", want: "wss://chat.example.com/api/v4/websocket"},
		{url: "http://localhost:8065/", want: "ws://localhost:8065/api/v4/websocket"},
		{url: "https://example.com/chat", want: "wss://example.com/chat/api/v4/websocket"},
		{url: "ftp://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ServerConfig{URL: tt.url}.WebSocketURL()
			if (err != nil) != tt.wantErr {
				t.Fatalf("WebSocketURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("WebSocketURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
