package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Server:  ServerConfig{URL: "https://chat.example.com", Token: "tk", TimeoutSec: 30, RatePerSecond: 10},
		Stream:  StreamConfig{PingIntervalSec: 30, MinReconnectDelaySec: 3, MaxReconnectDelaySec: 300},
		Status:  StatusConfig{Enabled: true, Addr: "127.0.0.1:8065"},
		Logging: LoggingConfig{Level: "info"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no error for valid config, got: %v", err)
	}
}

func TestValidate_InvalidURL(t *testing.T) {
	cfg := validConfig()
	cfg.Server.URL = "chat.example.com"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for URL without scheme")
	}
	if !strings.Contains(err.Error(), "server.url") {
		t.Errorf("error should mention server.url, got: %v", err)
	}
}

func TestValidate_NotifyRequiresTopic(t *testing.T) {
	cfg := validConfig()
	cfg.Notify = NotifyConfig{Enabled: true, Priority: "default", AlertAfterFailures: 3}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing notify topic")
	}
	if !strings.Contains(err.Error(), "notify.topic") {
		t.Errorf("error should mention notify.topic, got: %v", err)
	}
}

func TestValidate_DisabledNotifySkipped(t *testing.T) {
	cfg := validConfig()
	cfg.Notify = NotifyConfig{Enabled: false, Priority: "loud"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled notify should not be validated, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Token = ""
	cfg.Stream.MaxReconnectDelaySec = 1
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for multiple issues")
	}

	var verrs *ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected *ValidationErrors, got %T", err)
	}
	if len(verrs.MissingKeys) != 1 || len(verrs.InvalidFields) != 2 {
		t.Errorf("expected 1 missing and 2 invalid, got %+v", verrs)
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "server.token") || !strings.Contains(errStr, "logging.level") {
		t.Errorf("error should list every problem, got: %v", err)
	}
}
