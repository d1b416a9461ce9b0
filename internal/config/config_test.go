package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
server:
  url: https://douniu.example.com/api/ws
  sockjs: false
api:
  rest_url: https://douniu.example.com/api
auth:
  phone: "13800000000"
  password: secret
room:
  code: ABC123
  user_id: 42
  subscriptions:
    - /user/queue/message
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.URL != "https://douniu.example.com/api/ws" {
		t.Errorf("Server.URL = %q, want %q", cfg.Server.URL, "https://douniu.example.com/api/ws")
	}
	if cfg.Server.UseSockJS() {
		t.Error("Server.UseSockJS() = true, want false")
	}
	if cfg.Auth.Phone != "13800000000" {
		t.Errorf("Auth.Phone = %q, want %q", cfg.Auth.Phone, "13800000000")
	}
	if cfg.Room.UserID != 42 {
		t.Errorf("Room.UserID = %d, want 42", cfg.Room.UserID)
	}
	if len(cfg.Room.Subscriptions) != 1 || cfg.Room.Subscriptions[0] != "/user/queue/message" {
		t.Errorf("Room.Subscriptions = %v", cfg.Room.Subscriptions)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DOUNIU_PASSWORD", "secret123")

	yaml := `
auth:
  phone: "13800000000"
  password: ${TEST_DOUNIU_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.Password != "secret123" {
		t.Errorf("Auth.Password = %q, want %q", cfg.Auth.Password, "secret123")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempFile(t, "server: [unclosed")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Fatalf("Load error = %v, want parse error", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "log:\n  level: debug\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Server.URL != DefaultServerURL {
		t.Errorf("Server.URL = %q, want default %q", cfg.Server.URL, DefaultServerURL)
	}
	if !cfg.Server.UseSockJS() {
		t.Error("Server.UseSockJS() = false, want default true")
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.Reconnect.InitialDelay != 2*time.Second || cfg.Reconnect.MaxDelay != 30*time.Second || cfg.Reconnect.MaxAttempts != 10 {
		t.Errorf("Reconnect = %+v, want 2s/30s/10", cfg.Reconnect)
	}
	if cfg.Heartbeat.Interval != DefaultHeartbeatInterval {
		t.Errorf("Heartbeat.Interval = %v, want default %v", cfg.Heartbeat.Interval, DefaultHeartbeatInterval)
	}
	if cfg.Heartbeat.Topic != "/app/heartbeat" || cfg.Heartbeat.AuthTopic != "/app/auth" {
		t.Errorf("Heartbeat topics = %q, %q", cfg.Heartbeat.Topic, cfg.Heartbeat.AuthTopic)
	}
	if cfg.Transport.PongTimeout != DefaultPongTimeout {
		t.Errorf("Transport.PongTimeout = %v, want default %v", cfg.Transport.PongTimeout, DefaultPongTimeout)
	}
	if cfg.Room.PollInterval != DefaultRoomPollInterval {
		t.Errorf("Room.PollInterval = %v, want default %v", cfg.Room.PollInterval, DefaultRoomPollInterval)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want default %d", cfg.Health.Port, DefaultHealthPort)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (explicit value kept)", cfg.Log.Level, "debug")
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("Log.SlogLevel() = %v, want debug", cfg.Log.SlogLevel())
	}
}

func TestPongTimeoutFollowsPingInterval(t *testing.T) {
	path := writeTempFile(t, "transport:\n  ping_interval: 40s\nheartbeat:\n  interval: 60s\n")

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Transport.PongTimeout != 80*time.Second {
		t.Errorf("Transport.PongTimeout = %v, want %v", cfg.Transport.PongTimeout, 80*time.Second)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "reconnect:\n  initial_delay: 10s\n  max_delay: 5s\n")

	_, err := LoadAndValidate(path)
	if err == nil || !strings.HasPrefix(err.Error(), "validate config: reconnect.max_delay") {
		t.Fatalf("LoadAndValidate error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ClientConfig)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*ClientConfig) {},
			wantErr: "",
		},
		{
			name:    "bad server scheme",
			mutate:  func(c *ClientConfig) { c.Server.URL = "ftp://localhost/ws" },
			wantErr: `server.url: unsupported scheme "ftp"`,
		},
		{
			name:    "missing rest url host",
			mutate:  func(c *ClientConfig) { c.API.RestURL = "http:///api" },
			wantErr: "api.rest_url: missing host",
		},
		{
			name:    "phone without password",
			mutate:  func(c *ClientConfig) { c.Auth.Phone = "13800000000" },
			wantErr: "auth.password is required when auth.phone is set",
		},
		{
			name: "max delay below initial",
			mutate: func(c *ClientConfig) {
				c.Reconnect.InitialDelay = 10 * time.Second
				c.Reconnect.MaxDelay = 5 * time.Second
			},
			wantErr: "reconnect.max_delay (5s) cannot be less than initial_delay (10s)",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *ClientConfig) { c.Reconnect.MaxAttempts = -1 },
			wantErr: "reconnect.max_attempts must be >= 1",
		},
		{
			name:    "heartbeat not longer than ping",
			mutate:  func(c *ClientConfig) { c.Heartbeat.Interval = 10 * time.Second },
			wantErr: "heartbeat.interval (10s) must be longer than transport.ping_interval (10s)",
		},
		{
			name: "pong timeout not longer than ping",
			mutate: func(c *ClientConfig) {
				c.Transport.PingInterval = 40 * time.Second
				c.Heartbeat.Interval = 60 * time.Second
				c.Transport.PongTimeout = 30 * time.Second
			},
			wantErr: "transport.pong_timeout (30s) must be longer than transport.ping_interval (40s)",
		},
		{
			name:    "relative subscription",
			mutate:  func(c *ClientConfig) { c.Room.Subscriptions = []string{"topic/x"} },
			wantErr: `room.subscriptions: topic "topic/x" must start with /`,
		},
		{
			name:    "room without user uses session",
			mutate:  func(c *ClientConfig) { c.Room.Code = "ABC123" },
			wantErr: "",
		},
		{
			name:    "negative user id",
			mutate:  func(c *ClientConfig) { c.Room.UserID = -5 },
			wantErr: "room.user_id must be positive, got -5",
		},
		{
			name:    "negative poll interval",
			mutate:  func(c *ClientConfig) { c.Room.PollInterval = -time.Second },
			wantErr: "room.poll_interval must be > 0",
		},
		{
			name:    "health port out of range",
			mutate:  func(c *ClientConfig) { c.Health.Port = 70000 },
			wantErr: "health.port must be between 1 and 65535, got 70000",
		},
		{
			name: "health disabled ignores port",
			mutate: func(c *ClientConfig) {
				c.Health.Disabled = true
				c.Health.Port = -1
			},
			wantErr: "",
		},
		{
			name:    "bad log format",
			mutate:  func(c *ClientConfig) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
