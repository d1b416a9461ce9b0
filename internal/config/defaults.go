package config

import (
	"log/slog"
	"strings"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultServerURL         = "http://localhost:8080/api/ws"
	DefaultRestURL           = "http://localhost:8080/api"
	DefaultAPITimeout        = 10 * time.Second
	DefaultMaxRetries        = 3
	DefaultTokenFile         = ".douniu-session.json"
	DefaultMaxAuthErrors     = 3
	DefaultReconnectDelay    = 2 * time.Second
	DefaultReconnectMaxDelay = 30 * time.Second
	DefaultReconnectAttempts = 10
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTopic    = "/app/heartbeat"
	DefaultAuthTopic         = "/app/auth"
	DefaultPingInterval      = 10 * time.Second
	DefaultPongTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultRoomPollInterval  = 30 * time.Second
	DefaultHealthPort        = 8081
	DefaultMetricsInterval   = 10 * time.Second
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *ClientConfig) applyDefaults() {
	// Server defaults
	if c.Server.URL == "" {
		c.Server.URL = DefaultServerURL
	}

	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Auth defaults
	if c.Auth.TokenFile == "" {
		c.Auth.TokenFile = DefaultTokenFile
	}
	if c.Auth.MaxErrors == 0 {
		c.Auth.MaxErrors = DefaultMaxAuthErrors
	}

	// Reconnect defaults
	if c.Reconnect.InitialDelay == 0 {
		c.Reconnect.InitialDelay = DefaultReconnectDelay
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultReconnectAttempts
	}

	// Heartbeat defaults
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = DefaultHeartbeatInterval
	}
	if c.Heartbeat.Topic == "" {
		c.Heartbeat.Topic = DefaultHeartbeatTopic
	}
	if c.Heartbeat.AuthTopic == "" {
		c.Heartbeat.AuthTopic = DefaultAuthTopic
	}

	// Transport defaults
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.PongTimeout == 0 {
		// Two missed pings before the socket counts as stale.
		c.Transport.PongTimeout = max(DefaultPongTimeout, 2*c.Transport.PingInterval)
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}

	// Room defaults
	if c.Room.PollInterval == 0 {
		c.Room.PollInterval = DefaultRoomPollInterval
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}

	// Metrics defaults
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = DefaultMetricsInterval
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// SlogLevel maps the configured level onto slog. Unknown levels map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
