package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if err := validateURL("server.url", c.Server.URL, "http", "https", "ws", "wss"); err != nil {
		return err
	}
	if err := validateURL("api.rest_url", c.API.RestURL, "http", "https"); err != nil {
		return err
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Auth.MaxErrors < 1 {
		return errors.New("auth.max_errors must be >= 1")
	}
	if c.Auth.Phone != "" && c.Auth.Password == "" {
		return errors.New("auth.password is required when auth.phone is set")
	}

	if c.Reconnect.InitialDelay <= 0 {
		return errors.New("reconnect.initial_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		return fmt.Errorf("reconnect.max_delay (%v) cannot be less than initial_delay (%v)",
			c.Reconnect.MaxDelay, c.Reconnect.InitialDelay)
	}
	if c.Reconnect.MaxAttempts < 1 {
		return errors.New("reconnect.max_attempts must be >= 1")
	}

	if c.Heartbeat.Interval <= 0 {
		return errors.New("heartbeat.interval must be > 0")
	}
	if c.Transport.PingInterval > 0 && c.Heartbeat.Interval <= c.Transport.PingInterval {
		return fmt.Errorf("heartbeat.interval (%v) must be longer than transport.ping_interval (%v)",
			c.Heartbeat.Interval, c.Transport.PingInterval)
	}
	if !strings.HasPrefix(c.Heartbeat.Topic, "/") || !strings.HasPrefix(c.Heartbeat.AuthTopic, "/") {
		return errors.New("heartbeat.topic and heartbeat.auth_topic must start with /")
	}

	if c.Transport.PingInterval > 0 && c.Transport.PongTimeout <= c.Transport.PingInterval {
		return fmt.Errorf("transport.pong_timeout (%v) must be longer than transport.ping_interval (%v)",
			c.Transport.PongTimeout, c.Transport.PingInterval)
	}
	if c.Transport.WriteTimeout <= 0 {
		return errors.New("transport.write_timeout must be > 0")
	}
	if c.Transport.HandshakeTimeout <= 0 {
		return errors.New("transport.handshake_timeout must be > 0")
	}

	for _, topic := range c.Room.Subscriptions {
		if !strings.HasPrefix(topic, "/") {
			return fmt.Errorf("room.subscriptions: topic %q must start with /", topic)
		}
	}
	if c.Room.UserID < 0 {
		return fmt.Errorf("room.user_id must be positive, got %d", c.Room.UserID)
	}
	if c.Room.PollInterval <= 0 {
		return errors.New("room.poll_interval must be > 0")
	}

	if !c.Health.Disabled && (c.Health.Port < 1 || c.Health.Port > 65535) {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	if c.Metrics.Interval <= 0 {
		return errors.New("metrics.interval must be > 0")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%s: missing host", field)
			}
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported scheme %q", field, u.Scheme)
}
