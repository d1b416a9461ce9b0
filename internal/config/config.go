package config

import "time"

// ClientConfig is the root configuration for a table client.
type ClientConfig struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Auth      AuthConfig      `yaml:"auth"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Transport TransportConfig `yaml:"transport"`
	Room      RoomConfig      `yaml:"room"`
	Health    HealthConfig    `yaml:"health"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the message bus endpoint.
type ServerConfig struct {
	URL    string `yaml:"url"`    // http(s) or ws(s) endpoint of the bus
	SockJS *bool  `yaml:"sockjs"` // Speak SockJS framing (default true)
	Origin string `yaml:"origin"` // Origin header for the handshake
}

// UseSockJS reports whether SockJS framing is enabled.
func (s ServerConfig) UseSockJS() bool {
	return s.SockJS == nil || *s.SockJS
}

// APIConfig holds REST API settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// AuthConfig holds session credentials.
type AuthConfig struct {
	Token     string `yaml:"token"`      // Session token; skips login when set
	TokenFile string `yaml:"token_file"` // Where the session is persisted
	Phone     string `yaml:"phone"`
	Password  string `yaml:"password"`
	MaxErrors int    `yaml:"max_errors"` // Consecutive connection errors before logout
}

// ReconnectConfig holds the backoff policy.
type ReconnectConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// HeartbeatConfig holds application-level liveness settings.
type HeartbeatConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Topic     string        `yaml:"topic"`
	AuthTopic string        `yaml:"auth_topic"`
}

// TransportConfig holds WebSocket settings.
type TransportConfig struct {
	PingInterval     time.Duration `yaml:"ping_interval"`
	PongTimeout      time.Duration `yaml:"pong_timeout"` // Silence before the socket is dropped as stale
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// RoomConfig selects the room to watch.
type RoomConfig struct {
	Code          string        `yaml:"code"`          // Room code to join (optional)
	UserID        int64         `yaml:"user_id"`       // Player id used for join/leave (default: logged-in user)
	Subscriptions []string      `yaml:"subscriptions"` // Extra topics to subscribe on every connect
	PollInterval  time.Duration `yaml:"poll_interval"` // REST snapshot interval while the bus is down
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port     int  `yaml:"port"`
	Disabled bool `yaml:"disabled"`
}

// MetricsConfig holds OpenTelemetry export settings.
type MetricsConfig struct {
	OTLPEndpoint string        `yaml:"otlp_endpoint"` // host:port; empty disables export
	Insecure     bool          `yaml:"insecure"`
	Interval     time.Duration `yaml:"interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
