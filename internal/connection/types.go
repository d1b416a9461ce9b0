package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/douniu-client/internal/clock"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// State is the lifecycle state of the Manager.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ProtocolError is reported to onError when the bus rejects the session or
// sends a frame that cannot be decoded.
type ProtocolError struct {
	Command string // STOMP command of the offending frame, empty when undecodable
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("protocol error: %v", e.Err)
	case e.Command != "":
		return fmt.Sprintf("protocol error: %s: %s", e.Command, e.Message)
	default:
		return "protocol error: " + e.Message
	}
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Message is an inbound message delivered to a subscription handler.
type Message struct {
	Topic        string // Destination the message was published to
	Subscription string // Subscription id
	MessageID    string
	Body         []byte
	Payload      any  // Decoded JSON value, or the body as a string when Raw
	Raw          bool // Body was not valid JSON
}

// Decode unmarshals the body into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Body, v)
}

// Handler handles messages for a subscription.
type Handler func(Message)

// Config configures the Manager.
type Config struct {
	URL               string          // Bus endpoint (e.g., http://localhost:8080/api/ws)
	Host              string          // STOMP host header (default: URL hostname)
	Reconnect         ReconnectPolicy // Backoff policy
	HeartbeatInterval time.Duration   // Liveness SEND interval
	HeartbeatTopic    string          // Destination for heartbeat messages
	AuthTopic         string          // Destination for the auth control message
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:               "http://localhost:8080/api/ws",
		Reconnect:         DefaultReconnectPolicy(),
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTopic:    "/app/heartbeat",
		AuthTopic:         "/app/auth",
	}
}

// Hooks observe the Manager. Every hook is optional and runs outside the
// Manager's lock.
type Hooks struct {
	OnStateChange        func(from, to State)
	OnReconnectScheduled func(attempt int, delay time.Duration)
	OnGiveUp             func(attempts int)
	OnHeartbeat          func(err error)
	OnMessage            func(topic string, raw bool)
}

// Option configures optional Manager dependencies.
type Option func(*Manager)

// WithClock replaces the wall clock used for timers.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithHooks installs instrumentation hooks.
func WithHooks(h Hooks) Option {
	return func(m *Manager) {
		m.hooks = h
	}
}
