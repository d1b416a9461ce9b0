package transport

import (
	"context"
	"errors"
	"fmt"
)

// Errors
var (
	ErrNotOpen        = errors.New("transport not open")
	ErrAlreadyOpened  = errors.New("transport already opened")
	ErrClosed         = errors.New("transport closed")
	ErrInvalidURL     = errors.New("invalid endpoint url")
	ErrMalformedFrame = errors.New("malformed sockjs frame")
)

// Close codes used by the WebSocket transport.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006
)

// ReadyState mirrors the lifecycle of a duplex socket.
type ReadyState int32

const (
	StateConnecting ReadyState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// CloseEvent describes how a connection ended.
type CloseEvent struct {
	Code     int
	Reason   string
	WasClean bool // Graceful close handshake (normal closure)
}

func (e CloseEvent) String() string {
	return fmt.Sprintf("code=%d reason=%q clean=%t", e.Code, e.Reason, e.WasClean)
}

// Handler receives connection events. Every connection delivers events
// from a single goroutine, so calls for one Conn never overlap.
type Handler interface {
	// OnOpen is called once the socket is ready to send.
	OnOpen()

	// OnMessage is called for every inbound text message.
	OnMessage(data []byte)

	// OnClose is called exactly once when the connection ends, including
	// when it never opened.
	OnClose(ev CloseEvent)

	// OnError reports a low-level failure together with the ready state the
	// socket was in when it happened.
	OnError(err error, state ReadyState)
}

// Conn is a single duplex session. Conn methods never invoke Handler
// callbacks synchronously.
type Conn interface {
	// Open starts connecting in the background and returns immediately.
	Open(ctx context.Context, h Handler) error

	// Send writes one text message. Fails with ErrNotOpen unless open.
	Send(data []byte) error

	// Close starts a graceful close. Safe to call more than once.
	Close(code int, reason string) error

	// ReadyState returns the current socket state.
	ReadyState() ReadyState
}

// Factory produces connectable sessions for an endpoint URL.
type Factory interface {
	New(url string) (Conn, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(url string) (Conn, error)

// New calls f(url).
func (f FactoryFunc) New(url string) (Conn, error) {
	return f(url)
}
