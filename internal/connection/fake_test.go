package connection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rickgao/douniu-client/internal/clock"
	"github.com/rickgao/douniu-client/internal/stomp"
	"github.com/rickgao/douniu-client/internal/transport"
)

// fakeConn is a scripted transport.Conn. Tests drive server-side events
// explicitly; Conn methods never call the handler.
type fakeConn struct {
	mu       sync.Mutex
	url      string
	handler  transport.Handler
	state    transport.ReadyState
	sent     [][]byte
	sendErr  error
	closed   bool
	closeArg int
}

func (c *fakeConn) Open(_ context.Context, h transport.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handler != nil {
		return transport.ErrAlreadyOpened
	}
	c.handler = h
	return nil
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != transport.StateOpen {
		return transport.ErrNotOpen
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.closeArg = code
	}
	c.state = transport.StateClosed
	return nil
}

func (c *fakeConn) ReadyState() transport.ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) h() transport.Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler
}

// open simulates the socket opening.
func (c *fakeConn) open() {
	c.mu.Lock()
	c.state = transport.StateOpen
	c.mu.Unlock()
	c.h().OnOpen()
}

// receive simulates an inbound text message.
func (c *fakeConn) receive(data string) {
	c.h().OnMessage([]byte(data))
}

// connected simulates the bus accepting the session.
func (c *fakeConn) connected() {
	c.receive("CONNECTED\nversion:1.2\nheart-beat:0,0\n\n\x00")
}

// drop simulates an abnormal closure.
func (c *fakeConn) drop() {
	c.mu.Lock()
	c.state = transport.StateClosed
	c.mu.Unlock()
	c.h().OnClose(transport.CloseEvent{Code: transport.CloseAbnormal, WasClean: false})
}

// closeClean simulates a graceful close.
func (c *fakeConn) closeClean() {
	c.mu.Lock()
	c.state = transport.StateClosed
	c.mu.Unlock()
	c.h().OnClose(transport.CloseEvent{Code: transport.CloseNormal, WasClean: true})
}

func (c *fakeConn) fail(err error, rs transport.ReadyState) {
	c.h().OnError(err, rs)
}

func (c *fakeConn) setSendErr(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// frames decodes everything written so far.
func (c *fakeConn) frames(t *testing.T) []*stomp.Frame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*stomp.Frame, 0, len(c.sent))
	for _, data := range c.sent {
		frames, err := stomp.Decode(data)
		require.NoError(t, err)
		require.Len(t, frames, 1)
		out = append(out, frames[0])
	}
	return out
}

// framesTo returns the SEND frames addressed to destination.
func (c *fakeConn) framesTo(t *testing.T, destination string) []*stomp.Frame {
	t.Helper()
	var out []*stomp.Frame
	for _, f := range c.frames(t) {
		if f.Command == stomp.CmdSend && f.Header.Get(stomp.HdrDestination) == destination {
			out = append(out, f)
		}
	}
	return out
}

type fakeFactory struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (f *fakeFactory) New(url string) (transport.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeConn{url: url}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeFactory) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

// callbacks records onConnect and onError invocations.
type callbacks struct {
	mu       sync.Mutex
	connects []*Handle
	errs     []error
}

func (cb *callbacks) onConnect(h *Handle) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.connects = append(cb.connects, h)
}

func (cb *callbacks) onError(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.errs = append(cb.errs, err)
}

func (cb *callbacks) connectCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.connects)
}

func (cb *callbacks) errors() []error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return append([]error(nil), cb.errs...)
}

type testEnv struct {
	m       *Manager
	factory *fakeFactory
	clock   *clock.Fake
	cb      *callbacks
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.URL = "http://game.test:8080/api/ws"
	return cfg
}

func newTestEnv(t *testing.T, cfg Config, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		factory: &fakeFactory{},
		clock:   clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		cb:      &callbacks{},
	}
	opts = append([]Option{WithClock(env.clock)}, opts...)
	env.m = NewManager(cfg, env.factory, nil, opts...)
	return env
}

func (env *testEnv) connect(token string) *Handle {
	return env.m.Connect(token, env.cb.onConnect, env.cb.onError)
}

// connectFully runs Connect through to the Connected state.
func (env *testEnv) connectFully(t *testing.T, token string) *fakeConn {
	t.Helper()
	env.connect(token)
	c := env.factory.last()
	require.NotNil(t, c)
	c.open()
	c.connected()
	require.Equal(t, StateConnected, env.m.State())
	return c
}

var errBoom = errors.New("boom")
