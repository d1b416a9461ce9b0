package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*http.Request, *websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(r, conn)
	}))

	return server
}

type errorEvent struct {
	err   error
	state ReadyState
}

// recorder is a Handler that exposes events on channels.
type recorder struct {
	openOnce sync.Once
	opened   chan struct{}
	messages chan string
	closed   chan CloseEvent
	errs     chan errorEvent
}

func newRecorder() *recorder {
	return &recorder{
		opened:   make(chan struct{}),
		messages: make(chan string, 16),
		closed:   make(chan CloseEvent, 1),
		errs:     make(chan errorEvent, 4),
	}
}

func (r *recorder) OnOpen()               { r.openOnce.Do(func() { close(r.opened) }) }
func (r *recorder) OnMessage(data []byte) { r.messages <- string(data) }
func (r *recorder) OnClose(ev CloseEvent) { r.closed <- ev }

func (r *recorder) OnError(err error, s ReadyState) {
	r.errs <- errorEvent{err: err, state: s}
}

func (r *recorder) waitOpen(t *testing.T) {
	t.Helper()
	select {
	case <-r.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for open")
	}
}

func (r *recorder) waitMessage(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-r.messages:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func (r *recorder) waitClose(t *testing.T) CloseEvent {
	t.Helper()
	select {
	case ev := <-r.closed:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for close")
		return CloseEvent{}
	}
}

func plainConfig() WebSocketConfig {
	cfg := DefaultWebSocketConfig()
	cfg.SockJS = false
	return cfg
}

func echoHandler(_ *http.Request, conn *websocket.Conn) {
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, msg); err != nil {
			return
		}
	}
}

func TestWebSocket_OpenSendReceive(t *testing.T) {
	server := mockWSServer(t, echoHandler)
	defer server.Close()

	conn, err := NewWebSocketFactory(plainConfig(), nil).New(server.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if conn.ReadyState() != StateConnecting {
		t.Errorf("ReadyState = %v, want CONNECTING", conn.ReadyState())
	}

	rec := newRecorder()
	if err := conn.Open(context.Background(), rec); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rec.waitOpen(t)

	if conn.ReadyState() != StateOpen {
		t.Errorf("ReadyState = %v, want OPEN", conn.ReadyState())
	}

	if err := conn.Send([]byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := rec.waitMessage(t); got != "hello" {
		t.Errorf("message = %q, want %q", got, "hello")
	}

	if err := conn.Close(CloseNormal, "bye"); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	ev := rec.waitClose(t)
	if !ev.WasClean || ev.Code != CloseNormal {
		t.Errorf("close = %v, want clean %d", ev, CloseNormal)
	}
	if conn.ReadyState() != StateClosed {
		t.Errorf("ReadyState = %v, want CLOSED", conn.ReadyState())
	}
}

func TestWebSocket_OpenTwice(t *testing.T) {
	server := mockWSServer(t, echoHandler)
	defer server.Close()

	conn, err := NewWebSocketFactory(plainConfig(), nil).New(server.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	rec := newRecorder()
	if err := conn.Open(context.Background(), rec); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close(CloseNormal, "")

	if err := conn.Open(context.Background(), rec); !errors.Is(err, ErrAlreadyOpened) {
		t.Errorf("second Open error = %v, want ErrAlreadyOpened", err)
	}
}

func TestWebSocket_SendBeforeOpen(t *testing.T) {
	conn, err := NewWebSocketFactory(plainConfig(), nil).New("ws://localhost:12345/ws")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := conn.Send([]byte("test")); err != ErrNotOpen {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
}

func TestWebSocket_ServerNormalClose(t *testing.T) {
	server := mockWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
			time.Now().Add(time.Second),
		)
		// Wait for the client's close reply
		conn.ReadMessage()
	})
	defer server.Close()

	conn, _ := NewWebSocketFactory(plainConfig(), nil).New(server.URL)
	rec := newRecorder()
	conn.Open(context.Background(), rec)

	ev := rec.waitClose(t)
	if !ev.WasClean {
		t.Errorf("close = %v, want clean", ev)
	}
	if ev.Code != CloseNormal {
		t.Errorf("Code = %d, want %d", ev.Code, CloseNormal)
	}
}

func TestWebSocket_AbnormalClose(t *testing.T) {
	server := mockWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		// Drop the TCP connection without a close handshake
		conn.UnderlyingConn().Close()
	})
	defer server.Close()

	conn, _ := NewWebSocketFactory(plainConfig(), nil).New(server.URL)
	rec := newRecorder()
	conn.Open(context.Background(), rec)

	ev := rec.waitClose(t)
	if ev.WasClean {
		t.Errorf("close = %v, want abnormal", ev)
	}
	if ev.Code != CloseAbnormal {
		t.Errorf("Code = %d, want %d", ev.Code, CloseAbnormal)
	}
}

func TestWebSocket_DialFailure(t *testing.T) {
	server := mockWSServer(t, echoHandler)
	endpoint := server.URL
	server.Close()

	conn, err := NewWebSocketFactory(plainConfig(), nil).New(endpoint)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	rec := newRecorder()
	conn.Open(context.Background(), rec)

	select {
	case e := <-rec.errs:
		if e.state != StateConnecting {
			t.Errorf("error state = %v, want CONNECTING", e.state)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error")
	}

	ev := rec.waitClose(t)
	if ev.WasClean || ev.Code != CloseAbnormal {
		t.Errorf("close = %v, want abnormal %d", ev, CloseAbnormal)
	}
}

func TestWebSocket_DoubleClose(t *testing.T) {
	server := mockWSServer(t, echoHandler)
	defer server.Close()

	conn, _ := NewWebSocketFactory(plainConfig(), nil).New(server.URL)
	rec := newRecorder()
	conn.Open(context.Background(), rec)
	rec.waitOpen(t)

	// First close should succeed
	if err := conn.Close(CloseNormal, ""); err != nil {
		t.Errorf("first Close failed: %v", err)
	}

	// Second close should be no-op
	if err := conn.Close(CloseNormal, ""); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	rec.waitClose(t)
	select {
	case ev := <-rec.closed:
		t.Errorf("unexpected second close event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWebSocket_ShortPongTimeoutKeepsHealthySocket(t *testing.T) {
	server := mockWSServer(t, echoHandler)
	defer server.Close()

	cfg := plainConfig()
	cfg.PingInterval = 40 * time.Millisecond
	cfg.PongTimeout = 30 * time.Millisecond

	f := NewWebSocketFactory(cfg, nil)
	if f.cfg.PongTimeout != 80*time.Millisecond {
		t.Errorf("PongTimeout = %v, want %v", f.cfg.PongTimeout, 80*time.Millisecond)
	}

	conn, err := f.New(server.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	rec := newRecorder()
	if err := conn.Open(context.Background(), rec); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rec.waitOpen(t)

	// Several ping cycles answered by the server.
	select {
	case ev := <-rec.closed:
		t.Fatalf("healthy socket closed: %v", ev)
	case <-time.After(300 * time.Millisecond):
	}
	if conn.ReadyState() != StateOpen {
		t.Errorf("ReadyState = %v, want OPEN", conn.ReadyState())
	}

	conn.Close(CloseNormal, "")
	if ev := rec.waitClose(t); !ev.WasClean {
		t.Errorf("close = %v, want clean", ev)
	}
}

func TestWebSocket_SockJS(t *testing.T) {
	paths := make(chan string, 1)
	received := make(chan string, 1)

	server := mockWSServer(t, func(r *http.Request, conn *websocket.Conn) {
		paths <- r.URL.Path

		conn.WriteMessage(websocket.TextMessage, []byte("o"))
		conn.WriteMessage(websocket.TextMessage, []byte("h"))
		conn.WriteMessage(websocket.TextMessage, []byte(`a["one","two"]`))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)

		conn.WriteMessage(websocket.TextMessage, []byte(`c[1000,"bye"]`))
		conn.ReadMessage()
	})
	defer server.Close()

	cfg := DefaultWebSocketConfig()
	conn, err := NewWebSocketFactory(cfg, nil).New(server.URL + "/api/ws")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	rec := newRecorder()
	conn.Open(context.Background(), rec)
	rec.waitOpen(t)

	path := <-paths
	if !strings.HasPrefix(path, "/api/ws/") || !strings.HasSuffix(path, "/websocket") {
		t.Errorf("path = %q, want /api/ws/{server}/{session}/websocket", path)
	}

	for _, want := range []string{"one", "two"} {
		if got := rec.waitMessage(t); got != want {
			t.Errorf("message = %q, want %q", got, want)
		}
	}

	if err := conn.Send([]byte("ping")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	select {
	case msg := <-received:
		if msg != `["ping"]` {
			t.Errorf("server received %q, want %q", msg, `["ping"]`)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server receive")
	}

	ev := rec.waitClose(t)
	if !ev.WasClean || ev.Code != CloseNormal || ev.Reason != "bye" {
		t.Errorf("close = %v, want clean 1000 bye", ev)
	}
}
