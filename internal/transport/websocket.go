package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	Header           http.Header   // Extra handshake headers (Origin, User-Agent, ...)
	SockJS           bool          // Speak the SockJS websocket transport
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Keep-alive ping interval (0 = disabled)
	PongTimeout      time.Duration // Max time without pong before the socket is dropped (0 = never, raised to 2*PingInterval when shorter)
}

// DefaultWebSocketConfig returns sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		SockJS:           true,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     10 * time.Second,
		PongTimeout:      30 * time.Second,
	}
}

// WebSocketFactory creates WebSocket sessions.
type WebSocketFactory struct {
	cfg    WebSocketConfig
	logger *slog.Logger
}

// NewWebSocketFactory creates a Factory backed by gorilla/websocket.
func NewWebSocketFactory(cfg WebSocketConfig, logger *slog.Logger) *WebSocketFactory {
	if logger == nil {
		logger = slog.Default()
	}
	// The stale check runs right after each ping, so a timeout that is not
	// longer than the interval would drop a healthy socket on every tick.
	if cfg.PingInterval > 0 && cfg.PongTimeout > 0 && cfg.PongTimeout <= cfg.PingInterval {
		logger.Warn("pong timeout not longer than ping interval, raising it",
			"ping_interval", cfg.PingInterval,
			"pong_timeout", cfg.PongTimeout,
		)
		cfg.PongTimeout = 2 * cfg.PingInterval
	}
	return &WebSocketFactory{cfg: cfg, logger: logger}
}

// New resolves the dial URL for endpoint and returns an unopened Conn.
func (f *WebSocketFactory) New(endpoint string) (Conn, error) {
	var (
		dialURL string
		err     error
	)
	if f.cfg.SockJS {
		dialURL, err = SockJSURL(endpoint)
	} else {
		dialURL, err = WebSocketURL(endpoint)
	}
	if err != nil {
		return nil, err
	}

	return &wsConn{
		cfg:    f.cfg,
		url:    dialURL,
		logger: f.logger.With("url", dialURL),
		done:   make(chan struct{}),
	}, nil
}

// wsConn implements Conn.
type wsConn struct {
	cfg    WebSocketConfig
	url    string
	logger *slog.Logger

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.Mutex
	state      ReadyState
	conn       *websocket.Conn
	handler    Handler
	localClose *CloseEvent
	lastPongAt time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// Open dials in the background.
func (c *wsConn) Open(ctx context.Context, h Handler) error {
	c.mu.Lock()
	if c.handler != nil {
		c.mu.Unlock()
		return ErrAlreadyOpened
	}
	if c.state != StateConnecting {
		c.mu.Unlock()
		return ErrClosed
	}
	c.handler = h
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Send writes a text message, wrapped in a SockJS array when configured.
func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return ErrNotOpen
	}
	conn := c.conn
	c.mu.Unlock()

	payload := data
	if c.cfg.SockJS {
		var err error
		payload, err = encodeSockJS(string(data))
		if err != nil {
			return err
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Close gracefully closes the connection. OnClose is still delivered from
// the read goroutine, reporting a clean close with the given code.
func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	if c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.localClose = &CloseEvent{Code: code, Reason: reason, WasClean: true}
	c.state = StateClosing
	conn := c.conn
	opened := c.handler != nil
	c.mu.Unlock()

	if !opened {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		return nil
	}

	if conn == nil {
		// Still dialing; run() notices the local close once the dial returns.
		return nil
	}

	// Send close message
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

// ReadyState returns the current state.
func (c *wsConn) ReadyState() ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *wsConn) run(ctx context.Context) {
	header := http.Header{}
	for k, vs := range c.cfg.Header {
		for _, v := range vs {
			header.Add(k, v)
		}
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if local := c.localCloseEvent(); local != nil {
			c.finish(*local)
			return
		}
		c.logger.Debug("websocket dial failed", "error", err)
		c.handler.OnError(err, StateConnecting)
		c.finish(CloseEvent{Code: CloseAbnormal, Reason: err.Error()})
		return
	}

	c.mu.Lock()
	if c.localClose != nil {
		local := *c.localClose
		c.mu.Unlock()
		conn.Close()
		c.finish(local)
		return
	}
	c.conn = conn
	c.lastPongAt = time.Now()
	if !c.cfg.SockJS {
		c.state = StateOpen
	}
	c.mu.Unlock()

	// Set up ping handler - server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		c.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Set up pong handler - server responds to our ping
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	c.logger.Debug("websocket connected", "sockjs", c.cfg.SockJS)

	if !c.cfg.SockJS {
		c.handler.OnOpen()
	}

	go c.keepAliveLoop(conn)
	c.readLoop(conn)
}

// readLoop reads until the socket fails, then reports the close.
func (c *wsConn) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.cfg.SockJS {
			c.handler.OnMessage(data)
			continue
		}

		frame, err := decodeSockJS(data)
		if err != nil {
			c.logger.Warn("dropping malformed sockjs frame", "error", err)
			continue
		}

		switch frame.kind {
		case sockOpen:
			c.mu.Lock()
			opening := c.state == StateConnecting
			if opening {
				c.state = StateOpen
			}
			c.mu.Unlock()
			if opening {
				c.handler.OnOpen()
			}
		case sockHeartbeat:
			c.touch()
		case sockMessages:
			for _, msg := range frame.messages {
				c.handler.OnMessage([]byte(msg))
			}
		case sockClose:
			c.mu.Lock()
			if c.localClose == nil {
				c.localClose = &CloseEvent{
					Code:     frame.code,
					Reason:   frame.reason,
					WasClean: frame.code == CloseNormal,
				}
			}
			c.state = StateClosing
			c.mu.Unlock()
			conn.Close()
		}
	}
}

func (c *wsConn) handleReadError(err error) {
	if local := c.localCloseEvent(); local != nil {
		c.finish(*local)
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		c.finish(CloseEvent{
			Code:     closeErr.Code,
			Reason:   closeErr.Text,
			WasClean: closeErr.Code == websocket.CloseNormalClosure,
		})
		return
	}

	c.handler.OnError(err, c.ReadyState())
	c.finish(CloseEvent{Code: CloseAbnormal, Reason: err.Error()})
}

// keepAliveLoop pings the server and drops the socket when it goes stale.
func (c *wsConn) keepAliveLoop(conn *websocket.Conn) {
	if c.cfg.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			// Check for stale connection (no pong/ping/heartbeat)
			c.mu.Lock()
			lastPong := c.lastPongAt
			c.mu.Unlock()

			if c.cfg.PongTimeout > 0 && time.Since(lastPong) > c.cfg.PongTimeout {
				c.logger.Warn("no pong received, connection stale",
					"last_pong", lastPong,
					"timeout", c.cfg.PongTimeout,
				)
				conn.Close()
				return
			}
		}
	}
}

func (c *wsConn) touch() {
	c.mu.Lock()
	c.lastPongAt = time.Now()
	c.mu.Unlock()
}

func (c *wsConn) localCloseEvent() *CloseEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.localClose == nil {
		return nil
	}
	ev := *c.localClose
	return &ev
}

func (c *wsConn) finish(ev CloseEvent) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		conn := c.conn
		c.mu.Unlock()

		close(c.done)
		if conn != nil {
			conn.Close()
		}

		c.logger.Debug("websocket closed", "close", ev.String())
		c.handler.OnClose(ev)
	})
}
