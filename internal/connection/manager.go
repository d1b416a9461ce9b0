package connection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/douniu-client/internal/clock"
	"github.com/rickgao/douniu-client/internal/stomp"
	"github.com/rickgao/douniu-client/internal/transport"
)

// Manager owns a single bus connection and keeps it alive.
//
// Every transition runs under mu. Callbacks and hooks are queued while the
// lock is held and run after it is released, so they may call back into
// the Manager.
type Manager struct {
	cfg     Config
	factory transport.Factory
	clock   clock.Clock
	hooks   Hooks
	logger  *slog.Logger
	host    string

	mu        sync.Mutex
	state     State
	handle    *Handle
	token     string
	onConnect func(*Handle)
	onError   func(error)

	attempts  int // Consecutive failed attempts since the last success
	exhausted bool

	reconnectTimer clock.Timer
	reconnectSeq   uint64
	heartbeatTimer clock.Timer
	heartbeatSeq   uint64
}

// NewManager creates a Manager in the Disconnected state.
func NewManager(cfg Config, factory transport.Factory, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:     cfg,
		factory: factory,
		clock:   clock.Real(),
		logger:  logger,
		host:    cfg.Host,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.host == "" {
		if u, err := url.Parse(cfg.URL); err == nil {
			m.host = u.Hostname()
		}
	}

	return m
}

// effects are callbacks deferred until the lock is released.
type effects []func()

func (fx *effects) add(f func()) {
	*fx = append(*fx, f)
}

func (fx effects) run() {
	for _, f := range fx {
		f()
	}
}

// Connect opens a connection authenticated with token. It is a no-op while
// connected or while an attempt is in flight, and returns the current
// handle in that case. A pending reconnect timer is cancelled and replaced
// by an immediate attempt.
//
// onConnect runs after every successful connect, including automatic
// reconnects. onError receives protocol errors and ErrReconnectExhausted.
func (m *Manager) Connect(token string, onConnect func(*Handle), onError func(error)) *Handle {
	var fx effects

	m.mu.Lock()
	if m.state == StateConnected || m.state == StateConnecting {
		h, state := m.handle, m.state
		m.mu.Unlock()
		m.logger.Debug("connect ignored", "state", state)
		return h
	}

	m.cancelReconnectLocked()
	m.attempts = 0
	m.exhausted = false
	m.token = token
	m.onConnect = onConnect
	m.onError = onError

	m.dialLocked(&fx)
	h := m.handle
	m.mu.Unlock()

	fx.run()
	return h
}

// Disconnect tears the connection down and stops all retry activity. It is
// synchronous and idempotent; no callback fires.
func (m *Manager) Disconnect() {
	var fx effects

	m.mu.Lock()
	m.cancelReconnectLocked()
	m.stopHeartbeatLocked()
	m.attempts = 0
	m.exhausted = false

	if h := m.handle; h != nil {
		if m.state == StateConnected {
			if err := h.write(stomp.Disconnect("")); err != nil {
				h.logger.Debug("disconnect frame not sent", "error", err)
			}
		}
		h.close("client disconnect")
		m.handle = nil
	}

	m.token = ""
	m.onConnect = nil
	m.onError = nil
	m.setStateLocked(StateDisconnected, &fx)
	m.mu.Unlock()

	fx.run()
	m.logger.Info("disconnected")
}

// Subscribe registers handler for topic on the live connection. It returns
// nil when not connected or when the SUBSCRIBE frame cannot be written.
func (m *Manager) Subscribe(topic string, handler Handler) *Subscription {
	if handler == nil {
		m.logger.Warn("subscribe without handler", "topic", topic)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.handle
	if m.state != StateConnected || h == nil {
		m.logger.Warn("cannot subscribe, not connected", "topic", topic, "state", m.state)
		return nil
	}

	sub := &Subscription{
		ID:      "sub-" + uuid.NewString(),
		Topic:   topic,
		handler: handler,
		handle:  h,
	}
	if err := h.write(stomp.Subscribe(sub.ID, topic)); err != nil {
		h.logger.Warn("subscribe failed", "topic", topic, "error", err)
		return nil
	}
	h.subs.add(sub)

	h.logger.Debug("subscribed", "topic", topic, "id", sub.ID)
	return sub
}

func (m *Manager) unsubscribe(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := sub.handle
	if !h.subs.remove(sub.ID) {
		return
	}

	if h == m.handle && m.state == StateConnected {
		if err := h.write(stomp.Unsubscribe(sub.ID)); err != nil {
			h.logger.Warn("unsubscribe failed", "topic", sub.Topic, "error", err)
			return
		}
	}
	h.logger.Debug("unsubscribed", "topic", sub.Topic, "id", sub.ID)
}

// Send publishes payload to topic. Strings and byte slices are sent
// verbatim; anything else is JSON-encoded. It returns false without writing
// when not connected or when encoding fails.
func (m *Manager) Send(topic string, payload any) bool {
	body, contentType, err := encodePayload(payload)
	if err != nil {
		m.logger.Warn("cannot encode payload", "topic", topic, "error", err)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.handle
	if m.state != StateConnected || h == nil {
		m.logger.Warn("cannot send, not connected", "topic", topic, "state", m.state)
		return false
	}

	if err := h.write(stomp.Send(topic, contentType, body)); err != nil {
		h.logger.Warn("send failed", "topic", topic, "error", err)
		return false
	}
	return true
}

// Handle returns the current connection handle, or nil.
func (m *Manager) Handle() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Exhausted reports whether the last connect cycle gave up after
// MaxAttempts failed reconnects.
func (m *Manager) Exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exhausted
}

// Attempts returns the number of consecutive failed attempts.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// dialLocked replaces the current handle with a fresh session.
func (m *Manager) dialLocked(fx *effects) {
	m.dropHandleLocked("replaced")

	conn, err := m.factory.New(m.cfg.URL)
	if err != nil {
		// Bad endpoint; retrying cannot help.
		m.logger.Error("cannot create transport", "url", m.cfg.URL, "error", err)
		m.setStateLocked(StateDisconnected, fx)
		m.notifyErrorLocked(err, fx)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(m, conn, cancel)
	m.handle = h
	m.setStateLocked(StateConnecting, fx)

	h.logger.Info("connecting", "url", m.cfg.URL, "attempt", m.attempts)

	if err := conn.Open(ctx, events{m: m, h: h}); err != nil {
		h.logger.Warn("transport open failed", "error", err)
		m.failLocked("open failed", fx)
	}
}

// dropHandleLocked closes and forgets the current handle.
func (m *Manager) dropHandleLocked(reason string) {
	if m.handle == nil {
		return
	}
	m.handle.close(reason)
	m.handle = nil
}

// failLocked abandons the current session and schedules a reconnect.
func (m *Manager) failLocked(reason string, fx *effects) {
	m.stopHeartbeatLocked()
	m.dropHandleLocked(reason)
	m.scheduleReconnectLocked(fx)
}

func (m *Manager) handleOpen(h *Handle) {
	var fx effects
	defer fx.run()

	m.mu.Lock()
	defer m.mu.Unlock()

	if h != m.handle {
		return
	}

	if err := h.write(stomp.Connect(m.host, m.token)); err != nil {
		h.logger.Warn("connect frame not sent", "error", err)
		m.failLocked("connect frame not sent", &fx)
		return
	}
	h.logger.Debug("transport open, awaiting CONNECTED")
}

func (m *Manager) handleMessage(h *Handle, data []byte) {
	var fx effects
	defer fx.run()

	m.mu.Lock()
	defer m.mu.Unlock()

	if h != m.handle {
		return
	}

	// SockJS may batch several STOMP frames into one transport message.
	frames, err := stomp.Decode(data)
	for _, f := range frames {
		// An ERROR frame tears the handle down; the rest of the batch is stale.
		if h != m.handle {
			return
		}
		m.handleFrameLocked(h, f, &fx)
	}
	if err != nil && h == m.handle {
		m.protocolErrorLocked(&ProtocolError{Err: err}, &fx)
	}
}

func (m *Manager) handleFrameLocked(h *Handle, f *stomp.Frame, fx *effects) {
	switch f.Command {
	case stomp.CmdConnected:
		m.connectedLocked(h, f, fx)
	case stomp.CmdMessage:
		m.dispatchLocked(h, f, fx)
	case stomp.CmdError:
		m.protocolErrorLocked(&ProtocolError{
			Command: f.Command,
			Message: stomp.ErrorMessage(f),
		}, fx)
	case stomp.CmdReceipt:
		h.logger.Debug("receipt", "id", f.Header.Get(stomp.HdrReceiptID))
	default:
		h.logger.Debug("unexpected frame", "command", f.Command)
	}
}

func (m *Manager) connectedLocked(h *Handle, f *stomp.Frame, fx *effects) {
	if m.state != StateConnecting {
		h.logger.Debug("duplicate CONNECTED ignored", "state", m.state)
		return
	}

	m.setStateLocked(StateConnected, fx)
	m.attempts = 0
	m.exhausted = false
	m.cancelReconnectLocked()

	h.logger.Info("connected", "version", f.Header.Get(stomp.HdrVersion))

	if m.token != "" {
		body, _ := json.Marshal(map[string]string{"token": m.token})
		if err := h.write(stomp.Send(m.cfg.AuthTopic, stomp.ContentTypeJSON, body)); err != nil {
			h.logger.Warn("auth message not sent", "error", err)
		}
	}

	m.startHeartbeatLocked()

	if onConnect := m.onConnect; onConnect != nil {
		fx.add(func() { onConnect(h) })
	}
}

func (m *Manager) dispatchLocked(h *Handle, f *stomp.Frame, fx *effects) {
	topic := f.Header.Get(stomp.HdrDestination)
	subs := h.subs.lookup(f.Header.Get(stomp.HdrSubscription), topic)
	if len(subs) == 0 {
		h.logger.Debug("message without subscriber", "topic", topic)
		return
	}

	msg := Message{
		Topic:        topic,
		Subscription: f.Header.Get(stomp.HdrSubscription),
		MessageID:    f.Header.Get(stomp.HdrMessageID),
		Body:         f.Body,
	}
	var payload any
	if err := json.Unmarshal(f.Body, &payload); err != nil {
		h.logger.Warn("message is not json, delivering raw", "topic", topic, "error", err)
		msg.Payload = string(f.Body)
		msg.Raw = true
	} else {
		msg.Payload = payload
	}

	for _, sub := range subs {
		handler := sub.handler
		fx.add(func() { handler(msg) })
	}
	if hook := m.hooks.OnMessage; hook != nil {
		fx.add(func() { hook(topic, msg.Raw) })
	}
}

func (m *Manager) protocolErrorLocked(perr *ProtocolError, fx *effects) {
	m.logger.Warn("protocol error", "error", perr)
	m.notifyErrorLocked(perr, fx)
	m.failLocked("protocol error", fx)
}

func (m *Manager) handleClose(h *Handle, ev transport.CloseEvent) {
	var fx effects
	defer fx.run()

	m.mu.Lock()
	defer m.mu.Unlock()

	if h != m.handle {
		return
	}

	m.stopHeartbeatLocked()
	h.cancel()
	m.handle = nil

	if ev.WasClean {
		h.logger.Info("connection closed", "close", ev.String())
		m.setStateLocked(StateDisconnected, &fx)
		return
	}

	h.logger.Warn("connection lost", "close", ev.String())
	m.scheduleReconnectLocked(&fx)
}

func (m *Manager) handleError(h *Handle, err error, rs transport.ReadyState) {
	var fx effects
	defer fx.run()

	m.mu.Lock()
	defer m.mu.Unlock()

	if h != m.handle {
		return
	}

	if rs != transport.StateOpen {
		// The close that follows a failed open schedules the retry.
		h.logger.Debug("transport error while not open", "ready_state", rs, "error", err)
		return
	}

	h.logger.Warn("transport error", "error", err)
	m.failLocked("transport error", &fx)
}

// scheduleReconnectLocked arms the reconnect timer, or gives up once
// MaxAttempts consecutive reconnect attempts have failed. The loss of a live
// session is not itself an attempt, so a give-up follows MaxAttempts+1
// closures in a row.
func (m *Manager) scheduleReconnectLocked(fx *effects) {
	if m.reconnectTimer != nil || m.state == StateReconnecting {
		return
	}

	policy := m.cfg.Reconnect
	if m.attempts >= policy.MaxAttempts {
		m.setStateLocked(StateDisconnected, fx)
		if m.exhausted {
			return
		}
		m.exhausted = true

		attempts := m.attempts
		m.logger.Error("giving up reconnecting", "attempts", attempts)
		if hook := m.hooks.OnGiveUp; hook != nil {
			fx.add(func() { hook(attempts) })
		}
		m.notifyErrorLocked(ErrReconnectExhausted, fx)
		return
	}

	attempt := m.attempts + 1
	delay := policy.Delay(attempt)

	m.setStateLocked(StateReconnecting, fx)
	m.reconnectSeq++
	seq := m.reconnectSeq
	m.reconnectTimer = m.clock.AfterFunc(delay, func() { m.reconnectFired(seq) })

	m.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
	if hook := m.hooks.OnReconnectScheduled; hook != nil {
		fx.add(func() { hook(attempt, delay) })
	}
}

func (m *Manager) reconnectFired(seq uint64) {
	var fx effects
	defer fx.run()

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.reconnectSeq || m.reconnectTimer == nil {
		return
	}
	m.reconnectTimer = nil
	m.attempts++

	m.dialLocked(&fx)
}

func (m *Manager) cancelReconnectLocked() {
	if m.reconnectTimer == nil {
		return
	}
	m.reconnectTimer.Stop()
	m.reconnectTimer = nil
	m.reconnectSeq++
}

func (m *Manager) notifyErrorLocked(err error, fx *effects) {
	if onError := m.onError; onError != nil {
		fx.add(func() { onError(err) })
	}
}

func (m *Manager) setStateLocked(to State, fx *effects) {
	from := m.state
	if from == to {
		return
	}
	m.state = to

	m.logger.Debug("state change", "from", from, "to", to)
	if hook := m.hooks.OnStateChange; hook != nil {
		fx.add(func() { hook(from, to) })
	}
}

func encodePayload(payload any) ([]byte, string, error) {
	switch v := payload.(type) {
	case string:
		return []byte(v), "", nil
	case []byte:
		return v, "", nil
	case json.RawMessage:
		return v, stomp.ContentTypeJSON, nil
	case nil:
		return nil, "", errors.New("nil payload")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	return body, stomp.ContentTypeJSON, nil
}
