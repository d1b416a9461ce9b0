package connection

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rickgao/douniu-client/internal/stomp"
	"github.com/rickgao/douniu-client/internal/transport"
)

// Handle is one live bus session. A reconnect replaces the handle rather
// than reusing it.
type Handle struct {
	id      string
	conn    transport.Conn
	cancel  context.CancelFunc
	subs    *registry
	manager *Manager
	logger  *slog.Logger
}

func newHandle(m *Manager, conn transport.Conn, cancel context.CancelFunc) *Handle {
	id := uuid.NewString()
	return &Handle{
		id:      id,
		conn:    conn,
		cancel:  cancel,
		subs:    newRegistry(),
		manager: m,
		logger:  m.logger.With("handle", id),
	}
}

// ID returns the handle's unique id.
func (h *Handle) ID() string {
	return h.id
}

// Topics returns the topics with at least one subscription on this handle.
func (h *Handle) Topics() []string {
	h.manager.mu.Lock()
	defer h.manager.mu.Unlock()
	return h.subs.topics()
}

// write encodes and sends a frame. Caller holds the Manager's lock.
func (h *Handle) write(f *stomp.Frame) error {
	data, err := stomp.Encode(f)
	if err != nil {
		return err
	}
	return h.conn.Send(data)
}

// close tears the session down. Caller holds the Manager's lock.
func (h *Handle) close(reason string) {
	if err := h.conn.Close(transport.CloseNormal, reason); err != nil {
		h.logger.Debug("close failed", "error", err)
	}
	h.cancel()
}

// events adapts transport callbacks to the Manager, tagged with the handle
// they belong to so events from a replaced handle can be discarded.
type events struct {
	m *Manager
	h *Handle
}

func (e events) OnOpen()               { e.m.handleOpen(e.h) }
func (e events) OnMessage(data []byte) { e.m.handleMessage(e.h, data) }

func (e events) OnClose(ev transport.CloseEvent) {
	e.m.handleClose(e.h, ev)
}

func (e events) OnError(err error, state transport.ReadyState) {
	e.m.handleError(e.h, err, state)
}
