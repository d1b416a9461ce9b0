package connection

import (
	"encoding/json"

	"github.com/rickgao/douniu-client/internal/stomp"
)

// heartbeatPayload is the body of a liveness message.
type heartbeatPayload struct {
	Timestamp int64 `json:"timestamp"` // Unix milliseconds
}

// startHeartbeatLocked arms the heartbeat timer. Only called on the
// transition into Connected.
func (m *Manager) startHeartbeatLocked() {
	m.stopHeartbeatLocked()
	if m.cfg.HeartbeatInterval <= 0 {
		return
	}
	m.heartbeatSeq++
	m.armHeartbeatLocked(m.heartbeatSeq)
}

func (m *Manager) armHeartbeatLocked(seq uint64) {
	m.heartbeatTimer = m.clock.AfterFunc(m.cfg.HeartbeatInterval, func() { m.heartbeatTick(seq) })
}

// stopHeartbeatLocked destroys the heartbeat timer. A tick already in
// flight sees the bumped sequence and does nothing.
func (m *Manager) stopHeartbeatLocked() {
	if m.heartbeatTimer == nil {
		return
	}
	m.heartbeatTimer.Stop()
	m.heartbeatTimer = nil
	m.heartbeatSeq++
}

func (m *Manager) heartbeatTick(seq uint64) {
	var fx effects
	defer fx.run()

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.heartbeatSeq || m.heartbeatTimer == nil {
		return
	}
	m.heartbeatTimer = nil

	h := m.handle
	if m.state != StateConnected || h == nil {
		return
	}

	body, _ := json.Marshal(heartbeatPayload{Timestamp: m.clock.Now().UnixMilli()})
	err := h.write(stomp.Send(m.cfg.HeartbeatTopic, stomp.ContentTypeJSON, body))
	if hook := m.hooks.OnHeartbeat; hook != nil {
		fx.add(func() { hook(err) })
	}
	if err != nil {
		// Reconnects are driven by the transport's close, not by missed heartbeats.
		h.logger.Warn("heartbeat failed, stopping", "error", err)
		return
	}

	h.logger.Debug("heartbeat sent")
	m.armHeartbeatLocked(seq)
}
