// Package table follows one game room over the message bus.
//
// A Watcher is installed as the Manager's onConnect callback: every
// (re)connect re-subscribes the room topics and the user queue, and
// optionally announces the player with a join message. Incoming
// broadcasts are printed as JSON lines and the latest room snapshot is
// kept for the health endpoint.
package table

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/douniu-client/internal/connection"
	"github.com/rickgao/douniu-client/internal/model"
)

// Bus is the part of the connection Manager the watcher drives.
type Bus interface {
	Subscribe(topic string, handler connection.Handler) *connection.Subscription
	Send(topic string, payload any) bool
}

// Config selects the room and the player.
type Config struct {
	RoomID   int64    // Room to follow; 0 watches only the user queue and Extra
	RoomCode string   // Join code announced on connect (empty skips the join)
	UserID   int64    // Player sending join/leave
	Extra    []string // Additional topics subscribed on every connect
}

// Event is one printed line.
type Event struct {
	Time    time.Time       `json:"time"`
	Topic   string          `json:"topic"`
	Code    int             `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Raw     string          `json:"raw,omitempty"`
}

// Stats summarizes what the watcher has seen.
type Stats struct {
	Connects   int               `json:"connects"`
	Messages   int               `json:"messages"`
	Failures   int               `json:"failures"`  // Envelopes with a non-200 code
	Snapshots  int               `json:"snapshots"` // Room snapshots fetched over REST
	Subscribed []string          `json:"subscribed"`
	Room       *model.RoomUpdate `json:"room,omitempty"`
	LastEvent  time.Time         `json:"last_event,omitzero"`
}

// Watcher re-establishes room subscriptions on every connect.
type Watcher struct {
	bus    Bus
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	printer *Printer

	mu    sync.Mutex
	stats Stats
}

// NewWatcher creates a Watcher printing events to out.
func NewWatcher(bus Bus, cfg Config, out io.Writer, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}
	return &Watcher{
		bus:     bus,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		printer: NewPrinter(out, logger),
	}
}

// Close flushes pending output.
func (w *Watcher) Close() {
	w.printer.Close()
}

// Topics returns every topic subscribed on connect.
func (w *Watcher) Topics() []string {
	topics := []string{model.UserQueue}
	if w.cfg.RoomID > 0 {
		topics = append(topics, model.RoomTopics(w.cfg.RoomID)...)
	}
	return append(topics, w.cfg.Extra...)
}

// OnConnect subscribes the room topics and joins the room. Subscriptions
// from a previous connection died with it, so all of them are recreated.
func (w *Watcher) OnConnect(h *connection.Handle) {
	var subscribed []string
	for _, topic := range w.Topics() {
		if sub := w.bus.Subscribe(topic, w.handle); sub == nil {
			w.logger.Warn("subscription failed", "topic", topic)
			continue
		}
		subscribed = append(subscribed, topic)
	}

	w.mu.Lock()
	w.stats.Connects++
	w.stats.Subscribed = subscribed
	connects := w.stats.Connects
	w.mu.Unlock()

	attrs := []any{"topics", len(subscribed), "connects", connects}
	if h != nil {
		attrs = append(attrs, "handle", h.ID())
	}
	w.logger.Info("room subscriptions ready", attrs...)

	if w.cfg.RoomCode != "" && w.cfg.UserID > 0 {
		if !w.bus.Send(model.AppJoinRoom, model.JoinRoom{UserID: w.cfg.UserID, RoomCode: w.cfg.RoomCode}) {
			w.logger.Warn("join not sent", "room_code", w.cfg.RoomCode)
		}
	}
}

// Leave announces that the player is leaving the room. It reports whether
// the message was sent.
func (w *Watcher) Leave() bool {
	if w.cfg.RoomCode == "" || w.cfg.UserID <= 0 {
		return false
	}
	return w.bus.Send(model.AppLeaveRoom, model.LeaveRoom{UserID: w.cfg.UserID, RoomCode: w.cfg.RoomCode})
}

// Stats returns a copy of the current statistics.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stats
	s.Subscribed = append([]string(nil), w.stats.Subscribed...)
	if w.stats.Room != nil {
		room := *w.stats.Room
		room.Players = append([]model.RoomPlayer(nil), w.stats.Room.Players...)
		s.Room = &room
	}
	return s
}

// HandleSnapshot records a room snapshot fetched outside the bus.
func (w *Watcher) HandleSnapshot(u model.RoomUpdate) error {
	w.mu.Lock()
	w.stats.Snapshots++
	w.stats.Room = &u
	w.mu.Unlock()

	w.logger.Debug("room snapshot", "room_id", u.Room.ID, "players", len(u.Players))
	return nil
}

func (w *Watcher) handle(msg connection.Message) {
	ev := Event{Time: w.now(), Topic: msg.Topic}

	var env model.Envelope[json.RawMessage]
	failed := false
	switch {
	case msg.Raw:
		ev.Raw = string(msg.Body)
	case msg.Decode(&env) != nil:
		ev.Raw = string(msg.Body)
	default:
		ev.Code = env.Code
		ev.Message = env.Message
		ev.Data = env.Data
		failed = !env.OK()
	}

	var update *model.RoomUpdate
	if !failed && ev.Data != nil && w.cfg.RoomID > 0 && msg.Topic == model.RoomUpdateTopic(w.cfg.RoomID) {
		var u model.RoomUpdate
		if err := json.Unmarshal(ev.Data, &u); err != nil {
			w.logger.Warn("bad room update", "error", err)
		} else {
			update = &u
		}
	}

	w.mu.Lock()
	w.stats.Messages++
	w.stats.LastEvent = ev.Time
	if failed {
		w.stats.Failures++
	}
	if update != nil {
		w.stats.Room = update
	}
	w.mu.Unlock()

	if failed {
		w.logger.Warn("server reported failure", "topic", msg.Topic, "code", env.Code, "message", env.Message)
	}
	if update != nil {
		w.logger.Info("room updated",
			"room_id", update.Room.ID,
			"status", update.Room.Status,
			"round", update.Room.CurrentRound,
			"players", len(update.Players),
		)
	}

	if !w.printer.Print(ev) {
		w.logger.Debug("event dropped after close", "topic", msg.Topic)
	}
}
