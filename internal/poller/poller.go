package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/douniu-client/internal/model"
)

// RoomSource fetches room state over REST.
type RoomSource interface {
	RoomByCode(ctx context.Context, token, code string) (*model.Room, error)
	RoomPlayers(ctx context.Context, token string, roomID int64) ([]model.RoomPlayer, error)
}

// SnapshotHandler receives fetched snapshots.
type SnapshotHandler interface {
	HandleSnapshot(snapshot model.RoomUpdate) error
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(model.RoomUpdate) error

func (f SnapshotHandlerFunc) HandleSnapshot(s model.RoomUpdate) error {
	return f(s)
}

// Config holds poller configuration.
type Config struct {
	RoomCode string        // Room to poll
	RoomID   int64         // Resolved id of RoomCode
	Token    string        // Session token
	Interval time.Duration // Poll interval (default: 30s)
	Timeout  time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Poller periodically fetches room snapshots via the REST API.
type Poller struct {
	cfg     Config
	client  RoomSource
	handler SnapshotHandler
	gate    func() bool
	logger  *slog.Logger

	polls atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. gate is consulted before every cycle; a nil
// gate polls unconditionally.
func New(cfg Config, client RoomSource, handler SnapshotHandler, gate func() bool, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		handler: handler,
		gate:    gate,
		logger:  logger.With("room_code", cfg.RoomCode),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("snapshot poller started", "interval", p.cfg.Interval)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("snapshot poller stopped", "polls", p.polls.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Polls returns the number of completed poll cycles.
func (p *Poller) Polls() int64 {
	return p.polls.Load()
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if p.gate != nil && !p.gate() {
				continue
			}
			if err := p.poll(); err != nil {
				p.logger.Warn("failed to poll room", "err", err)
			}
		}
	}
}

// poll fetches the room and its players concurrently and hands the
// snapshot to the handler.
func (p *Poller) poll() error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	var (
		room    *model.Room
		players []model.RoomPlayer
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		room, err = p.client.RoomByCode(gctx, p.cfg.Token, p.cfg.RoomCode)
		return err
	})
	g.Go(func() error {
		var err error
		players, err = p.client.RoomPlayers(gctx, p.cfg.Token, p.cfg.RoomID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if p.handler != nil {
		if err := p.handler.HandleSnapshot(model.RoomUpdate{Room: *room, Players: players}); err != nil {
			return err
		}
	}

	p.polls.Add(1)
	p.logger.Debug("poll cycle complete",
		"players", len(players),
		"status", room.Status,
		"duration", time.Since(start),
	)

	return nil
}
