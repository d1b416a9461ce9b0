package auth

import (
	"log/slog"
	"sync"
)

// Guard ends the session after MaxErrors consecutive connection errors.
// A successful connect resets the count.
type Guard struct {
	maxErrors int
	store     Store
	onLogout  func(err error)
	logger    *slog.Logger

	mu      sync.Mutex
	count   int
	tripped bool
}

// NewGuard creates a Guard. onLogout runs once, with the error that tripped
// the guard, after the store has been cleared.
func NewGuard(maxErrors int, store Store, onLogout func(err error), logger *slog.Logger) *Guard {
	if maxErrors < 1 {
		maxErrors = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		maxErrors: maxErrors,
		store:     store,
		onLogout:  onLogout,
		logger:    logger,
	}
}

// OnError records a connection error.
func (g *Guard) OnError(err error) {
	g.mu.Lock()
	if g.tripped {
		g.mu.Unlock()
		return
	}
	g.count++
	count := g.count
	trip := count >= g.maxErrors
	if trip {
		g.tripped = true
	}
	g.mu.Unlock()

	g.logger.Warn("connection error", "error", err, "count", count, "max", g.maxErrors)
	if !trip {
		return
	}

	g.logger.Error("too many connection errors, logging out", "count", count)
	if g.store != nil {
		if clearErr := g.store.Clear(); clearErr != nil {
			g.logger.Error("failed to clear session", "error", clearErr)
		}
	}
	if g.onLogout != nil {
		g.onLogout(err)
	}
}

// Reset clears the error count.
func (g *Guard) Reset() {
	g.mu.Lock()
	g.count = 0
	g.mu.Unlock()
}

// Errors returns the current consecutive error count.
func (g *Guard) Errors() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Tripped reports whether the guard has logged the session out.
func (g *Guard) Tripped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tripped
}
