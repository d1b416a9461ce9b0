package table

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

// Printer writes events as JSON lines from its own goroutine, so a slow
// output never stalls the bus reader. The queue is unbounded.
type Printer struct {
	enc    *json.Encoder
	logger *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	closed  bool
	written int
	failed  int

	done chan struct{}
}

// NewPrinter starts a printer writing to out.
func NewPrinter(out io.Writer, logger *slog.Logger) *Printer {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Printer{
		enc:    json.NewEncoder(out),
		logger: logger,
		done:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

// Print queues ev. It returns false once the printer is closed.
func (p *Printer) Print(ev Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	p.pending = append(p.pending, ev)
	p.cond.Signal()
	return true
}

// Close flushes queued events and stops the printer. It is idempotent.
func (p *Printer) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	<-p.done
}

// Written returns the number of events written and failed.
func (p *Printer) Written() (written, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written, p.failed
}

func (p *Printer) run() {
	defer close(p.done)

	for {
		p.mu.Lock()
		for len(p.pending) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.pending) == 0 {
			p.mu.Unlock()
			return
		}
		batch := p.pending
		p.pending = nil
		p.mu.Unlock()

		var written, failed int
		for _, ev := range batch {
			if err := p.enc.Encode(ev); err != nil {
				failed++
				p.logger.Error("failed to print event", "topic", ev.Topic, "error", err)
				continue
			}
			written++
		}

		p.mu.Lock()
		p.written += written
		p.failed += failed
		p.mu.Unlock()
	}
}
