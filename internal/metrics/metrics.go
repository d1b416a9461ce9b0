// Package metrics records connection manager activity as OpenTelemetry
// instruments.
//
// Instruments:
//   - douniu.connection.state            current state (1 for the active state)
//   - douniu.connection.transitions      state transitions by from/to
//   - douniu.connection.reconnects       scheduled reconnect attempts
//   - douniu.connection.reconnect_delay  backoff delay histogram (s)
//   - douniu.connection.give_ups         reconnect budgets exhausted
//   - douniu.connection.heartbeats       heartbeat sends by result
//   - douniu.connection.messages         inbound messages by topic
package metrics

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rickgao/douniu-client/internal/connection"
)

// Recorder turns Manager hooks into metric observations.
type Recorder struct {
	state atomic.Int32

	transitions    metric.Int64Counter
	reconnects     metric.Int64Counter
	reconnectDelay metric.Float64Histogram
	giveUps        metric.Int64Counter
	heartbeats     metric.Int64Counter
	messages       metric.Int64Counter
}

var allStates = []connection.State{
	connection.StateDisconnected,
	connection.StateConnecting,
	connection.StateConnected,
	connection.StateReconnecting,
}

// NewRecorder creates the instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	r := &Recorder{}
	r.state.Store(int32(connection.StateDisconnected))

	var err error
	if r.transitions, err = meter.Int64Counter("douniu.connection.transitions",
		metric.WithDescription("Connection state transitions"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return nil, fmt.Errorf("create transitions counter: %w", err)
	}
	if r.reconnects, err = meter.Int64Counter("douniu.connection.reconnects",
		metric.WithDescription("Scheduled reconnect attempts"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("create reconnects counter: %w", err)
	}
	if r.reconnectDelay, err = meter.Float64Histogram("douniu.connection.reconnect_delay",
		metric.WithDescription("Backoff delay before a reconnect attempt"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 16, 30, 60),
	); err != nil {
		return nil, fmt.Errorf("create reconnect delay histogram: %w", err)
	}
	if r.giveUps, err = meter.Int64Counter("douniu.connection.give_ups",
		metric.WithDescription("Times the reconnect budget was exhausted"),
	); err != nil {
		return nil, fmt.Errorf("create give-ups counter: %w", err)
	}
	if r.heartbeats, err = meter.Int64Counter("douniu.connection.heartbeats",
		metric.WithDescription("Application heartbeats sent"),
		metric.WithUnit("{heartbeat}"),
	); err != nil {
		return nil, fmt.Errorf("create heartbeats counter: %w", err)
	}
	if r.messages, err = meter.Int64Counter("douniu.connection.messages",
		metric.WithDescription("Inbound messages dispatched to subscribers"),
		metric.WithUnit("{message}"),
	); err != nil {
		return nil, fmt.Errorf("create messages counter: %w", err)
	}

	gauge, err := meter.Int64ObservableGauge("douniu.connection.state",
		metric.WithDescription("Current connection state, 1 for the active state"),
	)
	if err != nil {
		return nil, fmt.Errorf("create state gauge: %w", err)
	}
	if _, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		current := connection.State(r.state.Load())
		for _, s := range allStates {
			var v int64
			if s == current {
				v = 1
			}
			o.ObserveInt64(gauge, v, metric.WithAttributes(attribute.String("state", s.String())))
		}
		return nil
	}, gauge); err != nil {
		return nil, fmt.Errorf("register state callback: %w", err)
	}

	return r, nil
}

// Hooks returns Manager hooks feeding this recorder.
func (r *Recorder) Hooks() connection.Hooks {
	return connection.Hooks{
		OnStateChange:        r.stateChanged,
		OnReconnectScheduled: r.reconnectScheduled,
		OnGiveUp:             r.gaveUp,
		OnHeartbeat:          r.heartbeat,
		OnMessage:            r.message,
	}
}

func (r *Recorder) stateChanged(from, to connection.State) {
	r.state.Store(int32(to))
	r.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

func (r *Recorder) reconnectScheduled(attempt int, delay time.Duration) {
	ctx := context.Background()
	r.reconnects.Add(ctx, 1)
	r.reconnectDelay.Record(ctx, delay.Seconds())
}

func (r *Recorder) gaveUp(int) {
	r.giveUps.Add(context.Background(), 1)
}

func (r *Recorder) heartbeat(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.heartbeats.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", result)))
}

func (r *Recorder) message(topic string, raw bool) {
	r.messages.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.Bool("raw", raw),
	))
}
