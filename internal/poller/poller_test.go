package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/douniu-client/internal/api"
	"github.com/rickgao/douniu-client/internal/model"
)

// roomServer serves one room and its players.
func roomServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		if r.Header.Get("satoken") != "tok" {
			t.Errorf("satoken = %q, want tok", r.Header.Get("satoken"))
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/room/code/a1b2c3":
			w.Write([]byte(`{"code":200,"message":"success","data":{"id":7,"roomCode":"a1b2c3","status":1,"currentRound":4}}`))
		case "/room/7/players":
			w.Write([]byte(`{"code":200,"message":"success","data":[{"userId":3,"seatNumber":1},{"userId":4,"seatNumber":2}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func testConfig(interval time.Duration) Config {
	return Config{
		RoomCode: "a1b2c3",
		RoomID:   7,
		Token:    "tok",
		Interval: interval,
		Timeout:  5 * time.Second,
	}
}

func TestPoller_Poll(t *testing.T) {
	server := roomServer(t, nil)
	defer server.Close()

	client := api.NewClient(server.URL, api.WithTimeout(5*time.Second))

	var got model.RoomUpdate
	handler := SnapshotHandlerFunc(func(s model.RoomUpdate) error {
		got = s
		return nil
	})

	p := New(testConfig(time.Hour), client, handler, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.ctx = ctx

	if err := p.poll(); err != nil {
		t.Fatalf("poll failed: %v", err)
	}

	if got.Room.ID != 7 || got.Room.CurrentRound != 4 {
		t.Errorf("room = %+v", got.Room)
	}
	if len(got.Players) != 2 {
		t.Errorf("players = %d, want 2", len(got.Players))
	}
	if p.Polls() != 1 {
		t.Errorf("Polls() = %d, want 1", p.Polls())
	}
}

func TestPoller_PollErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":500,"message":"房间不存在","data":null}`))
	}))
	defer server.Close()

	client := api.NewClient(server.URL, api.WithRetries(0, time.Millisecond))

	var called atomic.Bool
	handler := SnapshotHandlerFunc(func(model.RoomUpdate) error {
		called.Store(true)
		return nil
	})

	p := New(testConfig(time.Hour), client, handler, nil, nil)
	p.ctx = context.Background()

	var respErr *api.ResponseError
	if err := p.poll(); !errors.As(err, &respErr) {
		t.Fatalf("poll error = %v, want *api.ResponseError", err)
	}
	if called.Load() {
		t.Error("handler called for a failed poll")
	}
	if p.Polls() != 0 {
		t.Errorf("Polls() = %d, want 0", p.Polls())
	}
}

func TestPoller_StartStop(t *testing.T) {
	server := roomServer(t, nil)
	defer server.Close()

	client := api.NewClient(server.URL)

	var called atomic.Bool
	handler := SnapshotHandlerFunc(func(model.RoomUpdate) error {
		called.Store(true)
		return nil
	})

	p := New(testConfig(50*time.Millisecond), client, handler, nil, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait for at least one poll.
	time.Sleep(200 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if !called.Load() {
		t.Error("handler was never called")
	}
}

func TestPoller_Gate(t *testing.T) {
	var requests atomic.Int32
	server := roomServer(t, &requests)
	defer server.Close()

	client := api.NewClient(server.URL)

	var open atomic.Bool
	p := New(testConfig(20*time.Millisecond), client, nil, open.Load, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Gate closed: no requests.
	time.Sleep(100 * time.Millisecond)
	if got := requests.Load(); got != 0 {
		t.Errorf("requests with closed gate = %d, want 0", got)
	}

	open.Store(true)
	time.Sleep(150 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if requests.Load() == 0 {
		t.Error("no requests after the gate opened")
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{RoomCode: "x"}, nil, nil, nil, nil)
	if p.cfg.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", p.cfg.Interval)
	}
	if p.cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", p.cfg.Timeout)
	}
}
