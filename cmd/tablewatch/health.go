package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/douniu-client/internal/connection"
	"github.com/rickgao/douniu-client/internal/table"
)

type connectionState interface {
	State() connection.State
	Attempts() int
	Exhausted() bool
	Handle() *connection.Handle
}

type roomStats interface {
	Stats() table.Stats
}

// newHealthHandler reports the connection state. Disconnected is unhealthy;
// connecting and reconnecting are degraded.
func newHealthHandler(conn connectionState, watcher roomStats) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		state := conn.State()

		health := struct {
			Status    string      `json:"status"`
			State     string      `json:"state"`
			Attempts  int         `json:"attempts"`
			Exhausted bool        `json:"exhausted"`
			Handle    string      `json:"handle,omitempty"`
			Topics    []string    `json:"topics,omitempty"`
			Watcher   table.Stats `json:"watcher"`
		}{
			State:     state.String(),
			Attempts:  conn.Attempts(),
			Exhausted: conn.Exhausted(),
			Watcher:   watcher.Stats(),
		}

		switch state {
		case connection.StateConnected:
			health.Status = "healthy"
		case connection.StateDisconnected:
			health.Status = "unhealthy"
		default:
			health.Status = "degraded"
		}

		if h := conn.Handle(); h != nil {
			health.Handle = h.ID()
			health.Topics = h.Topics()
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
