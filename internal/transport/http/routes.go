package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"live-quiz-service/internal/app"
)

// NewMux wires the websocket endpoint, health, metrics and room snapshots.
func NewMux(ws *WSHandler, coord *app.Coordinator, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /rooms/{roomId}", roomSnapshot(coord))
	return mux
}

var errNoRoom = errors.New("room id required")

func roomSnapshot(coord *app.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("roomId")
		if roomID == "" {
			http.Error(w, errNoRoom.Error(), http.StatusBadRequest)
			return
		}
		snap, ok := coord.Snapshot(roomID)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}
}
