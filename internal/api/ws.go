package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/juchong/vllm-dashboard/internal/monitor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is served from the same host; token auth covers the
	// upgrade, so origin checking adds nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type updateFrame struct {
	Type       string `json:"type"`
	Timestamp  string `json:"timestamp"`
	GPUs       any    `json:"gpus"`
	System     any    `json:"system"`
	Containers any    `json:"containers"`
	Downloads  any    `json:"downloads"`
}

// handleUpdates streams monitoring snapshots over a websocket until the
// client disconnects.
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	if s.authToken != "" && r.URL.Query().Get("token") != s.authToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	// Reads are discarded but must be drained for close frames to be
	// processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.monitorInterval)
	defer ticker.Stop()

	for {
		frame := updateFrame{
			Type:       "monitoring_update",
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			GPUs:       monitor.GPUStats(r.Context(), s.logger),
			System:     monitor.SystemStats(s.logger),
			Containers: s.containers.Stats(r.Context()),
			Downloads:  s.tracker.Active(),
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(frame); err != nil {
			s.logger.Debug("websocket client gone", "remote", r.RemoteAddr, "err", err)
			return
		}

		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
