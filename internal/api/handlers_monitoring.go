package api

import (
	"net/http"

	"github.com/juchong/vllm-dashboard/internal/monitor"
)

func (s *Server) handleGPUStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"gpus": monitor.GPUStats(r.Context(), s.logger),
	})
}

func (s *Server) handleGPUProcesses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"processes": monitor.GPUProcesses(r.Context(), s.logger),
	})
}

func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, monitor.SystemStats(s.logger))
}

func (s *Server) handleContainerStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"containers": s.containers.Stats(r.Context()),
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []any{}})
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	events, err := s.events.ListEvents(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list events", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
