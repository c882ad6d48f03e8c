package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juchong/vllm-dashboard/internal/store"
)

func (s *Server) handleContainersStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"containers": s.containers.InferenceStatus(r.Context()),
	})
}

func (s *Server) handleContainerStart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	profile := r.URL.Query().Get("profile")
	msg, err := s.containers.StartContainer(r.Context(), name, profile)
	if err != nil {
		writeError(w, http.StatusBadGateway, "container_start_failed", err.Error())
		return
	}
	s.recordEvent(r, store.EventContainerAction, name, "start")
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleContainerStop(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	msg, err := s.containers.StopContainer(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusBadGateway, "container_stop_failed", err.Error())
		return
	}
	s.recordEvent(r, store.EventContainerAction, name, "stop")
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleContainerRestart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	msg, err := s.containers.RestartContainer(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusBadGateway, "container_restart_failed", err.Error())
		return
	}
	s.recordEvent(r, store.EventContainerAction, name, "restart")
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleContainerLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tail := parseIntDefault(r.URL.Query().Get("tail"), 100)
	logs, err := s.containers.Logs(r.Context(), name, tail)
	if err != nil {
		writeError(w, http.StatusBadGateway, "logs_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name": name,
		"logs": logs,
	})
}
