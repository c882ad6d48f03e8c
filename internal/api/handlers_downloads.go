package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/juchong/vllm-dashboard/internal/core"
	"github.com/juchong/vllm-dashboard/internal/hub"
)

type startDownloadRequest struct {
	ModelName string  `json:"model_name"`
	Revision  *string `json:"revision"`
}

func (s *Server) handleStartDownload(w http.ResponseWriter, r *http.Request) {
	var req startDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.ModelName = strings.TrimSpace(req.ModelName)
	if req.ModelName == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "model_name is required")
		return
	}
	if !hub.ValidModelName(req.ModelName) {
		writeError(w, http.StatusBadRequest, "invalid_input", "model_name must look like org/name")
		return
	}

	taskID, err := s.tracker.Start(req.ModelName, req.Revision)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateDownload) {
			writeError(w, http.StatusConflict, "duplicate_download", err.Error())
			return
		}
		s.logger.Error("start download", "model", req.ModelName, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to start download")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id":    taskID,
		"model_name": req.ModelName,
		"status":     string(core.DownloadStatusPending),
	})
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"downloads": s.tracker.All()})
}

func (s *Server) handleActiveDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"downloads": s.tracker.Active()})
}

func (s *Server) handleDownloadStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	view, ok := s.tracker.Status(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "task_not_found", "download task not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCancelDownload(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if _, ok := s.tracker.Status(taskID); !ok {
		writeError(w, http.StatusNotFound, "task_not_found", "download task not found")
		return
	}
	if !s.tracker.Cancel(taskID) {
		writeError(w, http.StatusConflict, "not_cancellable", "download already finished")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"task_id": taskID,
		"status":  string(core.DownloadStatusCancelled),
	})
}
