package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/juchong/vllm-dashboard/internal/hub"
	"github.com/juchong/vllm-dashboard/internal/store"
)

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.hub.ListModels()
	if err != nil {
		s.logger.Error("list models", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list models")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) handleValidateModel(w http.ResponseWriter, r *http.Request) {
	modelName := strings.TrimSpace(r.URL.Query().Get("model"))
	if modelName == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "model query parameter is required")
		return
	}
	if !hub.ValidModelName(modelName) {
		writeJSON(w, http.StatusOK, hub.ModelInfo{
			Valid: false,
			Error: "model name must look like org/name",
		})
		return
	}
	writeJSON(w, http.StatusOK, s.hub.Validate(r.Context(), modelName))
}

func (s *Server) handleModelRevisions(w http.ResponseWriter, r *http.Request) {
	modelName := strings.TrimSpace(r.URL.Query().Get("model"))
	if modelName == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "model query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, s.hub.GetRevisions(r.Context(), modelName))
}

type deleteModelRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	var req deleteModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "path is required")
		return
	}
	msg, err := s.hub.DeleteModel(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "delete_failed", err.Error())
		return
	}
	s.recordEvent(r, store.EventModelDeleted, req.Path, "")
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

type renameModelRequest struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

func (s *Server) handleRenameModel(w http.ResponseWriter, r *http.Request) {
	var req renameModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.OldPath == "" || req.NewPath == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "old_path and new_path are required")
		return
	}
	msg, err := s.hub.RenameModel(req.OldPath, req.NewPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "rename_failed", err.Error())
		return
	}
	s.recordEvent(r, store.EventModelRenamed, req.OldPath, "to "+req.NewPath)
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}

// recordEvent appends to the operations log when one is configured. Logged
// on failure, never surfaced to the client.
func (s *Server) recordEvent(r *http.Request, kind, subject, detail string) {
	if s.events == nil {
		return
	}
	if err := s.events.AppendEvent(r.Context(), kind, subject, detail); err != nil {
		s.logger.Warn("append event", "kind", kind, "err", err)
	}
}
