package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/juchong/vllm-dashboard/internal/store"
)

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.vllm.ListConfigs()
	if err != nil {
		s.logger.Error("list configs", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list configs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": configs})
}

func (s *Server) handleActiveConfig(w http.ResponseWriter, r *http.Request) {
	active, err := s.vllm.GetActiveConfig()
	if err != nil {
		s.logger.Error("active config", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to read active config")
		return
	}
	if active == nil {
		writeJSON(w, http.StatusOK, map[string]any{"active": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": active})
}

type switchConfigRequest struct {
	ConfigFilename string `json:"config_filename"`
}

func (s *Server) handleSwitchConfig(w http.ResponseWriter, r *http.Request) {
	var req switchConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.ConfigFilename = strings.TrimSpace(req.ConfigFilename)
	if req.ConfigFilename == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "config_filename is required")
		return
	}
	// Filenames are resolved inside the configs dir only.
	if strings.ContainsAny(req.ConfigFilename, "/\\") {
		writeError(w, http.StatusBadRequest, "invalid_input", "config_filename must be a bare filename")
		return
	}

	result, err := s.vllm.SwitchConfig(r.Context(), req.ConfigFilename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "switch_failed", err.Error())
		return
	}
	s.recordEvent(r, store.EventConfigSwitched, req.ConfigFilename, "model "+result.Model)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleVLLMStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.vllm.Status(r.Context()))
}

func (s *Server) handleProxyStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.vllm.ProxyStatus(r.Context()))
}

func (s *Server) handleVLLMStart(w http.ResponseWriter, r *http.Request) {
	msg, err := s.vllm.Start(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "vllm_start_failed", err.Error())
		return
	}
	s.recordEvent(r, store.EventContainerAction, "vllm", "start")
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleVLLMStop(w http.ResponseWriter, r *http.Request) {
	msg, err := s.vllm.Stop(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "vllm_stop_failed", err.Error())
		return
	}
	s.recordEvent(r, store.EventContainerAction, "vllm", "stop")
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleVLLMRestart(w http.ResponseWriter, r *http.Request) {
	msg, err := s.vllm.Restart(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "vllm_restart_failed", err.Error())
		return
	}
	s.recordEvent(r, store.EventContainerAction, "vllm", "restart")
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleListEnvFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"env_files": s.vllm.ListEnvFiles()})
}

func (s *Server) handleGetEnvFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	content, err := s.vllm.GetEnvFile(filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "env_file_not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"filename": filename,
		"content":  content,
	})
}

type updateEnvFileRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleUpdateEnvFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	var req updateEnvFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if err := s.vllm.UpdateEnvFile(filename, req.Content); err != nil {
		writeError(w, http.StatusBadRequest, "env_update_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Environment file updated"})
}
