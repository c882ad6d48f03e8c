package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": s.profiles.Templates()})
}

type saveConfigRequest struct {
	ModelName string         `json:"model_name"`
	Config    map[string]any `json:"config"`
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var req saveConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.ModelName = strings.TrimSpace(req.ModelName)
	if req.ModelName == "" || len(req.Config) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "model_name and config are required")
		return
	}
	msg, err := s.profiles.SaveConfig(req.ModelName, req.Config)
	if err != nil {
		s.logger.Error("save config", "model", req.ModelName, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to save configuration")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleGetModelConfig(w http.ResponseWriter, r *http.Request) {
	modelName := strings.TrimSpace(r.URL.Query().Get("name"))
	if modelName == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "name query parameter is required")
		return
	}
	mc, err := s.profiles.GetModelConfig(modelName)
	if err != nil {
		s.logger.Error("get model config", "model", modelName, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load configuration")
		return
	}
	writeJSON(w, http.StatusOK, mc)
}

type associateConfigRequest struct {
	ModelName  string `json:"model_name"`
	ConfigPath string `json:"config_path"`
}

func (s *Server) handleAssociateConfig(w http.ResponseWriter, r *http.Request) {
	var req associateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.ModelName == "" || req.ConfigPath == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "model_name and config_path are required")
		return
	}
	msg, err := s.profiles.Associate(req.ModelName, req.ConfigPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "associate_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pairs": s.profiles.Pairs()})
}
