package vllm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/juchong/vllm-dashboard/internal/docker"
)

const (
	ContainerName      = "vllm"
	ProxyContainerName = "vllm-proxy"

	activeConfigFile = "active.yaml"
	activeEnvFile    = "env.active"
)

// ContainerRuntime is the slice of the docker service the vLLM manager uses.
type ContainerRuntime interface {
	Inspect(ctx context.Context, name string) docker.ContainerState
	StartContainer(ctx context.Context, name, profile string) (string, error)
	StopContainer(ctx context.Context, name string) (string, error)
	ComposeRecreate(ctx context.Context, services ...string) (string, error)
}

// ConfigSummary describes one stored vLLM config profile.
type ConfigSummary struct {
	Filename           string `json:"filename"`
	Name               string `json:"name"`
	Model              string `json:"model"`
	ModelType          string `json:"model_type"`
	MaxModelLen        int    `json:"max_model_len"`
	TensorParallelSize int    `json:"tensor_parallel_size"`
}

// ActiveConfig is the currently applied profile plus which file it came from.
type ActiveConfig struct {
	Config    map[string]any `json:"config"`
	Filename  *string        `json:"filename"`
	ModelType string         `json:"model_type"`
}

// SwitchResult reports the outcome of a config switch.
type SwitchResult struct {
	Success        bool   `json:"success"`
	ConfigFilename string `json:"config_filename"`
	Model          string `json:"model"`
	ModelType      string `json:"model_type"`
	RestartOutput  string `json:"restart_output,omitempty"`
}

// EnvFileInfo describes one of the known environment files.
type EnvFileInfo struct {
	Filename    string `json:"filename"`
	Description string `json:"description"`
	Editable    bool   `json:"editable"`
	Exists      bool   `json:"exists"`
}

// Known env files. env.active is generated, never edited by hand.
var envFiles = []EnvFileInfo{
	{Filename: "env.hardware", Description: "Hardware-specific settings (NCCL tuning)", Editable: true},
	{Filename: "env.moe-fp8", Description: "FP8 MoE model optimizations", Editable: true},
	{Filename: "env.dense", Description: "Dense model settings", Editable: true},
	{Filename: activeEnvFile, Description: "Active configuration (auto-generated)", Editable: false},
}

// Service manages vLLM config profiles and the inference containers.
type Service struct {
	runtime    ContainerRuntime
	configsDir string
	logger     *slog.Logger
}

// NewService constructs the vLLM manager.
func NewService(runtime ContainerRuntime, configsDir string, logger *slog.Logger) *Service {
	return &Service{runtime: runtime, configsDir: configsDir, logger: logger}
}

// ListConfigs returns every stored profile (active.yaml excluded), sorted by
// served model name. Unreadable files are skipped with a warning.
func (s *Service) ListConfigs() ([]ConfigSummary, error) {
	entries, err := os.ReadDir(s.configsDir)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}

	configs := make([]ConfigSummary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") || name == activeConfigFile {
			continue
		}
		cfg, err := s.readConfig(filepath.Join(s.configsDir, name))
		if err != nil {
			s.logger.Warn("failed to read config", "filename", name, "err", err)
			continue
		}
		configs = append(configs, ConfigSummary{
			Filename:           name,
			Name:               stringField(cfg, "served_model_name", name),
			Model:              stringField(cfg, "model", "unknown"),
			ModelType:          DetectModelType(cfg),
			MaxModelLen:        intField(cfg, "max_model_len"),
			TensorParallelSize: intFieldDefault(cfg, "tensor_parallel_size", 1),
		})
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs, nil
}

// GetActiveConfig returns the applied profile, or nil if none is active.
func (s *Service) GetActiveConfig() (*ActiveConfig, error) {
	activePath := filepath.Join(s.configsDir, activeConfigFile)
	if _, err := os.Stat(activePath); os.IsNotExist(err) {
		return nil, nil
	}
	cfg, err := s.readConfig(activePath)
	if err != nil {
		return nil, fmt.Errorf("read active config: %w", err)
	}

	// Find which stored profile the active copy came from by matching the
	// model field.
	var filename *string
	if entries, err := os.ReadDir(s.configsDir); err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasSuffix(name, ".yaml") || name == activeConfigFile {
				continue
			}
			candidate, err := s.readConfig(filepath.Join(s.configsDir, name))
			if err != nil {
				continue
			}
			if stringField(candidate, "model", "") == stringField(cfg, "model", "") {
				filename = &name
				break
			}
		}
	}

	return &ActiveConfig{
		Config:    cfg,
		Filename:  filename,
		ModelType: DetectModelType(cfg),
	}, nil
}

// SwitchConfig applies a stored profile: copies it to active.yaml,
// regenerates env.active for the profile's model type and recreates the
// vllm and proxy containers.
func (s *Service) SwitchConfig(ctx context.Context, configFilename string) (*SwitchResult, error) {
	configPath := filepath.Join(s.configsDir, configFilename)
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s", configFilename)
	}

	cfg, err := s.readConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	modelType := DetectModelType(cfg)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.configsDir, activeConfigFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write active config: %w", err)
	}
	s.logger.Info("activated config", "filename", configFilename)

	if err := s.writeActiveEnvFile(modelType); err != nil {
		return nil, fmt.Errorf("write active env: %w", err)
	}
	s.logger.Info("updated active env", "model_type", modelType)

	out, err := s.runtime.ComposeRecreate(ctx, ContainerName, ProxyContainerName)
	if err != nil {
		return nil, fmt.Errorf("restart containers: %w", err)
	}

	return &SwitchResult{
		Success:        true,
		ConfigFilename: configFilename,
		Model:          stringField(cfg, "model", ""),
		ModelType:      modelType,
		RestartOutput:  out,
	}, nil
}

// Status reports the state of the vllm container.
func (s *Service) Status(ctx context.Context) docker.ContainerState {
	return s.runtime.Inspect(ctx, ContainerName)
}

// ProxyStatus reports the state of the vllm-proxy container.
func (s *Service) ProxyStatus(ctx context.Context) docker.ContainerState {
	return s.runtime.Inspect(ctx, ProxyContainerName)
}

// Start starts the vllm container.
func (s *Service) Start(ctx context.Context) (string, error) {
	return s.runtime.StartContainer(ctx, ContainerName, "")
}

// Stop stops the vllm container.
func (s *Service) Stop(ctx context.Context) (string, error) {
	return s.runtime.StopContainer(ctx, ContainerName)
}

// Restart recreates both vllm and the proxy so external access keeps
// working after the restart.
func (s *Service) Restart(ctx context.Context) (string, error) {
	out, err := s.runtime.ComposeRecreate(ctx, ContainerName, ProxyContainerName)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (s *Service) readConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg map[string]any
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DetectModelType classifies a config by its model name. MoE models get
// FP8/FlashInfer env settings, everything else runs with the dense defaults.
func DetectModelType(cfg map[string]any) string {
	model := strings.ToLower(stringField(cfg, "model", ""))
	if strings.Contains(model, "a3b") || strings.Contains(model, "moe") {
		return "moe_fp8"
	}
	return "dense"
}

func stringField(cfg map[string]any, key, fallback string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return fallback
}

func intField(cfg map[string]any, key string) int {
	return intFieldDefault(cfg, key, 0)
}

func intFieldDefault(cfg map[string]any, key string, fallback int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}
