package profiles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/juchong/vllm-dashboard/internal/fsutil"
)

const pairsFilename = "model_config_pairs.yaml"

// Pair associates a model with the config file that serves it.
type Pair struct {
	ModelName  string `json:"model_name"`
	ConfigPath string `json:"config_path"`
}

// ModelConfig is the lookup result for a model: the parsed config when one
// exists, and the path a new config for this model would live at otherwise.
type ModelConfig struct {
	Config     map[string]any `json:"config"`
	ConfigPath string         `json:"config_path"`
}

// Store manages model config YAML files and the model-to-config pair table.
// The pair table is persisted to model_config_pairs.yaml in the configs dir.
type Store struct {
	configsDir   string
	templatesDir string
	pairsFile    string

	mu    sync.Mutex
	pairs map[string]string
}

// NewStore loads (or initializes) the pair table under configsDir.
func NewStore(configsDir string) (*Store, error) {
	templatesDir := filepath.Join(configsDir, "templates")
	if err := fsutil.EnsureDir(templatesDir); err != nil {
		return nil, fmt.Errorf("ensure templates dir: %w", err)
	}

	s := &Store{
		configsDir:   configsDir,
		templatesDir: templatesDir,
		pairsFile:    filepath.Join(configsDir, pairsFilename),
	}
	pairs, err := s.loadPairs()
	if err != nil {
		return nil, err
	}
	s.pairs = pairs
	return s, nil
}

// Templates lists the available configuration template files.
func (s *Store) Templates() []string {
	entries, err := os.ReadDir(s.templatesDir)
	if err != nil {
		return []string{}
	}
	templates := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			templates = append(templates, name)
		}
	}
	return templates
}

// SaveConfig writes a model's config to disk and records the pairing.
func (s *Store) SaveConfig(modelName string, config map[string]any) (string, error) {
	configPath := filepath.Join(s.configsDir, fsutil.SanitizeFilename(modelName)+".yaml")
	data, err := yaml.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to save configuration: %w", err)
	}
	if err := fsutil.EnsureDir(filepath.Dir(configPath)); err != nil {
		return "", fmt.Errorf("failed to save configuration: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save configuration: %w", err)
	}

	s.mu.Lock()
	s.pairs[modelName] = configPath
	err = s.savePairsLocked()
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Configuration saved to %s", configPath), nil
}

// GetModelConfig resolves the config for a model: first via the pair table,
// then by searching config files whose model field matches. When nothing
// matches, the expected path for a new config is returned with a nil config.
func (s *Store) GetModelConfig(modelName string) (ModelConfig, error) {
	s.mu.Lock()
	pairPath, ok := s.pairs[modelName]
	s.mu.Unlock()

	if ok {
		if cfg, err := readYAML(pairPath); err == nil {
			return ModelConfig{Config: cfg, ConfigPath: pairPath}, nil
		} else if !os.IsNotExist(err) {
			return ModelConfig{}, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	entries, _ := os.ReadDir(s.configsDir)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") || name == "active.yaml" || name == pairsFilename {
			continue
		}
		configPath := filepath.Join(s.configsDir, name)
		cfg, err := readYAML(configPath)
		if err != nil {
			continue
		}
		configModel, _ := cfg["model"].(string)
		servedName, _ := cfg["served_model_name"].(string)
		if matchesModel(modelName, configModel, servedName) {
			return ModelConfig{Config: cfg, ConfigPath: configPath}, nil
		}
	}

	expected := filepath.Join(s.configsDir, fsutil.SanitizeFilename(modelName)+".yaml")
	return ModelConfig{Config: nil, ConfigPath: expected}, nil
}

// Associate records that a model is served by an existing config file.
func (s *Store) Associate(modelName, configPath string) (string, error) {
	if _, err := os.Stat(configPath); err != nil {
		return "", fmt.Errorf("config file %s does not exist", configPath)
	}
	s.mu.Lock()
	s.pairs[modelName] = configPath
	err := s.savePairsLocked()
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Model %s associated with config %s", modelName, configPath), nil
}

// Pairs lists all recorded model/config pairs.
func (s *Store) Pairs() []Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	pairs := make([]Pair, 0, len(s.pairs))
	for model, path := range s.pairs {
		pairs = append(pairs, Pair{ModelName: model, ConfigPath: path})
	}
	return pairs
}

func (s *Store) loadPairs() (map[string]string, error) {
	data, err := os.ReadFile(s.pairsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to load config pairs: %w", err)
	}
	pairs := make(map[string]string)
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("failed to load config pairs: %w", err)
	}
	return pairs, nil
}

func (s *Store) savePairsLocked() error {
	data, err := yaml.Marshal(s.pairs)
	if err != nil {
		return fmt.Errorf("failed to save config pairs: %w", err)
	}
	if err := os.WriteFile(s.pairsFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config pairs: %w", err)
	}
	return nil
}

func readYAML(path string) (map[string]any, error) {
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

// matchesModel mirrors the loose matching the dashboard UI relies on: exact
// model or served name, or either containing the other case-insensitively.
func matchesModel(modelName, configModel, servedName string) bool {
	if modelName == configModel || modelName == servedName {
		return true
	}
	if configModel == "" {
		return false
	}
	lowerModel := strings.ToLower(modelName)
	lowerConfig := strings.ToLower(configModel)
	return strings.Contains(lowerConfig, lowerModel) || strings.Contains(lowerModel, lowerConfig)
}
