package vllm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListEnvFiles reports the known env files and whether they exist on disk.
func (s *Service) ListEnvFiles() []EnvFileInfo {
	infos := make([]EnvFileInfo, 0, len(envFiles))
	for _, info := range envFiles {
		_, err := os.Stat(filepath.Join(s.configsDir, info.Filename))
		info.Exists = err == nil
		infos = append(infos, info)
	}
	return infos
}

// GetEnvFile returns the raw contents of a known env file. Unknown names
// are rejected; a known but absent file reads as empty.
func (s *Service) GetEnvFile(filename string) (string, error) {
	if !knownEnvFile(filename, false) {
		return "", fmt.Errorf("unknown env file: %s", filename)
	}
	data, err := os.ReadFile(filepath.Join(s.configsDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read env file: %w", err)
	}
	return string(data), nil
}

// UpdateEnvFile replaces the contents of an editable env file. env.active
// is generated from the others and cannot be edited directly.
func (s *Service) UpdateEnvFile(filename, content string) error {
	if !knownEnvFile(filename, true) {
		return fmt.Errorf("cannot edit %s", filename)
	}
	if err := os.WriteFile(filepath.Join(s.configsDir, filename), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	s.logger.Info("updated env file", "filename", filename)
	return nil
}

func knownEnvFile(filename string, editableOnly bool) bool {
	for _, info := range envFiles {
		if info.Filename == filename {
			return !editableOnly || info.Editable
		}
	}
	return false
}

// readEnvFile parses KEY=VALUE lines, skipping comments and blanks.
func (s *Service) readEnvFile(filename string) map[string]string {
	vars := make(map[string]string)
	data, err := os.ReadFile(filepath.Join(s.configsDir, filename))
	if err != nil {
		return vars
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		vars[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return vars
}

// writeActiveEnvFile regenerates env.active by combining env.hardware with
// the model-type specific env file.
func (s *Service) writeActiveEnvFile(modelType string) error {
	hardware := s.readEnvFile("env.hardware")
	modelTypeFilename := "env." + strings.ReplaceAll(modelType, "_", "-")
	modelTypeEnv := s.readEnvFile(modelTypeFilename)

	lines := []string{
		"# Active vLLM environment configuration",
		"# Managed by vllm-dashboard - DO NOT EDIT MANUALLY",
		"# Generated from: env.hardware + " + modelTypeFilename,
		"",
		"# Hardware-specific settings (from env.hardware)",
	}
	lines = append(lines, sortedEnvLines(hardware)...)

	if len(modelTypeEnv) > 0 {
		lines = append(lines, "", "# Model-specific settings (from "+modelTypeFilename+")")
		lines = append(lines, sortedEnvLines(modelTypeEnv)...)
	} else {
		lines = append(lines, "", fmt.Sprintf("# Model type: %s (no additional env vars)", modelType))
	}

	path := filepath.Join(s.configsDir, activeEnvFile)
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

func sortedEnvLines(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+vars[key])
	}
	return lines
}
