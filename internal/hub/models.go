package hub

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/juchong/vllm-dashboard/internal/fsutil"
)

// LocalModel describes one downloaded model directory.
type LocalModel struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
	IsValid   bool   `json:"is_valid"`
}

// Files whose presence marks a directory as a usable model snapshot.
// Mistral-style repos use "consolidated" naming instead of "model".
var modelIndicators = []string{
	"config.json",
	"model.safetensors",
	"model.safetensors.index.json",
	"pytorch_model.bin",
	"pytorch_model.bin.index.json",
	"model-00001-of-",
	"tokenizer.json",
	"tokenizer_config.json",
	"consolidated.safetensors",
	"consolidated.safetensors.index.json",
	"consolidated-00001-of-",
	"params.json",
}

const (
	maxScanDepth = 3
	// Directories smaller than this are metadata-only leftovers, not models.
	minModelSize = 100 * 1024 * 1024
)

var modelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+/[a-zA-Z0-9_.-]+$`)

// ValidModelName reports whether name looks like an org/model hub id.
func ValidModelName(name string) bool {
	return modelNamePattern.MatchString(name)
}

// ListModels scans the models directory for valid model snapshots, handling
// both plain org/model layouts and the hub cache layout
// (models--org--name/snapshots/<rev>). Duplicate names keep the largest
// entry and undersized metadata directories are dropped.
func (c *Client) ListModels() ([]LocalModel, error) {
	if _, err := os.Stat(c.modelsDir); err != nil {
		if os.IsNotExist(err) {
			return []LocalModel{}, nil
		}
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var found []LocalModel
	c.scanForModels(c.modelsDir, &found, 0)

	byName := make(map[string]LocalModel)
	for _, m := range found {
		if prev, ok := byName[m.Name]; !ok || m.Size > prev.Size {
			byName[m.Name] = m
		}
	}

	models := make([]LocalModel, 0, len(byName))
	for _, m := range byName {
		if m.Size > minModelSize {
			models = append(models, m)
		}
	}
	sort.Slice(models, func(i, j int) bool {
		return strings.ToLower(models[i].Name) < strings.ToLower(models[j].Name)
	})
	return models, nil
}

func (c *Client) scanForModels(path string, models *[]LocalModel, depth int) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		modelPath := filepath.Join(path, entry.Name())

		if cacheName := parseHubCacheName(entry.Name()); cacheName != "" {
			if snapshot := latestSnapshot(modelPath); snapshot != "" && isValidModelDir(snapshot) {
				size := fsutil.DirectorySize(snapshot)
				*models = append(*models, LocalModel{
					Name:      cacheName,
					Path:      snapshot,
					Size:      size,
					SizeHuman: humanize.IBytes(uint64(size)),
					IsValid:   true,
				})
				continue
			}
		}

		if isValidModelDir(modelPath) {
			size := fsutil.DirectorySize(modelPath)
			rel, err := filepath.Rel(c.modelsDir, modelPath)
			if err != nil {
				rel = entry.Name()
			}
			*models = append(*models, LocalModel{
				Name:      filepath.ToSlash(rel),
				Path:      modelPath,
				Size:      size,
				SizeHuman: humanize.IBytes(uint64(size)),
				IsValid:   true,
			})
		} else if depth < maxScanDepth {
			c.scanForModels(modelPath, models, depth+1)
		}
	}
}

// parseHubCacheName converts a hub cache directory name like
// "models--org--model-name" into "org/model-name", or returns "".
func parseHubCacheName(dirName string) string {
	if !strings.HasPrefix(dirName, "models--") {
		return ""
	}
	parts := strings.Split(strings.TrimPrefix(dirName, "models--"), "--")
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts, "/")
}

func latestSnapshot(cacheDir string) string {
	snapshotsDir := filepath.Join(cacheDir, "snapshots")
	entries, err := os.ReadDir(snapshotsDir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return filepath.Join(snapshotsDir, entry.Name())
		}
	}
	return ""
}

func isValidModelDir(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		info, err := os.Stat(filepath.Join(path, entry.Name()))
		if err != nil || info.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		for _, indicator := range modelIndicators {
			if strings.Contains(name, indicator) {
				return true
			}
		}
	}
	return false
}

// DeleteModel removes a model directory. The path must resolve under the
// models directory.
func (c *Client) DeleteModel(path string) (string, error) {
	if !fsutil.WithinRoot(c.modelsDir, path) {
		return "", fmt.Errorf("path %s is outside the models directory", path)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("model path %s does not exist", path)
	}
	if err := os.RemoveAll(path); err != nil {
		return "", fmt.Errorf("failed to delete model: %w", err)
	}
	return fmt.Sprintf("Model at %s deleted successfully", path), nil
}

// RenameModel moves a model directory. Both paths must resolve under the
// models directory.
func (c *Client) RenameModel(oldPath, newPath string) (string, error) {
	if !fsutil.WithinRoot(c.modelsDir, oldPath) || !fsutil.WithinRoot(c.modelsDir, newPath) {
		return "", fmt.Errorf("paths must stay inside the models directory")
	}
	if _, err := os.Stat(oldPath); err != nil {
		return "", fmt.Errorf("model path %s does not exist", oldPath)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return "", fmt.Errorf("failed to rename model: %w", err)
	}
	return fmt.Sprintf("Model renamed from %s to %s", oldPath, newPath), nil
}
