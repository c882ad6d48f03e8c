package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/juchong/vllm-dashboard/internal/fsutil"
)

// Client talks to the Hugging Face Hub REST API and downloads model
// snapshots into the local models directory. It implements core.Fetcher.
type Client struct {
	endpoint  string
	token     string
	modelsDir string
	client    *http.Client
	logger    *slog.Logger
}

// NewClient constructs a hub client. endpoint is normally
// https://huggingface.co; token may be empty for public repositories.
func NewClient(endpoint, token, modelsDir string, logger *slog.Logger) *Client {
	return &Client{
		endpoint:  endpoint,
		token:     token,
		modelsDir: modelsDir,
		client: &http.Client{
			// Individual file downloads can be tens of gigabytes; no
			// client-level timeout, cancellation comes from the context.
			Timeout: 0,
		},
		logger: logger,
	}
}

// ModelsDir returns the root directory downloads are placed under.
func (c *Client) ModelsDir() string {
	return c.modelsDir
}

// treeEntry is one entry of the /tree API response.
type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Fetch downloads a full model snapshot into modelsDir/modelName. Files that
// already exist with the expected size are skipped, so an interrupted
// download resumes where it left off.
func (c *Client) Fetch(ctx context.Context, modelName string, revision *string) (string, error) {
	rev := "main"
	if revision != nil && *revision != "" {
		rev = *revision
	}

	localDir := filepath.Join(c.modelsDir, modelName)
	if err := fsutil.EnsureDir(localDir); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}

	files, err := c.listFiles(ctx, modelName, rev)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}

	for _, entry := range files {
		if entry.Type != "file" {
			continue
		}
		dest := filepath.Join(localDir, filepath.FromSlash(entry.Path))
		if fsutil.FileSize(dest) == entry.Size {
			c.logger.Debug("file already complete", "model", modelName, "file", entry.Path)
			continue
		}
		if err := c.downloadFile(ctx, modelName, rev, entry.Path, dest); err != nil {
			return "", fmt.Errorf("failed to download model: %w", err)
		}
	}

	return fmt.Sprintf("Model %s downloaded successfully to %s", modelName, localDir), nil
}

func (c *Client) listFiles(ctx context.Context, modelName, revision string) ([]treeEntry, error) {
	reqURL := fmt.Sprintf("%s/api/models/%s/tree/%s?recursive=true",
		c.endpoint, modelName, url.PathEscape(revision))
	var entries []treeEntry
	if err := c.getJSON(ctx, reqURL, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) downloadFile(ctx context.Context, modelName, revision, remotePath, dest string) error {
	if err := fsutil.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s/%s/resolve/%s/%s",
		c.endpoint, modelName, url.PathEscape(revision), remotePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", remotePath, resp.StatusCode)
	}

	// Write to a temp name first so partially written files never pass the
	// size check on resume.
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// ModelInfo is the subset of the hub model endpoint the dashboard shows.
type ModelInfo struct {
	Valid       bool   `json:"valid"`
	ModelID     string `json:"model_id,omitempty"`
	Private     bool   `json:"private,omitempty"`
	Downloads   int64  `json:"downloads,omitempty"`
	Likes       int64  `json:"likes,omitempty"`
	PipelineTag string `json:"pipeline_tag,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Validate checks whether the model exists on the hub. Lookup failures are
// reported in the result rather than as an error; a typo'd model name is an
// expected outcome, not a fault.
func (c *Client) Validate(ctx context.Context, modelName string) ModelInfo {
	var payload struct {
		ID          string `json:"id"`
		ModelID     string `json:"modelId"`
		Private     bool   `json:"private"`
		Downloads   int64  `json:"downloads"`
		Likes       int64  `json:"likes"`
		PipelineTag string `json:"pipeline_tag"`
	}
	reqURL := fmt.Sprintf("%s/api/models/%s", c.endpoint, modelName)
	if err := c.getJSON(ctx, reqURL, &payload); err != nil {
		return ModelInfo{Valid: false, Error: err.Error()}
	}
	id := payload.ModelID
	if id == "" {
		id = payload.ID
	}
	return ModelInfo{
		Valid:       true,
		ModelID:     id,
		Private:     payload.Private,
		Downloads:   payload.Downloads,
		Likes:       payload.Likes,
		PipelineTag: payload.PipelineTag,
	}
}

// Revisions holds the branches and tags available for a model.
type Revisions struct {
	Branches []string `json:"branches"`
	Tags     []string `json:"tags"`
	Default  *string  `json:"default"`
}

// GetRevisions lists branches and tags for a model. On lookup failure it
// falls back to a bare "main" branch, matching what most repos have.
func (c *Client) GetRevisions(ctx context.Context, modelName string) Revisions {
	var payload struct {
		Branches []struct {
			Name string `json:"name"`
		} `json:"branches"`
		Tags []struct {
			Name string `json:"name"`
		} `json:"tags"`
	}
	reqURL := fmt.Sprintf("%s/api/models/%s/refs", c.endpoint, modelName)
	if err := c.getJSON(ctx, reqURL, &payload); err != nil {
		c.logger.Warn("failed to get revisions", "model", modelName, "err", err)
		def := "main"
		return Revisions{Branches: []string{"main"}, Tags: []string{}, Default: &def}
	}

	revs := Revisions{Branches: []string{}, Tags: []string{}}
	for _, b := range payload.Branches {
		revs.Branches = append(revs.Branches, b.Name)
	}
	for _, t := range payload.Tags {
		revs.Tags = append(revs.Tags, t.Name)
	}
	for _, b := range revs.Branches {
		if b == "main" {
			def := "main"
			revs.Default = &def
			break
		}
	}
	if revs.Default == nil && len(revs.Branches) > 0 {
		revs.Default = &revs.Branches[0]
	}
	return revs
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hub api returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
