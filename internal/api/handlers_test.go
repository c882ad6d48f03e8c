package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/juchong/vllm-dashboard/internal/core"
	"github.com/juchong/vllm-dashboard/internal/docker"
	"github.com/juchong/vllm-dashboard/internal/hub"
	"github.com/juchong/vllm-dashboard/internal/profiles"
	"github.com/juchong/vllm-dashboard/internal/vllm"
)

type fakeFetcher struct {
	modelsDir string
	release   chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, modelName string, revision *string) (string, error) {
	if f.release != nil {
		<-f.release
	}
	return "done", nil
}

func (f *fakeFetcher) ModelsDir() string { return f.modelsDir }

type fakeContainers struct {
	startErr error
}

func (f *fakeContainers) StartContainer(ctx context.Context, name, profile string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return "Container " + name + " started successfully", nil
}

func (f *fakeContainers) StopContainer(ctx context.Context, name string) (string, error) {
	return "Container " + name + " stopped successfully", nil
}

func (f *fakeContainers) RestartContainer(ctx context.Context, name string) (string, error) {
	return "Container " + name + " restarted successfully", nil
}

func (f *fakeContainers) InferenceStatus(ctx context.Context) map[string]docker.ContainerState {
	return map[string]docker.ContainerState{
		"vllm": {Name: "vllm", Status: "running", Health: "healthy"},
	}
}

func (f *fakeContainers) Logs(ctx context.Context, name string, tail int) (string, error) {
	return "log line\n", nil
}

func (f *fakeContainers) Stats(ctx context.Context) []docker.ContainerMetrics {
	return nil
}

type fakeRuntime struct{}

func (fakeRuntime) Inspect(ctx context.Context, name string) docker.ContainerState {
	return docker.ContainerState{Name: name, Status: "running"}
}

func (fakeRuntime) StartContainer(ctx context.Context, name, profile string) (string, error) {
	return "started", nil
}

func (fakeRuntime) StopContainer(ctx context.Context, name string) (string, error) {
	return "stopped", nil
}

func (fakeRuntime) ComposeRecreate(ctx context.Context, services ...string) (string, error) {
	return "recreated", nil
}

func newTestServer(t *testing.T, fetcher *fakeFetcher) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if fetcher.modelsDir == "" {
		fetcher.modelsDir = t.TempDir()
	}
	configsDir := t.TempDir()
	profStore, err := profiles.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewServer("127.0.0.1:0", ServerDeps{
		Tracker:         core.NewTracker(fetcher, logger),
		Hub:             hub.NewClient("http://127.0.0.1:1", "", fetcher.modelsDir, logger),
		Containers:      &fakeContainers{},
		VLLM:            vllm.NewService(fakeRuntime{}, configsDir, logger),
		Profiles:        profStore,
		Logger:          logger,
		MonitorInterval: time.Second,
	})
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestStartDownloadAccepted(t *testing.T) {
	fetcher := &fakeFetcher{release: make(chan struct{})}
	s := newTestServer(t, fetcher)

	rec := doRequest(s, http.MethodPost, "/api/models/download", `{"model_name":"org/model-a"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status=%d, want 202: %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["task_id"] == "" || resp["status"] != "pending" {
		t.Fatalf("response=%v", resp)
	}

	// same model again while in flight conflicts
	rec = doRequest(s, http.MethodPost, "/api/models/download", `{"model_name":"org/model-a"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status=%d, want 409", rec.Code)
	}
	close(fetcher.release)
}

func TestStartDownloadValidation(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{})

	rec := doRequest(s, http.MethodPost, "/api/models/download", `{"model_name":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty name status=%d, want 400", rec.Code)
	}
	rec = doRequest(s, http.MethodPost, "/api/models/download", `{"model_name":"no-slash"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad name status=%d, want 400", rec.Code)
	}
	rec = doRequest(s, http.MethodPost, "/api/models/download", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status=%d, want 400", rec.Code)
	}
}

func TestDownloadStatusAndCancel(t *testing.T) {
	fetcher := &fakeFetcher{release: make(chan struct{})}
	s := newTestServer(t, fetcher)

	rec := doRequest(s, http.MethodPost, "/api/models/download", `{"model_name":"org/model-b"}`)
	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	taskID := created["task_id"]

	rec = doRequest(s, http.MethodGet, "/api/models/downloads/"+taskID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200: %s", rec.Code, rec.Body)
	}

	rec = doRequest(s, http.MethodGet, "/api/models/downloads/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown task status=%d, want 404", rec.Code)
	}

	rec = doRequest(s, http.MethodDelete, "/api/models/downloads/"+taskID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status=%d, want 200: %s", rec.Code, rec.Body)
	}
	var cancelled map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &cancelled); err != nil {
		t.Fatal(err)
	}
	if cancelled["status"] != "cancelled" {
		t.Fatalf("cancel response=%v", cancelled)
	}

	// second cancel conflicts
	rec = doRequest(s, http.MethodDelete, "/api/models/downloads/"+taskID, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel status=%d, want 409", rec.Code)
	}
	close(fetcher.release)
}

func TestListDownloadsEmpty(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{})
	rec := doRequest(s, http.MethodGet, "/api/models/downloads", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	var resp map[string][]core.TaskView
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp["downloads"]) != 0 {
		t.Fatalf("downloads=%v, want empty", resp["downloads"])
	}
}

func TestContainerEndpoints(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{})

	rec := doRequest(s, http.MethodGet, "/api/containers/status", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "running") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	rec = doRequest(s, http.MethodPost, "/api/containers/vllm/restart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("restart status=%d, want 200", rec.Code)
	}
	rec = doRequest(s, http.MethodGet, "/api/containers/vllm/logs?tail=50", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "log line") {
		t.Fatalf("logs status=%d body=%s", rec.Code, rec.Body)
	}
}

func TestSwitchConfigRejectsPaths(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{})
	rec := doRequest(s, http.MethodPost, "/api/vllm/config/switch", `{"config_filename":"../evil.yaml"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
}

func TestEventsWithoutStore(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{})
	rec := doRequest(s, http.MethodGet, "/api/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/models/list", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status=%d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/models/list", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("bearer status=%d, want 204", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/models/list?token=secret", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("query token status=%d, want 204", rec.Code)
	}
}
