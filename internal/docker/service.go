package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
)

// Containers the dashboard manages. Anything else on the host is ignored.
var inferenceContainers = []string{"vllm", "vllm-proxy", "open-webui"}

// ContainerState is the status surface reported per container.
type ContainerState struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Image  string `json:"image,omitempty"`
	Health string `json:"health,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ContainerMetrics is a one-shot stats sample for a running container.
type ContainerMetrics struct {
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryUsage   uint64  `json:"memory_usage"`
	MemoryLimit   uint64  `json:"memory_limit"`
	MemoryPercent float64 `json:"memory_percent"`
}

// Service wraps the Docker engine API plus docker compose invocations for
// operations the engine API does not cover (profile-aware up).
type Service struct {
	cli        *client.Client
	composeDir string
	logger     *slog.Logger
}

// NewService connects to the local Docker daemon.
func NewService(composeDir string, logger *slog.Logger) (*Service, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker daemon: %w", err)
	}
	return &Service{cli: cli, composeDir: composeDir, logger: logger}, nil
}

// Close releases the underlying API client.
func (s *Service) Close() error {
	return s.cli.Close()
}

// StartContainer brings a service up via docker compose so profiles and
// dependent services are honoured.
func (s *Service) StartContainer(ctx context.Context, name, profile string) (string, error) {
	args := []string{"compose", "--file", filepath.Join(s.composeDir, "compose.yaml")}
	if profile != "" {
		args = append(args, "--profile", profile)
	}
	args = append(args, "up", "-d", name)

	if out, err := s.compose(ctx, args...); err != nil {
		return "", fmt.Errorf("failed to start container: %s", strings.TrimSpace(out))
	}
	return fmt.Sprintf("Container %s started successfully", name), nil
}

// StopContainer stops a container through the engine API.
func (s *Service) StopContainer(ctx context.Context, name string) (string, error) {
	if err := s.cli.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return "", fmt.Errorf("container %s not found", name)
		}
		return "", fmt.Errorf("failed to stop container: %w", err)
	}
	return fmt.Sprintf("Container %s stopped successfully", name), nil
}

// RestartContainer restarts a container through the engine API.
func (s *Service) RestartContainer(ctx context.Context, name string) (string, error) {
	if err := s.cli.ContainerRestart(ctx, name, container.StopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return "", fmt.Errorf("container %s not found", name)
		}
		return "", fmt.Errorf("failed to restart container: %w", err)
	}
	return fmt.Sprintf("Container %s restarted successfully", name), nil
}

// InferenceStatus reports the state of every managed container, including
// ones that do not exist yet.
func (s *Service) InferenceStatus(ctx context.Context) map[string]ContainerState {
	status := make(map[string]ContainerState, len(inferenceContainers))
	for _, name := range inferenceContainers {
		status[name] = s.Inspect(ctx, name)
	}
	return status
}

// Inspect returns the state of one container. A missing container yields
// status "not_found" rather than an error.
func (s *Service) Inspect(ctx context.Context, name string) ContainerState {
	info, err := s.cli.ContainerInspect(ctx, name)
	if err != nil {
		state := ContainerState{Name: name, Status: "not_found"}
		if !errdefs.IsNotFound(err) {
			state.Error = err.Error()
		}
		return state
	}

	state := ContainerState{
		Name:   name,
		Status: info.State.Status,
		ID:     shortID(info.ID),
		Image:  info.Config.Image,
	}
	if info.State.Health != nil {
		state.Health = info.State.Health.Status
	} else {
		state.Health = "unknown"
	}
	return state
}

// Logs returns the last tail lines of a container's combined output.
func (s *Service) Logs(ctx context.Context, name string, tail int) (string, error) {
	reader, err := s.cli.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       fmt.Sprintf("%d", tail),
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", fmt.Errorf("container %s not found", name)
		}
		return "", fmt.Errorf("failed to read logs: %w", err)
	}
	defer reader.Close()

	// Engine log streams are multiplexed unless the container has a TTY.
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}
	if stderr.Len() > 0 {
		stdout.WriteString(stderr.String())
	}
	return stdout.String(), nil
}

// Stats samples CPU and memory usage for every running managed container.
func (s *Service) Stats(ctx context.Context) []ContainerMetrics {
	var metrics []ContainerMetrics
	for _, name := range inferenceContainers {
		m, err := s.statsFor(ctx, name)
		if err != nil {
			continue
		}
		metrics = append(metrics, m)
	}
	return metrics
}

func (s *Service) statsFor(ctx context.Context, name string) (ContainerMetrics, error) {
	resp, err := s.cli.ContainerStats(ctx, name, false)
	if err != nil {
		return ContainerMetrics{}, err
	}
	defer resp.Body.Close()

	var stats types.StatsJSON
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return ContainerMetrics{}, err
	}

	m := ContainerMetrics{
		Name:        name,
		MemoryUsage: stats.MemoryStats.Usage,
		MemoryLimit: stats.MemoryStats.Limit,
	}
	if m.MemoryLimit > 0 {
		m.MemoryPercent = float64(m.MemoryUsage) / float64(m.MemoryLimit) * 100
	}

	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if systemDelta > 0 && cpuDelta > 0 {
		m.CPUPercent = cpuDelta / systemDelta * float64(stats.CPUStats.OnlineCPUs) * 100
	}
	return m, nil
}

// ComposeRecreate force-recreates the given services via docker compose.
// Used when switching configs: vllm must pick up the new active.yaml and
// the proxy must be running for external access.
func (s *Service) ComposeRecreate(ctx context.Context, services ...string) (string, error) {
	args := append([]string{"compose", "up", "-d", "--force-recreate"}, services...)
	out, err := s.compose(ctx, args...)
	if err != nil {
		return out, fmt.Errorf("compose recreate: %s", strings.TrimSpace(out))
	}
	return out, nil
}

func (s *Service) compose(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", args...) // #nosec G204
	cmd.Dir = s.composeDir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	s.logger.Debug("running docker compose", "args", strings.Join(args, " "))
	err := cmd.Run()
	return buf.String(), err
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
