package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/juchong/vllm-dashboard/internal/core"
	"github.com/juchong/vllm-dashboard/internal/docker"
	"github.com/juchong/vllm-dashboard/internal/hub"
	"github.com/juchong/vllm-dashboard/internal/monitor"
	"github.com/juchong/vllm-dashboard/internal/vllm"
)

// ContainerInspector is the container status surface the MCP tools use.
type ContainerInspector interface {
	InferenceStatus(ctx context.Context) map[string]docker.ContainerState
}

// MCPServer exposes the dashboard operations as MCP tools.
type MCPServer struct {
	tracker    *core.Tracker
	hub        *hub.Client
	vllm       *vllm.Service
	containers ContainerInspector
	logger     *slog.Logger

	inner       *server.MCPServer
	httpHandler http.Handler
}

// NewMCPServer creates a new MCP server instance.
func NewMCPServer(tracker *core.Tracker, hubClient *hub.Client, vllmSvc *vllm.Service, containers ContainerInspector, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		tracker:    tracker,
		hub:        hubClient,
		vllm:       vllmSvc,
		containers: containers,
		logger:     logger,
	}

	inner := server.NewMCPServer(
		"vllm-dashboard",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools(inner)
	s.inner = inner
	s.httpHandler = server.NewStreamableHTTPServer(inner)
	return s
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	s.logger.Info("MCP server starting on stdio")
	return server.ServeStdio(s.inner)
}

// ServeHTTP serves the MCP protocol over streamable HTTP.
func (s *MCPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpHandler.ServeHTTP(w, r)
}

func (s *MCPServer) registerTools(inner *server.MCPServer) {
	inner.AddTool(mcp.NewTool("model_download",
		mcp.WithDescription("Start downloading a model from Hugging Face in the background. Returns a task id to poll."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Model repository, e.g. 'meta-llama/Llama-3.1-8B'"),
		),
		mcp.WithString("revision",
			mcp.Description("Branch, tag or commit to download (default: main)"),
		),
	), s.handleModelDownload)

	inner.AddTool(mcp.NewTool("download_status",
		mcp.WithDescription("Get the status of a download task, including bytes on disk so far"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id returned by model_download"),
		),
	), s.handleDownloadStatus)

	inner.AddTool(mcp.NewTool("download_cancel",
		mcp.WithDescription("Cancel a running download and remove the partial files"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id returned by model_download"),
		),
	), s.handleDownloadCancel)

	inner.AddTool(mcp.NewTool("list_downloads",
		mcp.WithDescription("List download tasks, active ones by default"),
		mcp.WithBoolean("all",
			mcp.Description("Include finished tasks"),
		),
	), s.handleListDownloads)

	inner.AddTool(mcp.NewTool("list_models",
		mcp.WithDescription("List models available on local disk"),
	), s.handleListModels)

	inner.AddTool(mcp.NewTool("container_status",
		mcp.WithDescription("Report the state of the inference containers"),
	), s.handleContainerStatus)

	inner.AddTool(mcp.NewTool("vllm_configs",
		mcp.WithDescription("List the stored vLLM configuration profiles"),
	), s.handleVLLMConfigs)

	inner.AddTool(mcp.NewTool("vllm_switch_config",
		mcp.WithDescription("Activate a stored vLLM configuration and restart the inference containers"),
		mcp.WithString("config_filename",
			mcp.Required(),
			mcp.Description("Profile filename as listed by vllm_configs"),
		),
	), s.handleVLLMSwitchConfig)

	inner.AddTool(mcp.NewTool("gpu_metrics",
		mcp.WithDescription("Sample utilization, memory and temperature for each GPU"),
	), s.handleGPUMetrics)

	s.logger.Info("MCP tools registered", "count", 9)
}

func (s *MCPServer) handleModelDownload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	modelName := mcp.ParseString(request, "model_name", "")
	if !hub.ValidModelName(modelName) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid model name: %q (expected org/name)", modelName)), nil
	}

	var revision *string
	if rev := mcp.ParseString(request, "revision", ""); rev != "" {
		revision = &rev
	}

	taskID, err := s.tracker.Start(modelName, revision)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start download: %v", err)), nil
	}
	s.logger.Info("download started via mcp", "task_id", taskID, "model", modelName)
	return mcp.NewToolResultText(fmt.Sprintf("Download started\nTask ID: %s\nModel: %s", taskID, modelName)), nil
}

func (s *MCPServer) handleDownloadStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")
	view, ok := s.tracker.Status(taskID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", taskID)), nil
	}
	return mcp.NewToolResultText(formatTask(view)), nil
}

func (s *MCPServer) handleDownloadCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")
	if _, ok := s.tracker.Status(taskID); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", taskID)), nil
	}
	if !s.tracker.Cancel(taskID) {
		return mcp.NewToolResultError(fmt.Sprintf("task already finished: %s", taskID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Download %s cancelled, partial files removed", taskID)), nil
}

func (s *MCPServer) handleListDownloads(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var views []core.TaskView
	if mcp.ParseBoolean(request, "all", false) {
		views = s.tracker.All()
	} else {
		views = s.tracker.Active()
	}
	if len(views) == 0 {
		return mcp.NewToolResultText("No download tasks"), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d download task(s):\n\n", len(views))
	for _, view := range views {
		b.WriteString(formatTask(view))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleListModels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	models, err := s.hub.ListModels()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list models: %v", err)), nil
	}
	if len(models) == 0 {
		return mcp.NewToolResultText("No models on disk"), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d model(s):\n", len(models))
	for _, m := range models {
		fmt.Fprintf(&b, "- %s (%s)\n", m.Name, m.SizeHuman)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleContainerStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.containers.InferenceStatus(ctx)
	var b strings.Builder
	for name, state := range status {
		fmt.Fprintf(&b, "%s: %s", name, state.Status)
		if state.Health != "" && state.Health != "unknown" {
			fmt.Fprintf(&b, " (%s)", state.Health)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleVLLMConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	configs, err := s.vllm.ListConfigs()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list configs: %v", err)), nil
	}
	if len(configs) == 0 {
		return mcp.NewToolResultText("No configuration profiles"), nil
	}
	var b strings.Builder
	for _, cfg := range configs {
		fmt.Fprintf(&b, "- %s: %s (%s, max_model_len=%d, tp=%d)\n",
			cfg.Filename, cfg.Model, cfg.ModelType, cfg.MaxModelLen, cfg.TensorParallelSize)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleVLLMSwitchConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename := mcp.ParseString(request, "config_filename", "")
	if filename == "" || strings.ContainsAny(filename, "/\\") {
		return mcp.NewToolResultError("config_filename must be a bare filename"), nil
	}
	result, err := s.vllm.SwitchConfig(ctx, filename)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("switch failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Switched to %s\nModel: %s\nModel type: %s",
		result.ConfigFilename, result.Model, result.ModelType)), nil
}

func (s *MCPServer) handleGPUMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gpus := monitor.GPUStats(ctx, s.logger)
	if len(gpus) == 0 {
		return mcp.NewToolResultText("No GPUs detected"), nil
	}
	var b strings.Builder
	for _, gpu := range gpus {
		b.WriteString(gpu.Summary())
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func formatTask(view core.TaskView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task %s: %s\n", view.ID, view.Status)
	fmt.Fprintf(&b, "  Model: %s\n", view.ModelName)
	if view.Progress != "" {
		fmt.Fprintf(&b, "  Progress: %s\n", view.Progress)
	}
	if view.DownloadedSizeHuman != "" {
		fmt.Fprintf(&b, "  Downloaded: %s\n", view.DownloadedSizeHuman)
	}
	if view.Error != nil {
		fmt.Fprintf(&b, "  Error: %s\n", *view.Error)
	}
	fmt.Fprintf(&b, "  Elapsed: %ds\n", view.ElapsedSeconds)
	return b.String()
}
