package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/juchong/vllm-dashboard/internal/core"
	"github.com/juchong/vllm-dashboard/internal/docker"
	"github.com/juchong/vllm-dashboard/internal/hub"
	dashboardmcp "github.com/juchong/vllm-dashboard/internal/mcp"
	"github.com/juchong/vllm-dashboard/internal/profiles"
	"github.com/juchong/vllm-dashboard/internal/store"
	"github.com/juchong/vllm-dashboard/internal/vllm"
)

// ContainerManager is the slice of the docker service the HTTP layer uses.
type ContainerManager interface {
	StartContainer(ctx context.Context, name, profile string) (string, error)
	StopContainer(ctx context.Context, name string) (string, error)
	RestartContainer(ctx context.Context, name string) (string, error)
	InferenceStatus(ctx context.Context) map[string]docker.ContainerState
	Logs(ctx context.Context, name string, tail int) (string, error)
	Stats(ctx context.Context) []docker.ContainerMetrics
}

// Server holds the HTTP server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	tracker    *core.Tracker
	hub        *hub.Client
	containers ContainerManager
	vllm       *vllm.Service
	profiles   *profiles.Store
	events     *store.Store
	mcpServer  *dashboardmcp.MCPServer
	logger     *slog.Logger
	authToken  string

	monitorInterval time.Duration
}

// ServerDeps bundles the services the HTTP API exposes. Events and the MCP
// server are optional.
type ServerDeps struct {
	Tracker         *core.Tracker
	Hub             *hub.Client
	Containers      ContainerManager
	VLLM            *vllm.Service
	Profiles        *profiles.Store
	Events          *store.Store
	MCPServer       *dashboardmcp.MCPServer
	Logger          *slog.Logger
	AuthToken       string
	MonitorInterval time.Duration
}

// NewServer constructs the HTTP API server.
func NewServer(addr string, deps ServerDeps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:          router,
		tracker:         deps.Tracker,
		hub:             deps.Hub,
		containers:      deps.Containers,
		vllm:            deps.VLLM,
		profiles:        deps.Profiles,
		events:          deps.Events,
		mcpServer:       deps.MCPServer,
		logger:          deps.Logger,
		authToken:       deps.AuthToken,
		monitorInterval: deps.MonitorInterval,
	}
	if s.monitorInterval <= 0 {
		s.monitorInterval = 2 * time.Second
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	if s.mcpServer != nil {
		var mcpHandler http.Handler = s.mcpServer
		if s.authToken != "" {
			mcpHandler = AuthMiddleware(s.authToken)(mcpHandler)
		}
		s.router.Handle("/mcp", mcpHandler)
	}

	// The websocket endpoint authenticates via query token only; browsers
	// cannot set an Authorization header on a websocket upgrade.
	s.router.Get("/ws/updates", s.handleUpdates)

	s.router.Route("/api", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Route("/models", func(r chi.Router) {
			r.Get("/list", s.handleListModels)
			r.Get("/validate", s.handleValidateModel)
			r.Get("/revisions", s.handleModelRevisions)
			r.Post("/delete", s.handleDeleteModel)
			r.Post("/rename", s.handleRenameModel)

			r.Post("/download", s.handleStartDownload)
			r.Get("/downloads", s.handleListDownloads)
			r.Get("/downloads/active", s.handleActiveDownloads)
			r.Route("/downloads/{taskID}", func(r chi.Router) {
				r.Get("/", s.handleDownloadStatus)
				r.Delete("/", s.handleCancelDownload)
			})
		})

		r.Route("/containers", func(r chi.Router) {
			r.Get("/status", s.handleContainersStatus)
			r.Route("/{name}", func(r chi.Router) {
				r.Post("/start", s.handleContainerStart)
				r.Post("/stop", s.handleContainerStop)
				r.Post("/restart", s.handleContainerRestart)
				r.Get("/logs", s.handleContainerLogs)
			})
		})

		r.Route("/vllm", func(r chi.Router) {
			r.Get("/configs", s.handleListConfigs)
			r.Get("/config/active", s.handleActiveConfig)
			r.Post("/config/switch", s.handleSwitchConfig)
			r.Get("/status", s.handleVLLMStatus)
			r.Get("/proxy/status", s.handleProxyStatus)
			r.Post("/start", s.handleVLLMStart)
			r.Post("/stop", s.handleVLLMStop)
			r.Post("/restart", s.handleVLLMRestart)
			r.Get("/env", s.handleListEnvFiles)
			r.Get("/env/{filename}", s.handleGetEnvFile)
			r.Put("/env/{filename}", s.handleUpdateEnvFile)
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/templates", s.handleListTemplates)
			r.Post("/save", s.handleSaveConfig)
			r.Get("/model", s.handleGetModelConfig)
			r.Post("/associate", s.handleAssociateConfig)
			r.Get("/pairs", s.handleListPairs)
		})

		r.Route("/monitoring", func(r chi.Router) {
			r.Get("/gpu", s.handleGPUStats)
			r.Get("/gpu/processes", s.handleGPUProcesses)
			r.Get("/system", s.handleSystemStats)
			r.Get("/containers", s.handleContainerStats)
		})

		r.Get("/events", s.handleListEvents)
	})
}
