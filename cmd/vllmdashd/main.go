package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/juchong/vllm-dashboard/internal/api"
	"github.com/juchong/vllm-dashboard/internal/config"
	"github.com/juchong/vllm-dashboard/internal/core"
	"github.com/juchong/vllm-dashboard/internal/docker"
	"github.com/juchong/vllm-dashboard/internal/hub"
	"github.com/juchong/vllm-dashboard/internal/logging"
	dashboardmcp "github.com/juchong/vllm-dashboard/internal/mcp"
	"github.com/juchong/vllm-dashboard/internal/notify"
	"github.com/juchong/vllm-dashboard/internal/profiles"
	"github.com/juchong/vllm-dashboard/internal/store"
	"github.com/juchong/vllm-dashboard/internal/vllm"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	baseCtx := context.Background()
	storeInst, err := store.Open(baseCtx, cfg.Paths.StateDir)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer storeInst.Close()

	hubClient := hub.NewClient(cfg.HubEndpoint, os.Getenv("HF_TOKEN"), cfg.Paths.ModelsDir, logger)

	tracker := core.NewTracker(hubClient, logger)
	tracker.SetJournal(storeInst)
	if cfg.WebhookURL != "" {
		notifier, err := notify.NewWebhookNotifier(cfg.WebhookURL)
		if err != nil {
			logger.Error("create webhook notifier", "err", err)
			os.Exit(1)
		}
		tracker.SetNotifier(notifier)
	}

	dockerSvc, err := docker.NewService(cfg.Paths.ComposeDir, logger)
	if err != nil {
		logger.Error("connect to docker", "err", err)
		os.Exit(1)
	}
	defer dockerSvc.Close()

	vllmSvc := vllm.NewService(dockerSvc, cfg.Paths.ConfigsDir, logger)

	profStore, err := profiles.NewStore(cfg.Paths.ConfigsDir)
	if err != nil {
		logger.Error("open profile store", "err", err)
		os.Exit(1)
	}

	sweeper := startSweeper(cfg, tracker, storeInst, logger)
	defer sweeper.Stop()

	mcpServer := dashboardmcp.NewMCPServer(tracker, hubClient, vllmSvc, dockerSvc, logger)

	deps := api.ServerDeps{
		Tracker:         tracker,
		Hub:             hubClient,
		Containers:      dockerSvc,
		VLLM:            vllmSvc,
		Profiles:        profStore,
		Events:          storeInst,
		MCPServer:       mcpServer,
		Logger:          logger,
		AuthToken:       cfg.Server.AuthToken,
		MonitorInterval: cfg.Monitor.Interval,
	}

	switch cfg.Mode {
	case "mcp":
		runMCPMode(mcpServer, logger)
	case "both":
		runBothMode(cfg, deps, mcpServer, logger)
	default:
		runHTTPMode(cfg, deps, logger)
	}
}

// startSweeper schedules the periodic purge of finished download tasks and
// old event rows.
func startSweeper(cfg *config.Config, tracker *core.Tracker, storeInst *store.Store, logger *slog.Logger) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc(cfg.Download.SweepCron, func() {
		tracker.Sweep(cfg.Download.SweepMaxAge)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if pruned, err := storeInst.PruneEvents(ctx, 30*24*time.Hour); err != nil {
			logger.Warn("prune events", "err", err)
		} else if pruned > 0 {
			logger.Debug("pruned events", "count", pruned)
		}
	})
	if err != nil {
		logger.Error("invalid sweep cron expression", "cron", cfg.Download.SweepCron, "err", err)
		os.Exit(1)
	}
	c.Start()
	logger.Info("sweeper scheduled", "cron", cfg.Download.SweepCron, "max_age", cfg.Download.SweepMaxAge)
	return c
}

// runHTTPMode starts only the HTTP server.
func runHTTPMode(cfg *config.Config, deps api.ServerDeps, logger *slog.Logger) {
	server := api.NewServer(cfg.Server.Addr, deps)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	}

	shutdown(server, cfg.ShutdownGrace, logger)
}

// runMCPMode starts only the MCP server on stdio.
func runMCPMode(mcpServer *dashboardmcp.MCPServer, logger *slog.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		logger.Info("received signal, shutting down...")
		os.Exit(0)
	}()

	if err := mcpServer.Run(); err != nil {
		logger.Error("mcp server error", "err", err)
		os.Exit(1)
	}
}

// runBothMode serves HTTP with the MCP server additionally on stdio.
func runBothMode(cfg *config.Config, deps api.ServerDeps, mcpServer *dashboardmcp.MCPServer, logger *slog.Logger) {
	mcpErr := make(chan error, 1)
	go func() {
		if err := mcpServer.Run(); err != nil {
			mcpErr <- err
		}
	}()

	server := api.NewServer(cfg.Server.Addr, deps)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "err", err)
	case err := <-mcpErr:
		logger.Error("mcp server error", "err", err)
	}

	shutdown(server, cfg.ShutdownGrace, logger)
	logger.Info("shutdown complete")
}

func shutdown(server *api.Server, grace time.Duration, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
}
