package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr      string
	AuthToken string
}

// PathsConfig holds the filesystem roots the dashboard operates on.
type PathsConfig struct {
	ModelsDir  string
	ConfigsDir string
	ComposeDir string
	StateDir   string
}

// DownloadConfig holds download tracker settings.
type DownloadConfig struct {
	// SweepCron is a 5-field cron expression controlling how often
	// finished download tasks are purged from memory.
	SweepCron string
	// SweepMaxAge is how long a finished task stays queryable.
	SweepMaxAge time.Duration
}

// MonitorConfig holds monitoring stream settings.
type MonitorConfig struct {
	Interval time.Duration
}

// Config holds all runtime configuration options for the daemon.
type Config struct {
	Server   ServerConfig
	Paths    PathsConfig
	Download DownloadConfig
	Monitor  MonitorConfig

	Mode          string
	LogLevel      string
	WebhookURL    string
	HubEndpoint   string
	ShutdownGrace time.Duration
}

const (
	defaultAddr          = "0.0.0.0:8080"
	defaultModelsDir     = "/models"
	defaultConfigsDir    = "/vllm-configs"
	defaultComposeDir    = "/vllm-compose"
	defaultLogLevel      = "info"
	defaultSweepCron     = "*/10 * * * *"
	defaultSweepMaxAge   = time.Hour
	defaultMonitorTick   = 2 * time.Second
	defaultHubEndpoint   = "https://huggingface.co"
	defaultShutdownGrace = 5 * time.Second
)

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Parse parses command line flags and environment variables into Config.
// Priority: CLI flags > environment variables > .env file > defaults.
func Parse() (*Config, error) {
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "vllm-dashboard", ".env"))
	}
	_ = godotenv.Load(envFiles...) // optional

	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnvString("VLLMDASH_ADDR", defaultAddr),
			AuthToken: getEnvString("VLLMDASH_AUTH_TOKEN", ""),
		},
		Paths: PathsConfig{
			ModelsDir:  getEnvString("VLLM_MODELS_DIR", defaultModelsDir),
			ConfigsDir: getEnvString("VLLM_CONFIG_DIR", defaultConfigsDir),
			ComposeDir: getEnvString("VLLM_COMPOSE_PATH", defaultComposeDir),
			StateDir:   getEnvString("VLLMDASH_STATE_DIR", ""),
		},
		Download: DownloadConfig{
			SweepCron:   getEnvString("VLLMDASH_SWEEP_CRON", defaultSweepCron),
			SweepMaxAge: getEnvDuration("VLLMDASH_SWEEP_MAX_AGE", defaultSweepMaxAge),
		},
		Monitor: MonitorConfig{
			Interval: getEnvDuration("VLLMDASH_MONITOR_INTERVAL", defaultMonitorTick),
		},
		Mode:          getEnvString("VLLMDASH_MODE", "http"),
		LogLevel:      getEnvString("VLLMDASH_LOG_LEVEL", defaultLogLevel),
		WebhookURL:    getEnvString("VLLMDASH_WEBHOOK_URL", ""),
		HubEndpoint:   getEnvString("HF_ENDPOINT", defaultHubEndpoint),
		ShutdownGrace: getEnvDuration("VLLMDASH_SHUTDOWN_GRACE", defaultShutdownGrace),
	}

	var addr, logLevel, mode, modelsDir, configsDir, composeDir, stateDir string
	var shutdownGrace time.Duration

	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides env)")
	flag.StringVar(&mode, "mode", "", "Run mode: http, mcp or both")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&modelsDir, "models-dir", "", "Directory models are downloaded into")
	flag.StringVar(&configsDir, "configs-dir", "", "Directory holding vLLM config profiles")
	flag.StringVar(&composeDir, "compose-dir", "", "Directory containing the compose file")
	flag.StringVar(&stateDir, "state-dir", "", "Directory to store the event database")
	flag.DurationVar(&shutdownGrace, "shutdown-grace", 0, "Grace period when shutting down")

	flag.Parse()

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if modelsDir != "" {
		cfg.Paths.ModelsDir = modelsDir
	}
	if configsDir != "" {
		cfg.Paths.ConfigsDir = configsDir
	}
	if composeDir != "" {
		cfg.Paths.ComposeDir = composeDir
	}
	if stateDir != "" {
		cfg.Paths.StateDir = stateDir
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "shutdown-grace" {
			cfg.ShutdownGrace = shutdownGrace
		}
	})

	switch strings.ToLower(cfg.Mode) {
	case "http", "mcp", "both":
		cfg.Mode = strings.ToLower(cfg.Mode)
	default:
		return nil, fmt.Errorf("invalid mode %q (want http, mcp or both)", cfg.Mode)
	}

	if cfg.Paths.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default state dir: %w", err)
		}
		cfg.Paths.StateDir = dir
	}

	return cfg, nil
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "vllm-dashboard")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
