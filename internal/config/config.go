package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"omnibot-console/internal/api"
)

const DefaultGlamourStyle = "dark"

type AppConfig struct {
	APIBaseURL   string
	IdPBaseURL   string
	AuthStrategy api.AuthStrategy
	StatePath    string
	ExportDir    string
	PollInterval time.Duration
	LogFile      string
}

// Parse resolves configuration from flags with environment fallbacks. A
// .env file in the working directory is honored before the environment
// is read.
func Parse() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg AppConfig
	var strategy string

	flag.StringVar(&cfg.APIBaseURL, "api-url", envOr("OMNIBOT_API_URL", "http://localhost:3000"), "OmniBot backend base URL")
	flag.StringVar(&cfg.IdPBaseURL, "idp-url", os.Getenv("OMNIBOT_IDP_URL"), "identity provider base URL (fallback sign-in)")
	flag.StringVar(&strategy, "auth-strategy", envOr("OMNIBOT_AUTH_STRATEGY", string(api.AuthBackend)), "sign-in strategy: backend or backend-then-idp")
	flag.StringVar(&cfg.StatePath, "state-path", os.Getenv("OMNIBOT_STATE_PATH"), "path to the shared session state file")
	flag.StringVar(&cfg.ExportDir, "export-dir", os.Getenv("OMNIBOT_EXPORT_DIR"), "override transcript export directory")
	flag.DurationVar(&cfg.PollInterval, "sync-interval", 0, "session sync poll interval (default 500ms)")
	flag.StringVar(&cfg.LogFile, "log-file", os.Getenv("OMNIBOT_LOG_FILE"), "append console logs to this file")
	flag.Parse()

	switch api.AuthStrategy(strategy) {
	case api.AuthBackend, api.AuthBackendThenIdP:
		cfg.AuthStrategy = api.AuthStrategy(strategy)
	default:
		return cfg, fmt.Errorf("unknown auth strategy %q", strategy)
	}
	if cfg.AuthStrategy == api.AuthBackendThenIdP && cfg.IdPBaseURL == "" {
		return cfg, fmt.Errorf("auth strategy %s requires -idp-url", cfg.AuthStrategy)
	}

	if cfg.StatePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.StatePath = filepath.Join(home, ".local", "share", "omnibot-console", "state.sqlite")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o755); err != nil {
		return cfg, fmt.Errorf("create state dir: %w", err)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
