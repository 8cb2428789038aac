package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig keeps runtime settings for the API server.
type ServerConfig struct {
	Addr        string
	DatabaseURL string
	LogFile     string
}

// AgentConfig keeps runtime settings for the client-side sync agent.
type AgentConfig struct {
	ServerURL        string
	APIToken         string
	LocalDatabaseURL string
	SyncInterval     time.Duration
	SyncedRetention  time.Duration
}

// LoadServer reads server configuration from environment variables with
// sane defaults.
func LoadServer() (ServerConfig, error) {
	cfg := ServerConfig{
		Addr:        strings.TrimSpace(os.Getenv("BUJO_ADDR")),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		LogFile:     strings.TrimSpace(os.Getenv("LOG_FILE")),
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "bujo.db"
	}

	return cfg, nil
}

// LoadAgent reads agent configuration from environment variables.
func LoadAgent() (AgentConfig, error) {
	cfg := AgentConfig{
		ServerURL:        strings.TrimSpace(os.Getenv("BUJO_SERVER_URL")),
		APIToken:         strings.TrimSpace(os.Getenv("BUJO_API_TOKEN")),
		LocalDatabaseURL: strings.TrimSpace(os.Getenv("LOCAL_DATABASE_URL")),
		SyncInterval:     parseMinutes(strings.TrimSpace(os.Getenv("SYNC_INTERVAL_MINUTES"))),
		SyncedRetention:  parseMinutes(strings.TrimSpace(os.Getenv("SYNCED_RETENTION_MINUTES"))),
	}

	if cfg.LocalDatabaseURL == "" {
		cfg.LocalDatabaseURL = "bujo_local.db"
	}
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = 5 * time.Minute
	}
	if cfg.SyncedRetention == 0 {
		cfg.SyncedRetention = time.Hour
	}

	if cfg.ServerURL == "" {
		return cfg, fmt.Errorf("BUJO_SERVER_URL is required")
	}
	if cfg.APIToken == "" {
		return cfg, fmt.Errorf("BUJO_API_TOKEN is required")
	}

	return cfg, nil
}

func parseMinutes(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}
