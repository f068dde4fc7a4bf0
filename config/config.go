package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config carries the process settings, all sourced from environment
// variables.
type Config struct {
	Port         string // REST API listen port
	CollabPort   string // websocket hub listen port
	RemoteHubURL string // optional upstream hub to mirror sessions into
	SupabaseURL  string
	SupabaseKey  string
	ProbeWorkers int
}

// Load reads the environment. Supabase settings are required; the rest have
// defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "4000"),
		CollabPort:   getEnv("COLLAB_PORT", "4001"),
		RemoteHubURL: os.Getenv("REMOTE_HUB_URL"),
		SupabaseURL:  os.Getenv("SUPABASE_URL"),
		SupabaseKey:  os.Getenv("SUPABASE_SERVICE_KEY"),
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set")
	}

	workers := getEnv("PROBE_WORKERS", "4")
	n, err := strconv.Atoi(workers)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("PROBE_WORKERS must be a positive integer, got %q", workers)
	}
	cfg.ProbeWorkers = n

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
