package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all botflow server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	DBPath     string `json:"db_path"`
	LogLevel   string `json:"log_level"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr: ":4200",
		DBPath:     filepath.Join(botflowDir(), "botflow.db"),
		LogLevel:   "info",
	}
}

func botflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".botflow"
	}
	return filepath.Join(home, ".botflow")
}

func settingsPath() string {
	return filepath.Join(botflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("BOTFLOW_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("BOTFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("BOTFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}
