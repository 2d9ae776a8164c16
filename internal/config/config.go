// Package config loads and persists the dualmux settings file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the persisted settings. CLI flags override these values
// per run; Load fills missing fields with defaults so older config
// files keep working.
type Config struct {
	// Naming template for the catalog rename stage.
	Template       string `json:"template"`
	CustomTemplate string `json:"custom_template"`

	// Sonarr catalog backend.
	SonarrURL    string `json:"sonarr_url"`
	SonarrAPIKey string `json:"sonarr_api_key"`

	// TMDB catalog fallback.
	TMDBAPIKey       string `json:"tmdb_api_key"`
	EnableTMDBLookup bool   `json:"enable_tmdb_lookup"`
	TMDBLanguage     string `json:"tmdb_language"`

	// Parallelism for the extract and merge stage.
	WorkerCount int `json:"worker_count"`

	// Operation logging.
	EnableLogging    bool `json:"enable_logging"`
	LogRetentionDays int  `json:"log_retention_days"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Template:         "standard",
		TMDBLanguage:     "en-US",
		WorkerCount:      4,
		EnableLogging:    true,
		LogRetentionDays: 30,
	}
}

// Path returns the location of the config file.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".dualmux", "config.json"), nil
}

// Load reads the configuration from disk, returning defaults when no
// file exists yet.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Fill in any missing fields with defaults
	defaults := Default()
	if cfg.Template == "" {
		cfg.Template = defaults.Template
	}
	if cfg.TMDBLanguage == "" {
		cfg.TMDBLanguage = defaults.TMDBLanguage
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	if cfg.LogRetentionDays == 0 {
		cfg.LogRetentionDays = defaults.LogRetentionDays
	}

	return &cfg, nil
}

// Save writes the configuration to disk.
func (cfg *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
