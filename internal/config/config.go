// Package config provides configuration loading and structs for the chatgraph server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Processing ProcessingConfig `yaml:"processing"`
	Search     SearchConfig     `yaml:"search"`
	Graph      GraphConfig      `yaml:"graph"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and the conversation index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// ProcessingConfig holds processor settings.
type ProcessingConfig struct {
	ArchivePath    string `yaml:"archive_path"`
	BatchSize      int    `yaml:"batch_size"`
	MinOccurrences int    `yaml:"min_occurrences"`
	// MaxToProcess bounds one incremental run; 0 processes everything pending.
	MaxToProcess int `yaml:"max_to_process"`
}

// SearchConfig holds entity search settings.
type SearchConfig struct {
	MaxResults  int `yaml:"max_results"`
	MaxLimit    int `yaml:"max_limit"`
	RecentLimit int `yaml:"recent_limit"`
}

// GraphConfig holds renderer and force simulation settings.
type GraphConfig struct {
	Width              int     `yaml:"width"`
	Height             int     `yaml:"height"`
	LayoutIterations   int     `yaml:"layout_iterations"`
	CenterForce        float64 `yaml:"center_force"`
	Repulsion          float64 `yaml:"repulsion"`
	RepulsionCutoff    float64 `yaml:"repulsion_cutoff"`
	SpringConstant     float64 `yaml:"spring_constant"`
	SpringLength       float64 `yaml:"spring_length"`
	Damping            float64 `yaml:"damping"`
	AlphaDecay         float64 `yaml:"alpha_decay"`
	AlphaMin           float64 `yaml:"alpha_min"`
	MinScale           float64 `yaml:"min_scale"`
	MaxScale           float64 `yaml:"max_scale"`
	LabelScale         float64 `yaml:"label_scale"`
	MaxLabelWidth      float64 `yaml:"max_label_width"`
	CullMargin         float64 `yaml:"cull_margin"`
	FocusScale         float64 `yaml:"focus_scale"`
	FocusDurationMilli int     `yaml:"focus_duration_ms"`
}

// FocusDuration returns the focus animation length.
func (g *GraphConfig) FocusDuration() time.Duration {
	return time.Duration(g.FocusDurationMilli) * time.Millisecond
}

// WatchConfig holds archive watch settings.
type WatchConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Extensions    []string `yaml:"extensions"`
	DebounceMilli int      `yaml:"debounce_ms"`
}

// Debounce returns the watcher debounce interval.
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMilli) * time.Millisecond
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	if cfg.Processing.ArchivePath != "" {
		cfg.Processing.ArchivePath = expandPath(cfg.Processing.ArchivePath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
