// Package config provides configuration loading and structs for kioku.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Notes     NotesConfig     `yaml:"notes"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Title     TitleConfig     `yaml:"title"`
	Related   RelatedConfig   `yaml:"related"`
	Server    ServerConfig    `yaml:"server"`
	Watch     WatchConfig     `yaml:"watch"`
}

// NotesConfig locates the note collection.
type NotesConfig struct {
	Directory string `yaml:"directory"`
	Extension string `yaml:"extension"`
}

// StorageConfig selects the embedding store backend and its paths.
type StorageConfig struct {
	Driver       string `yaml:"driver"`
	CachePath    string `yaml:"cache_path"`
	DatabasePath string `yaml:"database_path"`
}

// Path returns the path used by the configured driver.
func (s *StorageConfig) Path() string {
	if s.Driver == "sqlite" {
		return s.DatabasePath
	}
	return s.CachePath
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	OllamaURL  string `yaml:"ollama_url"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// TitleConfig configures title suggestions for new notes.
type TitleConfig struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
}

// TemperatureOrDefault returns the sampling temperature; defaults to 0.7 when unset.
func (t *TitleConfig) TemperatureOrDefault() float64 {
	if t.Temperature != nil {
		return *t.Temperature
	}
	return 0.7
}

// RelatedConfig controls related-note selection.
type RelatedConfig struct {
	Limit      int       `yaml:"limit"`
	Thresholds []float64 `yaml:"thresholds"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WatchConfig holds notes directory watch settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
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
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}

// Default returns the default configuration with paths expanded.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	cfg.expandPaths(wd)
	return &cfg
}

// Validate rejects settings that have no sensible default.
func Validate(cfg *Config) error {
	switch cfg.Storage.Driver {
	case "", "json", "sqlite":
	default:
		return fmt.Errorf("invalid storage.driver %q (supported: json, sqlite)", cfg.Storage.Driver)
	}
	switch cfg.Embedding.Provider {
	case "", "openai", "ollama", "onnx", "mock":
	default:
		return fmt.Errorf("invalid embedding.provider %q (supported: openai, ollama, onnx, mock)", cfg.Embedding.Provider)
	}
	switch cfg.Title.Provider {
	case "", "openai", "firstline":
	default:
		return fmt.Errorf("invalid title.provider %q (supported: openai, firstline)", cfg.Title.Provider)
	}
	for _, t := range cfg.Related.Thresholds {
		if t < -1 || t > 1 {
			return fmt.Errorf("invalid related.thresholds value %v (must be within [-1, 1])", t)
		}
	}
	if cfg.Related.Limit < 0 {
		return fmt.Errorf("invalid related.limit %d", cfg.Related.Limit)
	}
	return nil
}

func (cfg *Config) expandPaths(configDir string) {
	cfg.Notes.Directory = expandPath(cfg.Notes.Directory, configDir)
	cfg.Storage.CachePath = expandPath(cfg.Storage.CachePath, configDir)
	if cfg.Storage.DatabasePath != ":memory:" {
		cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	}
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
