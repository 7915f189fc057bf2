// Package config provides configuration loading and structs for the concierge server.
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
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	FAQ       FAQConfig       `yaml:"faq"`
	Weather   WeatherConfig   `yaml:"weather"`
	News      NewsConfig      `yaml:"news"`
	Session   SessionConfig   `yaml:"session"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EmbeddingConfig selects and configures the embedding provider.
// Provider is one of "onnx", "openai" or "mock".
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"`
	ModelPath      string `yaml:"model_path"`
	TokenizerPath  string `yaml:"tokenizer_path"`
	Dimensions     int    `yaml:"dimensions"`
	MaxTokens      int    `yaml:"max_tokens"`
	CacheSize      int    `yaml:"cache_size"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// VectorConfig selects the vector index. Type is "memory" or "pinecone".
type VectorConfig struct {
	Type string `yaml:"type"`
	// Path persists the memory index between runs; empty keeps it in memory only.
	Path          string `yaml:"path"`
	IndexName     string `yaml:"index_name"`
	Metric        string `yaml:"metric"`
	Cloud         string `yaml:"cloud"`
	Region        string `yaml:"region"`
	APIKey        string `yaml:"api_key"`
	ControllerURL string `yaml:"controller_url"`
	// Host skips the describe call when the data-plane host is already known.
	Host           string `yaml:"host"`
	Namespace      string `yaml:"namespace"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// FAQConfig holds catalog and search settings.
type FAQConfig struct {
	CatalogPath    string  `yaml:"catalog_path"`
	BatchSize      int     `yaml:"batch_size"`
	MinScore       float64 `yaml:"min_score"`
	IndexOnStartup *bool   `yaml:"index_on_startup"`
	Watch          bool    `yaml:"watch"`
	// SuggestIndexPath stores the question suggestion index on disk; empty keeps it in memory.
	SuggestIndexPath string `yaml:"suggest_index_path"`
}

// IndexOnStartupOrDefault returns whether to index the catalog at startup; defaults to true when unset.
func (f *FAQConfig) IndexOnStartupOrDefault() bool {
	if f.IndexOnStartup != nil {
		return *f.IndexOnStartup
	}
	return true
}

// WeatherConfig holds weather API settings.
type WeatherConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Units          string `yaml:"units"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// NewsConfig holds news API settings.
type NewsConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Country        string `yaml:"country"`
	Limit          int    `yaml:"limit"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SessionConfig holds per-session task list storage. Store is "memory" or "sqlite".
// Sessions idle for MaxAgeMinutes are pruned; a negative value keeps them forever.
type SessionConfig struct {
	Store         string `yaml:"store"`
	DatabasePath  string `yaml:"database_path"`
	CookieName    string `yaml:"cookie_name"`
	MaxAgeMinutes int    `yaml:"max_age_minutes"`
}

// MaxAge returns the idle session lifetime, or 0 when pruning is disabled.
func (c SessionConfig) MaxAge() time.Duration {
	if c.MaxAgeMinutes <= 0 {
		return 0
	}
	return time.Duration(c.MaxAgeMinutes) * time.Minute
}

// Load reads and parses the config file at path, applies defaults and
// environment overrides, and expands paths.
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
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.FAQ.CatalogPath = expandPath(cfg.FAQ.CatalogPath, configDir)
	cfg.Session.DatabasePath = expandPath(cfg.Session.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.TokenizerPath = expandPath(cfg.Embedding.TokenizerPath, configDir)
	cfg.Vector.Path = expandPath(cfg.Vector.Path, configDir)
	cfg.FAQ.SuggestIndexPath = expandPath(cfg.FAQ.SuggestIndexPath, configDir)

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
	if path == "" || filepath.IsAbs(path) {
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
