package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"PINECONE_API_KEY", "PINECONE_ENVIRONMENT", "PINECONE_REGION", "PINECONE_HOST",
		"WEATHER_API_KEY", "NEWS_API_KEY", "EMBEDDING_API_KEY", "FAQ_CATALOG_PATH",
	} {
		t.Setenv(name, "")
		t.Setenv(EnvPrefix+name, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
faq:
  catalog_path: "./faqs.yaml"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if want := filepath.Join(dir, "faqs.yaml"); cfg.FAQ.CatalogPath != want {
		t.Errorf("catalog_path = %s, want %s", cfg.FAQ.CatalogPath, want)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestLoad_envOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PINECONE_API_KEY", "bare-key")
	t.Setenv(EnvPrefix+"PINECONE_API_KEY", "prefixed-key")
	t.Setenv("PINECONE_ENVIRONMENT", "us-east-1")
	t.Setenv("WEATHER_API_KEY", "weather-key")
	t.Setenv(EnvPrefix+"NEWS_API_KEY", "news-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
weather:
  api_key: "from-file"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Vector.APIKey != "prefixed-key" {
		t.Errorf("vector api key = %q, want prefixed-key", cfg.Vector.APIKey)
	}
	if cfg.Vector.Region != "us-east-1" {
		t.Errorf("vector region = %q", cfg.Vector.Region)
	}
	if cfg.Weather.APIKey != "weather-key" {
		t.Errorf("env should override file; got %q", cfg.Weather.APIKey)
	}
	if cfg.News.APIKey != "news-key" {
		t.Errorf("news api key = %q", cfg.News.APIKey)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that exists, even when empty.
	key := EnvPrefix + "NEWS_API_KEY"
	if err := os.Unsetenv(key); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte(key+"=dotenv-key\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{}
	ApplyDefaults(cfg)
	ApplyEnv(cfg)
	if cfg.News.APIKey != "dotenv-key" {
		t.Errorf("news api key = %q, want dotenv-key", cfg.News.APIKey)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("default dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Vector.IndexName != "faq-index" || cfg.Vector.Metric != "cosine" || cfg.Vector.Cloud != "aws" {
		t.Errorf("vector defaults: %+v", cfg.Vector)
	}
	if cfg.Weather.Units != "metric" {
		t.Errorf("default units: got %s", cfg.Weather.Units)
	}
	if cfg.News.Country != "us" || cfg.News.Limit != 5 {
		t.Errorf("news defaults: %+v", cfg.News)
	}
	if cfg.FAQ.MinScore != 0 {
		t.Errorf("min score should be disabled by default, got %f", cfg.FAQ.MinScore)
	}
	if cfg.Session.Store != "memory" {
		t.Errorf("default session store: got %s", cfg.Session.Store)
	}
}

func TestSessionConfig_MaxAge(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if got := cfg.Session.MaxAge(); got != 24*time.Hour {
		t.Errorf("default max age = %v, want 24h", got)
	}
	cfg.Session.MaxAgeMinutes = -1
	ApplyDefaults(cfg)
	if got := cfg.Session.MaxAge(); got != 0 {
		t.Errorf("negative max age should disable pruning, got %v", got)
	}
}

func TestFAQConfig_IndexOnStartupOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		f := &FAQConfig{}
		if got := f.IndexOnStartupOrDefault(); !got {
			t.Errorf("IndexOnStartupOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		v := false
		f := &FAQConfig{IndexOnStartup: &v}
		if got := f.IndexOnStartupOrDefault(); got {
			t.Errorf("IndexOnStartupOrDefault() = %v, want false", got)
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		ApplyDefaults(cfg)
		cfg.Weather.APIKey = "w"
		cfg.News.APIKey = "n"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("reports every missing key", func(t *testing.T) {
		cfg := valid()
		cfg.Vector.Type = "pinecone"
		cfg.Weather.APIKey = ""
		err := cfg.Validate()
		var mk *MissingKeysError
		if !errors.As(err, &mk) {
			t.Fatalf("expected MissingKeysError, got %v", err)
		}
		if len(mk.Keys) != 3 {
			t.Errorf("missing keys = %v, want 3 entries", mk.Keys)
		}
		if !strings.Contains(err.Error(), "PINECONE_API_KEY") {
			t.Errorf("error should name the env var: %v", err)
		}
	})

	t.Run("pinecone host stands in for region", func(t *testing.T) {
		cfg := valid()
		cfg.Vector.Type = "pinecone"
		cfg.Vector.APIKey = "k"
		cfg.Vector.Host = "faq-index-abc.svc.pinecone.io"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid()
		cfg.Embedding.Provider = "magic"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for unknown provider")
		}
	})

	t.Run("openai needs key", func(t *testing.T) {
		cfg := valid()
		cfg.Embedding.Provider = "openai"
		if err := cfg.Validate(); err == nil {
			t.Error("expected missing embedding key")
		}
	})

	t.Run("faq check ignores weather and news", func(t *testing.T) {
		cfg := valid()
		cfg.Weather.APIKey = ""
		cfg.News.APIKey = ""
		if err := cfg.ValidateFAQ(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		cfg.FAQ.CatalogPath = ""
		var mk *MissingKeysError
		if err := cfg.ValidateFAQ(); !errors.As(err, &mk) || len(mk.Keys) != 1 {
			t.Errorf("ValidateFAQ() = %v, want one missing key", err)
		}
	})
}

func TestSave(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		FAQ:    FAQConfig{CatalogPath: "/tmp/faqs.json"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.FAQ.CatalogPath != "/tmp/faqs.json" {
		t.Errorf("loaded catalog path: got %s", loaded.FAQ.CatalogPath)
	}
}
