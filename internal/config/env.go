package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CONCIERGE_"

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets and deployment-specific settings from the
// environment. CONCIERGE_<NAME> wins over the bare <NAME>.
func ApplyEnv(cfg *Config) {
	setFromEnv(&cfg.Vector.APIKey, "PINECONE_API_KEY")
	setFromEnv(&cfg.Vector.Region, "PINECONE_ENVIRONMENT")
	setFromEnv(&cfg.Vector.Region, "PINECONE_REGION")
	setFromEnv(&cfg.Vector.Host, "PINECONE_HOST")
	setFromEnv(&cfg.Weather.APIKey, "WEATHER_API_KEY")
	setFromEnv(&cfg.News.APIKey, "NEWS_API_KEY")
	setFromEnv(&cfg.Embedding.APIKey, "EMBEDDING_API_KEY")
	setFromEnv(&cfg.FAQ.CatalogPath, "FAQ_CATALOG_PATH")
}

func setFromEnv(dst *string, name string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
		return
	}
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}
