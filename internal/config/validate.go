package config

import (
	"fmt"
	"strings"
)

// MissingKeysError lists every required setting that was empty.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// Validate checks that every setting required by the enabled components is present.
func (c *Config) Validate() error {
	missing, err := c.faqMissing()
	if err != nil {
		return err
	}

	switch c.Session.Store {
	case "memory":
	case "sqlite":
		if c.Session.DatabasePath == "" {
			missing = append(missing, "session.database_path")
		}
	default:
		return fmt.Errorf("unknown session store %q", c.Session.Store)
	}

	if c.Weather.APIKey == "" {
		missing = append(missing, "weather.api_key (WEATHER_API_KEY)")
	}
	if c.News.APIKey == "" {
		missing = append(missing, "news.api_key (NEWS_API_KEY)")
	}

	if len(missing) > 0 {
		return &MissingKeysError{Keys: missing}
	}
	return nil
}

// ValidateFAQ checks only the settings the FAQ pipeline needs (embedding, vector index, catalog).
func (c *Config) ValidateFAQ() error {
	missing, err := c.faqMissing()
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &MissingKeysError{Keys: missing}
	}
	return nil
}

func (c *Config) faqMissing() ([]string, error) {
	var missing []string

	switch c.Embedding.Provider {
	case "onnx":
		if c.Embedding.ModelPath == "" {
			missing = append(missing, "embedding.model_path")
		}
	case "openai":
		if c.Embedding.APIKey == "" {
			missing = append(missing, "embedding.api_key (EMBEDDING_API_KEY)")
		}
	case "mock":
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}

	switch c.Vector.Type {
	case "memory":
	case "pinecone":
		if c.Vector.APIKey == "" {
			missing = append(missing, "vector.api_key (PINECONE_API_KEY)")
		}
		if c.Vector.Region == "" && c.Vector.Host == "" {
			missing = append(missing, "vector.region (PINECONE_ENVIRONMENT)")
		}
	default:
		return nil, fmt.Errorf("unknown vector index type %q", c.Vector.Type)
	}

	if c.FAQ.CatalogPath == "" {
		missing = append(missing, "faq.catalog_path")
	}
	return missing, nil
}
