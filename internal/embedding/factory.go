package embedding

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/config"
)

// New builds the configured embedding provider wrapped in an LRU cache.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case "onnx":
		e, err := NewONNXEmbedder(cfg.ModelPath, VocabPath(cfg), cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		inner = e
	case "openai":
		e, err := NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimensions,
			time.Duration(cfg.TimeoutSeconds)*time.Second, WithOpenAILogger(logger))
		if err != nil {
			return nil, err
		}
		inner = e
	case "mock":
		inner = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}

// VocabPath returns the configured tokenizer vocabulary, or vocab.txt next to the model.
func VocabPath(cfg config.EmbeddingConfig) string {
	if cfg.TokenizerPath != "" {
		return cfg.TokenizerPath
	}
	return filepath.Join(filepath.Dir(cfg.ModelPath), "vocab.txt")
}
