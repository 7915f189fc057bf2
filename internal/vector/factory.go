package vector

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/config"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search, optionally persisted to a file.
	IndexTypeMemory IndexType = "memory"
	// IndexTypePinecone uses a hosted serverless Pinecone index.
	IndexTypePinecone IndexType = "pinecone"
)

// NewVectorIndex creates the configured vector index for vectors of the given dimension.
func NewVectorIndex(cfg config.VectorConfig, dimensions int, logger *zap.Logger) (VectorIndex, error) {
	switch IndexType(cfg.Type) {
	case IndexTypeMemory, "":
		return NewPersistentMemoryIndex(dimensions, Metric(cfg.Metric), cfg.Path)
	case IndexTypePinecone:
		return NewPineconeIndex(PineconeConfig{
			APIKey:        cfg.APIKey,
			ControllerURL: cfg.ControllerURL,
			IndexName:     cfg.IndexName,
			Dimensions:    dimensions,
			Metric:        Metric(cfg.Metric),
			Cloud:         cfg.Cloud,
			Region:        cfg.Region,
			Host:          cfg.Host,
			Namespace:     cfg.Namespace,
			Timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
		}, WithPineconeLogger(logger))
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, pinecone)", cfg.Type)
	}
}
