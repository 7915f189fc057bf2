// Package vector provides vector index backends and similarity search.
package vector

import (
	"context"

	"github.com/hyperjump/concierge/internal/models"
)

// VectorIndex stores id-keyed vectors with metadata and answers nearest-neighbour queries.
// Upserting an existing id replaces its vector and metadata.
type VectorIndex interface {
	// EnsureIndex prepares the backing index, creating it when absent.
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, records []models.IndexRecord) error
	// Query returns up to topK matches ordered by descending score.
	Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) (models.QueryResult, error)
	Delete(ctx context.Context, ids []string) error
	Size(ctx context.Context) (int, error)
	Close() error
}

// Metric names the similarity function used for scoring.
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dotproduct"
)
