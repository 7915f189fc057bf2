// Package search answers FAQ questions by nearest-neighbour lookup over embedded catalog questions.
package search

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/embedding"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/vector"
	"github.com/hyperjump/concierge/pkg/utils"
)

// FallbackAnswer is returned when no catalog entry matches.
const FallbackAnswer = "Sorry, I couldn't find an answer."

// ErrEmptyQuery is returned for queries that are blank after whitespace normalization.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Engine runs the FAQ search pipeline: embed the query, fetch the single closest
// catalog question, and return its answer.
type Engine struct {
	embedder    embedding.Embedder
	vectorIndex vector.VectorIndex
	minScore    float64
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMinScore makes matches scoring below s return the fallback. Zero disables the threshold.
func WithMinScore(s float64) EngineOption {
	return func(e *Engine) { e.minScore = s }
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = utils.NopIfNil(l) }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(embedder embedding.Embedder, vectorIndex vector.VectorIndex, opts ...EngineOption) *Engine {
	e := &Engine{
		embedder:    embedder,
		vectorIndex: vectorIndex,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Answer returns the stored answer of the closest catalog question, or FallbackAnswer when the
// index has no match. Provider failures are returned as *models.ProviderError.
func (e *Engine) Answer(ctx context.Context, query string) (string, error) {
	m, ok, err := e.Match(ctx, query)
	if err != nil {
		return "", err
	}
	if !ok {
		return FallbackAnswer, nil
	}
	return m.Metadata[models.MetadataAnswer], nil
}

// Match returns the top match when it carries an answer and clears the score threshold.
func (e *Engine) Match(ctx context.Context, query string) (models.Match, bool, error) {
	query = utils.CollapseSpace(query)
	if query == "" {
		return models.Match{}, false, ErrEmptyQuery
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return models.Match{}, false, &models.ProviderError{Op: "embed query", Err: err}
	}
	res, err := e.vectorIndex.Query(ctx, vec, 1, true)
	if err != nil {
		return models.Match{}, false, &models.ProviderError{Op: "query index", Err: err}
	}

	top, ok := res.Top()
	if !ok {
		e.logger.Debug("faq search: no match", zap.String("query", query))
		return models.Match{}, false, nil
	}
	if _, has := top.Metadata[models.MetadataAnswer]; !has {
		e.logger.Warn("faq search: match has no answer metadata", zap.String("id", top.ID))
		return top, false, nil
	}
	if e.minScore > 0 && top.Score < e.minScore {
		e.logger.Debug("faq search: match below threshold",
			zap.String("id", top.ID), zap.Float64("score", top.Score), zap.Float64("min_score", e.minScore))
		return top, false, nil
	}
	e.logger.Debug("faq search: match", zap.String("id", top.ID), zap.Float64("score", top.Score))
	return top, true, nil
}
