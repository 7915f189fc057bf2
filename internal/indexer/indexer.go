// Package indexer embeds FAQ questions and writes them to the vector index.
package indexer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/catalog"
	"github.com/hyperjump/concierge/internal/embedding"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/vector"
	"github.com/hyperjump/concierge/pkg/utils"
)

// Suggester receives the catalog questions after each successful index run.
type Suggester interface {
	Replace(ctx context.Context, entries []models.FAQEntry) error
}

// Stats describes the last successful index run.
type Stats struct {
	Entries     int       `json:"entries"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	IndexedAt   time.Time `json:"indexed_at,omitempty"`
}

// Indexer writes one record per catalog entry: id is the entry position, the vector is the
// embedded question, and metadata carries the answer.
type Indexer struct {
	embedder    embedding.Embedder
	vectorIndex vector.VectorIndex
	suggester   Suggester
	batchSize   int
	logger      *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = utils.NopIfNil(l) }
}

// WithBatchSize sets how many entries are embedded and upserted per request.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// WithSuggester also feeds questions to a suggestion index.
func WithSuggester(s Suggester) IndexerOption {
	return func(idx *Indexer) { idx.suggester = s }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(embedder embedding.Embedder, vectorIndex vector.VectorIndex, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		embedder:    embedder,
		vectorIndex: vectorIndex,
		batchSize:   100,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Index upserts every entry in order and returns the number written. Re-running with the same
// catalog overwrites the same ids. When the index holds more positions than the catalog, the
// surplus ids are deleted. Embedding and index failures are returned as *models.ProviderError.
func (idx *Indexer) Index(ctx context.Context, entries []models.FAQEntry) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.index(ctx, entries)
}

func (idx *Indexer) index(ctx context.Context, entries []models.FAQEntry) (int, error) {
	start := time.Now()
	if err := idx.vectorIndex.EnsureIndex(ctx); err != nil {
		return 0, &models.ProviderError{Op: "ensure index", Err: err}
	}
	before, err := idx.vectorIndex.Size(ctx)
	if err != nil {
		return 0, &models.ProviderError{Op: "index size", Err: err}
	}

	written := 0
	for lo := 0; lo < len(entries); lo += idx.batchSize {
		hi := lo + idx.batchSize
		if hi > len(entries) {
			hi = len(entries)
		}
		batch := entries[lo:hi]
		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = utils.CollapseSpace(e.Question)
		}
		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return written, &models.ProviderError{Op: "embed questions", Err: err}
		}
		if len(vectors) != len(batch) {
			return written, &models.ProviderError{
				Op:  "embed questions",
				Err: fmt.Errorf("got %d vectors for %d questions", len(vectors), len(batch)),
			}
		}
		records := make([]models.IndexRecord, len(batch))
		for i, e := range batch {
			records[i] = models.IndexRecord{
				ID:       strconv.Itoa(lo + i),
				Vector:   vectors[i],
				Metadata: map[string]string{models.MetadataAnswer: e.Answer},
			}
		}
		if err := idx.vectorIndex.Upsert(ctx, records); err != nil {
			return written, &models.ProviderError{Op: "upsert vectors", Err: err}
		}
		written += len(batch)
		idx.logger.Debug("indexer batch upserted", zap.Int("from", lo), zap.Int("to", hi))
	}

	if before > len(entries) {
		stale := make([]string, 0, before-len(entries))
		for i := len(entries); i < before; i++ {
			stale = append(stale, strconv.Itoa(i))
		}
		if err := idx.vectorIndex.Delete(ctx, stale); err != nil {
			return written, &models.ProviderError{Op: "delete stale vectors", Err: err}
		}
		idx.logger.Debug("indexer removed stale entries", zap.Int("count", len(stale)))
	}

	if idx.suggester != nil {
		if err := idx.suggester.Replace(ctx, entries); err != nil {
			// Suggestions are a convenience; answering still works.
			idx.logger.Warn("failed to update question suggestions", zap.Error(err))
		}
	}

	idx.stats = Stats{Entries: written, Fingerprint: catalog.Fingerprint(entries), IndexedAt: time.Now()}
	idx.logger.Info("faq catalog indexed", zap.Int("entries", written), zap.Duration("took", time.Since(start)))
	return written, nil
}

// Sync loads the catalog at path and indexes it unless its fingerprint matches the last run.
// It reports whether indexing took place.
func (idx *Indexer) Sync(ctx context.Context, path string) (n int, changed bool, err error) {
	entries, err := catalog.Load(path)
	if err != nil {
		return 0, false, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if fp := catalog.Fingerprint(entries); fp == idx.stats.Fingerprint {
		idx.logger.Debug("faq catalog unchanged", zap.String("path", path))
		return idx.stats.Entries, false, nil
	}
	n, err = idx.index(ctx, entries)
	if err != nil {
		return n, false, err
	}
	return n, true, nil
}

// Stats returns details of the last successful run.
func (idx *Indexer) Stats() Stats {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.stats
}
