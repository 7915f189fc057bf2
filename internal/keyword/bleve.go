// Package keyword provides a Bleve full-text index over FAQ questions for type-ahead suggestions.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/concierge/internal/models"
)

const (
	fieldQuestion    = "question"
	questionAnalyzer = "question"
)

// Hit is a single suggestion: the catalog position and its question text.
type Hit struct {
	ID       string
	Question string
	Score    float64
}

type questionDoc struct {
	Question string `json:"question"`
}

// QuestionIndex implements question suggestions using Bleve.
type QuestionIndex struct {
	index bleve.Index
	mu    sync.Mutex
}

// newMapping lowercases and tokenizes questions without stop words or stemming, so
// every typed word (including "what" and "how") can be matched as a prefix.
func newMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(questionAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicodetok.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = questionAnalyzer
	textFieldMapping.Store = true
	docMapping.AddFieldMappingsAt(fieldQuestion, textFieldMapping)
	im.DefaultMapping = docMapping
	return im, nil
}

// splitTerms lowercases text and splits it on anything that is not a letter or digit.
func splitTerms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// NewQuestionIndex creates or opens a Bleve index at path. An empty path keeps the index in memory.
func NewQuestionIndex(path string) (*QuestionIndex, error) {
	im, err := newMapping()
	if err != nil {
		return nil, err
	}
	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &QuestionIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &QuestionIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &QuestionIndex{index: index}, nil
}

// Replace indexes entries under their positional ids and drops any id beyond the new catalog.
func (q *QuestionIndex) Replace(ctx context.Context, entries []models.FAQEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := q.index.NewBatch()
	for i, e := range entries {
		if err := batch.Index(strconv.Itoa(i), questionDoc{Question: e.Question}); err != nil {
			return fmt.Errorf("batch index %d: %w", i, err)
		}
	}

	count, err := q.index.DocCount()
	if err != nil {
		return fmt.Errorf("doc count: %w", err)
	}
	if int(count) > len(entries) {
		req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.Size = int(count)
		res, err := q.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("list indexed questions: %w", err)
		}
		for _, hit := range res.Hits {
			if n, err := strconv.Atoi(hit.ID); err != nil || n >= len(entries) {
				batch.Delete(hit.ID)
			}
		}
	}

	if err := q.index.Batch(batch); err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}
	return nil
}

// Search matches text against indexed questions. The last word is treated as a prefix so
// partially typed words still match; when fuzzy is set, earlier words tolerate one typo.
func (q *QuestionIndex) Search(ctx context.Context, text string, limit int, fuzzy bool) ([]Hit, error) {
	terms := splitTerms(text)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(buildQuery(terms, fuzzy))
	req.Size = limit
	req.Fields = []string{fieldQuestion}
	res, err := q.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		question, _ := hit.Fields[fieldQuestion].(string)
		out = append(out, Hit{ID: hit.ID, Question: question, Score: hit.Score})
	}
	return out, nil
}

// buildQuery requires every complete word and a prefix match on the last one.
func buildQuery(terms []string, fuzzy bool) blevequery.Query {
	conj := bleve.NewConjunctionQuery()
	for _, term := range terms[:len(terms)-1] {
		if fuzzy {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(1)
			fq.SetField(fieldQuestion)
			conj.AddQuery(fq)
			continue
		}
		mq := bleve.NewMatchQuery(term)
		mq.SetField(fieldQuestion)
		conj.AddQuery(mq)
	}

	last := terms[len(terms)-1]
	pq := bleve.NewPrefixQuery(last)
	pq.SetField(fieldQuestion)
	mq := bleve.NewMatchQuery(last)
	mq.SetField(fieldQuestion)
	conj.AddQuery(bleve.NewDisjunctionQuery(pq, mq))
	return conj
}

// DocCount returns the number of indexed questions.
func (q *QuestionIndex) DocCount() (uint64, error) {
	return q.index.DocCount()
}

// Close closes the Bleve index.
func (q *QuestionIndex) Close() error {
	return q.index.Close()
}
