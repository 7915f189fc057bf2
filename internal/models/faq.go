// Package models defines core data structures for FAQ entries, index records, and API payloads.
package models

// FAQEntry is one question/answer pair. Entries are identified by their
// zero-based position in the catalog they were loaded from.
type FAQEntry struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// MetadataAnswer is the metadata key under which an entry's answer is stored.
const MetadataAnswer = "answer"

// IndexRecord is the unit stored in a vector index. Records with the same ID replace each other.
type IndexRecord struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is a single similarity-query hit.
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// QueryResult holds matches ordered by descending score.
type QueryResult struct {
	Matches []Match `json:"matches"`
}

// Top returns the best match, or false when there are none.
func (r QueryResult) Top() (Match, bool) {
	if len(r.Matches) == 0 {
		return Match{}, false
	}
	return r.Matches[0], true
}
