package models

import (
	"fmt"
	"strings"
)

// AskRequest is the body of an FAQ question.
type AskRequest struct {
	Query string `json:"query"`
}

// Validate trims the query and rejects empty input.
func (r *AskRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	return nil
}

// AskResponse carries the FAQ answer (or the fallback sentence).
type AskResponse struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// SuggestQuery is a type-ahead lookup over catalog questions.
type SuggestQuery struct {
	Prefix string `json:"q"`
	Limit  int    `json:"limit,omitempty"`
}

// Validate ensures the prefix is set and normalizes limit to [1, 20].
func (q *SuggestQuery) Validate() error {
	q.Prefix = strings.TrimSpace(q.Prefix)
	if q.Prefix == "" {
		return fmt.Errorf("q cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 5
	}
	if q.Limit > 20 {
		q.Limit = 20
	}
	return nil
}

// TaskRequest names a task to add or remove. Tasks are matched verbatim.
type TaskRequest struct {
	Task string `json:"task"`
}

// Validate rejects empty task text.
func (r *TaskRequest) Validate() error {
	if strings.TrimSpace(r.Task) == "" {
		return fmt.Errorf("task cannot be empty")
	}
	return nil
}

// TaskResponse returns the user-facing message plus the current list.
type TaskResponse struct {
	Message string   `json:"message"`
	Tasks   []string `json:"tasks"`
}

// MessageResponse wraps a single user-facing message (weather, news).
type MessageResponse struct {
	Message string `json:"message"`
}
