package models

import (
	"testing"
)

func TestAskRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *AskRequest
		want    string
		wantErr bool
	}{
		{"empty query", &AskRequest{Query: ""}, "", true},
		{"whitespace only", &AskRequest{Query: "  \t "}, "", true},
		{"valid query", &AskRequest{Query: "refund policy"}, "refund policy", false},
		{"trims", &AskRequest{Query: "  hours? "}, "hours?", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.req.Query != tt.want {
				t.Errorf("Query = %q, want %q", tt.req.Query, tt.want)
			}
		})
	}
}

func TestSuggestQuery_Validate(t *testing.T) {
	tests := []struct {
		name      string
		query     *SuggestQuery
		wantLimit int
		wantErr   bool
	}{
		{"empty prefix", &SuggestQuery{}, 0, true},
		{"sets default limit", &SuggestQuery{Prefix: "ref"}, 5, false},
		{"caps limit at 20", &SuggestQuery{Prefix: "ref", Limit: 200}, 20, false},
		{"keeps limit", &SuggestQuery{Prefix: "ref", Limit: 3}, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.query.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", tt.query.Limit, tt.wantLimit)
			}
		})
	}
}

func TestTaskRequest_Validate(t *testing.T) {
	if err := (&TaskRequest{Task: " "}).Validate(); err == nil {
		t.Error("blank task should fail validation")
	}
	if err := (&TaskRequest{Task: "buy milk"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestQueryResult_Top(t *testing.T) {
	if _, ok := (QueryResult{}).Top(); ok {
		t.Error("empty result should have no top match")
	}
	r := QueryResult{Matches: []Match{{ID: "3", Score: 0.9}, {ID: "1", Score: 0.2}}}
	m, ok := r.Top()
	if !ok || m.ID != "3" {
		t.Errorf("Top() = %+v, %v", m, ok)
	}
}
