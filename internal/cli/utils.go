// Package cli provides output helpers for the Concierge command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteAnswer writes an FAQ answer. Text output is the answer alone.
func WriteAnswer(w io.Writer, resp *models.AskResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, resp)
	}
	_, err := fmt.Fprintln(w, resp.Answer)
	return err
}

// WriteMessage writes a weather, news or task message.
func WriteMessage(w io.Writer, message string, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, models.MessageResponse{Message: message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}

// WriteMatch writes an answer together with the id and score of the catalog entry it came from.
func WriteMatch(w io.Writer, query string, m models.Match, found bool, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, struct {
			Query string        `json:"query"`
			Found bool          `json:"found"`
			Match *models.Match `json:"match,omitempty"`
		}{Query: query, Found: found, Match: matchOrNil(m, found)})
	}
	if !found {
		_, err := fmt.Fprintf(w, "no match for %q\n", query)
		return err
	}
	_, err := fmt.Fprintf(w, "[%s] score %.4f\n%s\n", m.ID, m.Score,
		utils.Truncate(m.Metadata[models.MetadataAnswer], 200))
	return err
}

func matchOrNil(m models.Match, found bool) *models.Match {
	if !found {
		return nil
	}
	return &m
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
