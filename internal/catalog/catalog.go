// Package catalog loads FAQ question/answer entries from JSON, YAML and Excel files.
package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/concierge/internal/models"
)

// Extensions lists the catalog formats Load understands.
var Extensions = []string{".json", ".yaml", ".yml", ".xlsx"}

// FormatError reports a catalog that is not an array of {question, answer} records.
// Index is the offending entry, or -1 when the whole document is malformed.
type FormatError struct {
	Source string
	Index  int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid FAQ format in %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("invalid FAQ format in %s: entry %d: %s", e.Source, e.Index, e.Reason)
}

// Load reads the catalog at path, choosing the parser by extension.
// Entries keep file order; their position is their identity.
func Load(path string) ([]models.FAQEntry, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" {
		return ParseXLSX(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	switch ext {
	case ".json", "":
		return ParseJSON(bytes.NewReader(content), path)
	case ".yaml", ".yml":
		return ParseYAML(bytes.NewReader(content), path)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q (supported: %s)", ext, strings.Join(Extensions, ", "))
	}
}

// ParseJSON decodes a JSON array of {"question", "answer"} objects. source names the input in errors.
func ParseJSON(r io.Reader, source string) ([]models.FAQEntry, error) {
	var doc any
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, &FormatError{Source: source, Index: -1, Reason: "not valid JSON: " + err.Error()}
	}
	return fromDocument(doc, source)
}

// ParseYAML decodes a YAML sequence of {question, answer} mappings.
func ParseYAML(r io.Reader, source string) ([]models.FAQEntry, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, &FormatError{Source: source, Index: -1, Reason: "document is empty"}
		}
		return nil, &FormatError{Source: source, Index: -1, Reason: "not valid YAML: " + err.Error()}
	}
	return fromDocument(doc, source)
}

func fromDocument(doc any, source string) ([]models.FAQEntry, error) {
	items, ok := doc.([]any)
	if !ok {
		return nil, &FormatError{Source: source, Index: -1, Reason: "top level must be an array of records"}
	}
	entries := make([]models.FAQEntry, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, &FormatError{Source: source, Index: i, Reason: "entry is not a record"}
		}
		q, err := field(rec, "question")
		if err != nil {
			return nil, &FormatError{Source: source, Index: i, Reason: err.Error()}
		}
		a, err := field(rec, "answer")
		if err != nil {
			return nil, &FormatError{Source: source, Index: i, Reason: err.Error()}
		}
		entries = append(entries, models.FAQEntry{Question: q, Answer: a})
	}
	return entries, nil
}

func field(rec map[string]any, name string) (string, error) {
	v, ok := rec[name]
	if !ok {
		return "", fmt.Errorf("missing %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q must be a string", name)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%q is empty", name)
	}
	return s, nil
}

// Fingerprint returns a stable hash of the ordered entries, used to skip re-indexing an unchanged catalog.
func Fingerprint(entries []models.FAQEntry) string {
	h := sha256.New()
	for _, e := range entries {
		io.WriteString(h, e.Question)
		h.Write([]byte{0})
		io.WriteString(h, e.Answer)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
