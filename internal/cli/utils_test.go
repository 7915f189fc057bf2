package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/concierge/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"text", "json"} {
		if f, err := ParseOutputFormat(s); err != nil || string(f) != s {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", s, f, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for yaml")
	}
}

func TestWriteAnswer(t *testing.T) {
	resp := &models.AskResponse{Query: "q", Answer: "We are open 9am to 5pm."}

	var buf bytes.Buffer
	if err := WriteAnswer(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "We are open 9am to 5pm.\n" {
		t.Errorf("text = %q", buf.String())
	}

	buf.Reset()
	if err := WriteAnswer(&buf, resp, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.AskResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded != *resp {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteMessage(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, "1. A\n2. B", OutputText); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "1. A\n2. B\n" {
		t.Errorf("text = %q", buf.String())
	}

	buf.Reset()
	if err := WriteMessage(&buf, "hi", OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"message": "hi"`) {
		t.Errorf("json = %s", buf.String())
	}
}

func TestWriteMatch(t *testing.T) {
	m := models.Match{ID: "2", Score: 0.87654, Metadata: map[string]string{models.MetadataAnswer: "Yes."}}

	var buf bytes.Buffer
	if err := WriteMatch(&buf, "ship?", m, true, OutputText); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "[2] score 0.8765\nYes.\n" {
		t.Errorf("text = %q", buf.String())
	}

	buf.Reset()
	_ = WriteMatch(&buf, "ship?", models.Match{}, false, OutputText)
	if buf.String() != "no match for \"ship?\"\n" {
		t.Errorf("no-match text = %q", buf.String())
	}

	buf.Reset()
	_ = WriteMatch(&buf, "ship?", models.Match{}, false, OutputJSON)
	if strings.Contains(buf.String(), "match\":") {
		t.Errorf("json without match should omit it: %s", buf.String())
	}
}
