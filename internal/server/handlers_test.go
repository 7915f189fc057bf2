package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/catalog"
	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/embedding"
	"github.com/hyperjump/concierge/internal/indexer"
	"github.com/hyperjump/concierge/internal/keyword"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/news"
	"github.com/hyperjump/concierge/internal/search"
	"github.com/hyperjump/concierge/internal/storage"
	"github.com/hyperjump/concierge/internal/tasks"
	"github.com/hyperjump/concierge/internal/vector"
	"github.com/hyperjump/concierge/internal/weather"
)

const testCatalog = `[
  {"question": "What are your opening hours?", "answer": "We are open 9am to 5pm."},
  {"question": "How do I reset my password?", "answer": "Use the forgot password link."},
  {"question": "Do you ship internationally?", "answer": "Yes, to most countries."}
]`

type testEnv struct {
	srv     *Server
	handler http.Handler
	cfg     *config.Config
	idx     *indexer.Indexer
}

type failingEmbedder struct{ dims int }

func (f failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}
func (f failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}
func (f failingEmbedder) Dimensions() int { return f.dims }
func (f failingEmbedder) Close() error { return nil }

func newTestEnv(t *testing.T, embedder embedding.Embedder) *testEnv {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "faqs.json")
	if err := os.WriteFile(catalogPath, []byte(testCatalog), 0644); err != nil {
		t.Fatal(err)
	}

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/2.5/weather":
			if r.URL.Query().Get("q") == "Atlantis" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprint(w, `{"weather":[{"description":"clear sky"}],"main":{"temp":21.5}}`)
		case "/v2/top-headlines":
			fmt.Fprint(w, `{"articles":[{"title":"A"},{"title":"B"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(remote.Close)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimensions = 16
	cfg.FAQ.CatalogPath = catalogPath
	cfg.Weather.BaseURL = remote.URL
	cfg.Weather.APIKey = "w"
	cfg.News.BaseURL = remote.URL
	cfg.News.APIKey = "n"

	vec, err := vector.NewMemoryIndex(16, vector.MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	suggester, err := keyword.NewQuestionIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = suggester.Close() })

	idx := indexer.NewIndexer(embedder, vec, indexer.WithSuggester(suggester))
	engine := search.NewEngine(embedder, vec)
	srv := NewServer(Services{
		Engine:      engine,
		Indexer:     idx,
		VectorIndex: vec,
		Suggester:   suggester,
		Weather:     weather.NewClient(cfg.Weather),
		News:        news.NewClient(cfg.News),
		Sessions:    storage.NewMemorySessionStore(),
	}, cfg, zap.NewNop())
	return &testEnv{srv: srv, handler: srv.Router(), cfg: cfg, idx: idx}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func (e *testEnv) index(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/faq/index", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("index: status %d body %s", w.Code, w.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleDashboard(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))
	w := env.do(t, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/api/v1/faq/ask") {
		t.Error("dashboard page does not reference the ask endpoint")
	}
}

func TestHandleIndexAndAsk(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))

	w := env.do(t, http.MethodPost, "/api/v1/faq/index", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("index status %d: %s", w.Code, w.Body.String())
	}
	var ir indexResponse
	decode(t, w, &ir)
	if ir.Indexed != 3 || !ir.Changed {
		t.Errorf("index response = %+v", ir)
	}

	w = env.do(t, http.MethodPost, "/api/v1/faq/index", nil)
	decode(t, w, &ir)
	if ir.Changed {
		t.Error("second index of an unchanged catalog should report changed=false")
	}

	w = env.do(t, http.MethodPost, "/api/v1/faq/ask", models.AskRequest{Query: "  How do I reset   my password? "})
	if w.Code != http.StatusOK {
		t.Fatalf("ask status %d: %s", w.Code, w.Body.String())
	}
	var ar models.AskResponse
	decode(t, w, &ar)
	if ar.Answer != "Use the forgot password link." {
		t.Errorf("answer = %q", ar.Answer)
	}
}

func TestHandleAsk_EmptyIndexFallback(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))
	w := env.do(t, http.MethodPost, "/api/v1/faq/ask", models.AskRequest{Query: "anything"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var ar models.AskResponse
	decode(t, w, &ar)
	if ar.Answer != search.FallbackAnswer {
		t.Errorf("answer = %q", ar.Answer)
	}
}

func TestHandleAsk_BadRequests(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))
	w := env.do(t, http.MethodPost, "/api/v1/faq/ask", models.AskRequest{Query: "   "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank query: status %d", w.Code)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/faq/ask", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status %d", rec.Code)
	}
}

func TestHandleAsk_ProviderErrorIsBadGateway(t *testing.T) {
	env := newTestEnv(t, failingEmbedder{dims: 16})
	w := env.do(t, http.MethodPost, "/api/v1/faq/ask", models.AskRequest{Query: "hello"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("status %d, want 502", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/v1/faq/index", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("index status %d, want 502", w.Code)
	}
}

func TestHandleIndex_FormatError(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))
	if err := os.WriteFile(env.cfg.FAQ.CatalogPath, []byte(`[{"question":"q"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodPost, "/api/v1/faq/index?force=true", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status %d, want 422: %s", w.Code, w.Body.String())
	}

	env.cfg.FAQ.CatalogPath = filepath.Join(t.TempDir(), "missing.json")
	w = env.do(t, http.MethodPost, "/api/v1/faq/index", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing catalog: status %d, want 404", w.Code)
	}
}

func TestHandleSuggest(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))
	env.index(t)

	w := env.do(t, http.MethodGet, "/api/v1/faq/suggest?q=how+do+I+res", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Suggestions []suggestion `json:"suggestions"`
	}
	decode(t, w, &out)
	if len(out.Suggestions) != 1 || out.Suggestions[0].Question != "How do I reset my password?" {
		t.Errorf("suggestions = %+v", out.Suggestions)
	}

	w = env.do(t, http.MethodGet, "/api/v1/faq/suggest?q=", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty q: status %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/faq/suggest?q=x&limit=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status %d", w.Code)
	}
}

func TestHandleSuggest_NotEnabled(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))
	env.srv.svc.Suggester = nil
	w := env.do(t, http.MethodGet, "/api/v1/faq/suggest?q=what", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status %d, want 501", w.Code)
	}
}

func TestHandleWeather(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))

	w := env.do(t, http.MethodGet, "/api/v1/weather?city=Paris", nil)
	var mr models.MessageResponse
	decode(t, w, &mr)
	if mr.Message != "The weather in Paris is Clear sky with a temperature of 21.5°C." {
		t.Errorf("message = %q", mr.Message)
	}

	w = env.do(t, http.MethodGet, "/api/v1/weather?city=Atlantis", nil)
	if w.Code != http.StatusOK {
		t.Errorf("fallback status %d", w.Code)
	}
	decode(t, w, &mr)
	if mr.Message != weather.FallbackMessage {
		t.Errorf("message = %q", mr.Message)
	}

	w = env.do(t, http.MethodGet, "/api/v1/weather", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing city: status %d", w.Code)
	}
}

func TestHandleNews(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))
	w := env.do(t, http.MethodGet, "/api/v1/news", nil)
	var mr models.MessageResponse
	decode(t, w, &mr)
	if mr.Message != "1. A\n2. B" {
		t.Errorf("message = %q", mr.Message)
	}
}

func TestHandleTasks_SessionFlow(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))

	w := env.do(t, http.MethodPost, "/api/v1/tasks", models.TaskRequest{Task: "buy milk"})
	if w.Code != http.StatusOK {
		t.Fatalf("add status %d: %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != env.cfg.Session.CookieName {
		t.Fatalf("cookies = %v", cookies)
	}
	var tr models.TaskResponse
	decode(t, w, &tr)
	if tr.Message != "Task 'buy milk' added." {
		t.Errorf("add message = %q", tr.Message)
	}

	w = env.do(t, http.MethodGet, "/api/v1/tasks", nil, cookies[0])
	decode(t, w, &tr)
	if tr.Message != "1. buy milk" {
		t.Errorf("view message = %q", tr.Message)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("valid session cookie should not be reissued")
	}

	w = env.do(t, http.MethodDelete, "/api/v1/tasks?task=nonexistent", nil, cookies[0])
	decode(t, w, &tr)
	if tr.Message != "Task 'nonexistent' not found." || len(tr.Tasks) != 1 {
		t.Errorf("remove miss = %+v", tr)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/tasks", models.TaskRequest{Task: "buy milk"}, cookies[0])
	decode(t, w, &tr)
	if tr.Message != "Task 'buy milk' removed." {
		t.Errorf("remove message = %q", tr.Message)
	}

	w = env.do(t, http.MethodGet, "/api/v1/tasks", nil, cookies[0])
	decode(t, w, &tr)
	if tr.Message != tasks.EmptyMessage {
		t.Errorf("view after remove = %q", tr.Message)
	}
}

func TestHandleTasks_SessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))
	w := env.do(t, http.MethodPost, "/api/v1/tasks", models.TaskRequest{Task: "mine"})
	first := w.Result().Cookies()[0]

	w = env.do(t, http.MethodGet, "/api/v1/tasks", nil)
	var tr models.TaskResponse
	decode(t, w, &tr)
	if tr.Message != tasks.EmptyMessage {
		t.Errorf("new session sees %q", tr.Message)
	}

	bogus := &http.Cookie{Name: first.Name, Value: "not-a-uuid"}
	w = env.do(t, http.MethodGet, "/api/v1/tasks", nil, bogus)
	if len(w.Result().Cookies()) != 1 {
		t.Error("malformed session cookie should be replaced")
	}
}

func TestHandleTasks_Validation(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))
	w := env.do(t, http.MethodPost, "/api/v1/tasks", models.TaskRequest{Task: "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank add: status %d", w.Code)
	}
	w = env.do(t, http.MethodDelete, "/api/v1/tasks", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank remove: status %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, embedding.NewMockEmbedder(16))
	env.index(t)
	env.do(t, http.MethodPost, "/api/v1/tasks", models.TaskRequest{Task: "x"})

	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var st statusResponse
	decode(t, w, &st)
	if st.FAQ.Entries != 3 || st.FAQ.Fingerprint == "" {
		t.Errorf("faq stats = %+v", st.FAQ)
	}
	if st.VectorIndexSize == nil || *st.VectorIndexSize != 3 {
		t.Errorf("vector_index_size = %v", st.VectorIndexSize)
	}
	if st.SuggestDocs == nil || *st.SuggestDocs != 3 {
		t.Errorf("suggest_docs = %v", st.SuggestDocs)
	}
	if st.Sessions != 1 {
		t.Errorf("sessions = %d", st.Sessions)
	}
	if st.Config.EmbeddingProvider != "mock" {
		t.Errorf("config = %+v", st.Config)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{search.ErrEmptyQuery, http.StatusBadRequest},
		{&models.ProviderError{Op: "embed query", Err: errors.New("x")}, http.StatusBadGateway},
		{fmt.Errorf("wrap: %w", &catalog.FormatError{Source: "f", Index: 0, Reason: "r"}), http.StatusUnprocessableEntity},
		{fmt.Errorf("read catalog: %w", os.ErrNotExist), http.StatusNotFound},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusForError(tt.err); got != tt.want {
			t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSessionLocks_ReleasesEntries(t *testing.T) {
	l := newSessionLocks()
	unlock := l.lock("a")
	unlock()
	if len(l.locks) != 0 {
		t.Errorf("locks not released: %d", len(l.locks))
	}
}
