package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/catalog"
	"github.com/hyperjump/concierge/internal/indexer"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/search"
	"github.com/hyperjump/concierge/internal/storage"
	"github.com/hyperjump/concierge/internal/tasks"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dashboardHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ask request", zap.String("query", req.Query))
	answer, err := s.svc.Engine.Answer(r.Context(), req.Query)
	if err != nil {
		s.logger.Error("faq answer failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, models.AskResponse{Query: req.Query, Answer: answer})
}

type indexResponse struct {
	Indexed int           `json:"indexed"`
	Changed bool          `json:"changed"`
	Stats   indexer.Stats `json:"stats"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	path := s.config.FAQ.CatalogPath
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	s.logger.Debug("index request", zap.String("path", path), zap.Bool("force", force))

	var (
		n       int
		changed bool
		err     error
	)
	if force {
		var entries []models.FAQEntry
		entries, err = catalog.Load(path)
		if err == nil {
			n, err = s.svc.Indexer.Index(r.Context(), entries)
			changed = err == nil
		}
	} else {
		n, changed, err = s.svc.Indexer.Sync(r.Context(), path)
	}
	if err != nil {
		s.logger.Error("indexing failed", zap.String("path", path), zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, indexResponse{Indexed: n, Changed: changed, Stats: s.svc.Indexer.Stats()})
}

type suggestion struct {
	ID       string  `json:"id"`
	Question string  `json:"question"`
	Score    float64 `json:"score"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if s.svc.Suggester == nil {
		s.respondError(w, http.StatusNotImplemented, "suggestions not enabled")
		return
	}
	q := models.SuggestQuery{Prefix: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = limit
	}
	if err := q.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hits, err := s.svc.Suggester.Search(r.Context(), q.Prefix, q.Limit, false)
	if err == nil && len(hits) == 0 {
		// Retry with typo tolerance before giving up.
		hits, err = s.svc.Suggester.Search(r.Context(), q.Prefix, q.Limit, true)
	}
	if err != nil {
		s.logger.Error("suggest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]suggestion, 0, len(hits))
	for _, h := range hits {
		out = append(out, suggestion{ID: h.ID, Question: h.Question, Score: h.Score})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"suggestions": out})
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		s.respondError(w, http.StatusBadRequest, "city is required")
		return
	}
	s.respondJSON(w, http.StatusOK, models.MessageResponse{Message: s.svc.Weather.Lookup(r.Context(), city)})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, models.MessageResponse{Message: s.svc.News.Headlines(r.Context())})
}

func (s *Server) handleTasksView(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r.Context())
	items, err := s.svc.Sessions.Load(r.Context(), id)
	if err != nil {
		s.logger.Error("load session failed", zap.String("session", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}
	list := tasks.NewList(items...)
	s.respondJSON(w, http.StatusOK, models.TaskResponse{Message: list.View(), Tasks: list.Items()})
}

func (s *Server) handleTasksAdd(w http.ResponseWriter, r *http.Request) {
	var req models.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mutateTasks(w, r, func(l *tasks.List) string { return l.Add(req.Task) })
}

func (s *Server) handleTasksRemove(w http.ResponseWriter, r *http.Request) {
	req := models.TaskRequest{Task: r.URL.Query().Get("task")}
	if req.Task == "" && r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, "task is required (query or body)")
		return
	}
	s.mutateTasks(w, r, func(l *tasks.List) string { return l.Remove(req.Task) })
}

// mutateTasks loads the session's list, applies fn and saves the result under the session lock.
func (s *Server) mutateTasks(w http.ResponseWriter, r *http.Request, fn func(*tasks.List) string) {
	ctx := r.Context()
	id := sessionID(ctx)
	unlock := s.locks.lock(id)
	defer unlock()

	items, err := s.svc.Sessions.Load(ctx, id)
	if err != nil {
		s.logger.Error("load session failed", zap.String("session", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}
	list := tasks.NewList(items...)
	msg := fn(list)
	if err := s.svc.Sessions.Save(ctx, id, list.Items()); err != nil {
		s.logger.Error("save session failed", zap.String("session", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to save tasks")
		return
	}
	s.logger.Debug("tasks updated", zap.String("session", id), zap.Int("count", list.Len()))
	s.respondJSON(w, http.StatusOK, models.TaskResponse{Message: msg, Tasks: list.Items()})
}

type statusConfig struct {
	EmbeddingProvider   string  `json:"embedding_provider"`
	EmbeddingDimensions int     `json:"embedding_dimensions"`
	VectorIndexType     string  `json:"vector_index_type"`
	VectorIndexName     string  `json:"vector_index_name,omitempty"`
	CatalogPath         string  `json:"catalog_path"`
	MinScore            float64 `json:"min_score"`
	SessionStore        string  `json:"session_store"`
	Watch               bool    `json:"watch"`
}

type statusResponse struct {
	FAQ              indexer.Stats `json:"faq"`
	VectorIndexSize  *int          `json:"vector_index_size,omitempty"`
	SuggestDocs      *uint64       `json:"suggest_docs,omitempty"`
	Sessions         int           `json:"sessions"`
	SessionStoreSize *int64        `json:"session_store_bytes,omitempty"`
	Config           statusConfig  `json:"config"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := statusResponse{
		FAQ: s.svc.Indexer.Stats(),
		Config: statusConfig{
			EmbeddingProvider:   s.config.Embedding.Provider,
			EmbeddingDimensions: s.config.Embedding.Dimensions,
			VectorIndexType:     s.config.Vector.Type,
			VectorIndexName:     s.config.Vector.IndexName,
			CatalogPath:         s.config.FAQ.CatalogPath,
			MinScore:            s.config.FAQ.MinScore,
			SessionStore:        s.config.Session.Store,
			Watch:               s.config.FAQ.Watch,
		},
	}

	sessions, err := s.svc.Sessions.Count(ctx)
	if err != nil {
		s.logger.Error("status: count sessions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Sessions = sessions

	if s.svc.VectorIndex != nil {
		if size, err := s.svc.VectorIndex.Size(ctx); err == nil {
			resp.VectorIndexSize = &size
		} else {
			s.logger.Warn("status: vector index size unavailable", zap.Error(err))
		}
	}
	if s.svc.Suggester != nil {
		if n, err := s.svc.Suggester.DocCount(); err == nil {
			resp.SuggestDocs = &n
		}
	}
	if s.config.Session.Store == storage.StoreSQLite {
		if n, err := storage.DatabaseSizeBytes(s.config.Session.DatabasePath); err == nil {
			resp.SessionStoreSize = &n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusForError maps pipeline errors onto HTTP codes.
func statusForError(err error) int {
	var perr *models.ProviderError
	var ferr *catalog.FormatError
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.As(err, &perr):
		return http.StatusBadGateway
	case errors.As(err, &ferr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
