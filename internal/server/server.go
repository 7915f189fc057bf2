// Package server provides the HTTP API and dashboard page for Concierge.
package server

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/indexer"
	"github.com/hyperjump/concierge/internal/keyword"
	"github.com/hyperjump/concierge/internal/news"
	"github.com/hyperjump/concierge/internal/search"
	"github.com/hyperjump/concierge/internal/storage"
	"github.com/hyperjump/concierge/internal/vector"
	"github.com/hyperjump/concierge/internal/weather"
	"github.com/hyperjump/concierge/pkg/utils"
)

//go:embed web/index.html
var dashboardHTML []byte

// Services are the collaborators behind the HTTP handlers. Suggester may be nil.
type Services struct {
	Engine      *search.Engine
	Indexer     *indexer.Indexer
	VectorIndex vector.VectorIndex
	Suggester   *keyword.QuestionIndex
	Weather     *weather.Client
	News        *news.Client
	Sessions    storage.SessionStore
}

// Server is the HTTP server for the Concierge API.
type Server struct {
	svc    Services
	config *config.Config
	logger *zap.Logger
	locks  *sessionLocks
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(svc Services, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		svc:    svc,
		config: cfg,
		logger: utils.NopIfNil(logger),
		locks:  newSessionLocks(),
	}
}

// Router builds the chi router with middleware and every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleDashboard)
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Post("/faq/ask", s.handleAsk)
		r.Post("/faq/index", s.handleIndex)
		r.Get("/faq/suggest", s.handleSuggest)

		r.Get("/weather", s.handleWeather)
		r.Get("/news", s.handleNews)

		r.Group(func(r chi.Router) {
			r.Use(s.withSession)
			r.Get("/tasks", s.handleTasksView)
			r.Post("/tasks", s.handleTasksAdd)
			r.Delete("/tasks", s.handleTasksRemove)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
