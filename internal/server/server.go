// Package server provides the HTTP API for buildsearch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/exilemind/buildsearch/internal/config"
	"github.com/exilemind/buildsearch/internal/ingest"
	"github.com/exilemind/buildsearch/internal/search"
	"github.com/exilemind/buildsearch/internal/storage"
	"github.com/exilemind/buildsearch/internal/vector"
)

// Server is the HTTP server for the buildsearch API.
type Server struct {
	engine   *search.Engine
	ingestor *ingest.Ingestor
	index    *vector.Index
	store    storage.BuildStore
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	ingestor *ingest.Ingestor,
	index *vector.Index,
	store storage.BuildStore,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		ingestor: ingestor,
		index:    index,
		store:    store,
		config:   cfg,
		logger:   logger,
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/builds", s.handleIngestBuilds)
	r.Get("/api/v1/builds/{hash}", s.handleGetBuild)
	r.Delete("/api/v1/builds/{hash}", s.handleDeleteBuild)
	r.Get("/api/v1/builds/{hash}/variants", s.handleFindVariants)
	r.Post("/api/v1/variants", s.handleVariantsOfBody)
	r.Post("/api/v1/index/rebuild", s.handleRebuild)
	r.Post("/api/v1/index/save", s.handleSaveIndex)
	r.Post("/api/v1/index/load", s.handleLoadIndex)
	r.Post("/api/v1/index/optimize", s.handleOptimize)
	r.Post("/api/v1/index/backup", s.handleBackup)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
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
