// Package server provides the HTTP API for chatgraph.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/chatgraph/internal/archive"
	"github.com/hyperjump/chatgraph/internal/config"
	"github.com/hyperjump/chatgraph/internal/models"
	"github.com/hyperjump/chatgraph/internal/processor"
	"github.com/hyperjump/chatgraph/internal/search"
	"github.com/hyperjump/chatgraph/internal/storage"
	"github.com/hyperjump/chatgraph/pkg/utils"
)

// ErrNoArchive is returned when a run is requested without an archive path.
var ErrNoArchive = errors.New("no archive path configured")

// Server is the HTTP server for the chatgraph API.
type Server struct {
	engine    *search.Engine
	processor *processor.Processor
	storage   storage.Store
	config    *config.Config
	logger    *zap.Logger
	hub       *Hub
	server    *http.Server

	mu       sync.Mutex
	job      *processor.Job
	last     *models.Progress
	lastErr  string
	finished time.Time
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	proc *processor.Processor,
	store storage.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:    engine,
		processor: proc,
		storage:   store,
		config:    cfg,
		logger:    utils.OrNop(logger),
		hub:       NewHub(logger),
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		// The websocket must not be wrapped by the timeout or compression middleware.
		r.Get("/process/ws", s.hub.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Use(middleware.Compress(5))

			r.Get("/status", s.handleStatus)
			r.Post("/process", s.handleProcess)
			r.Get("/search", s.handleSearch)
			r.Post("/search", s.handleSearch)
			r.Get("/entities", s.handleEntities)
			r.Get("/entities/{id}", s.handleEntity)
			r.Get("/timeline", s.handleTimeline)
			r.Get("/conversations/search", s.handleConversationSearch)
			r.Get("/graph", s.handleGraph)
			r.Get("/graph.png", s.handleGraphPNG)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and closes progress streams.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// StartRun loads the archive at path (the configured archive when empty) and
// starts a background processing run. Progress is broadcast to websocket clients.
func (s *Server) StartRun(path string, mode processor.Mode) (*processor.Job, error) {
	if path == "" {
		path = s.config.Processing.ArchivePath
	}
	if path == "" {
		return nil, ErrNoArchive
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil {
		return nil, processor.ErrRunInProgress
	}
	convs, err := archive.Load(path)
	if err != nil {
		return nil, err
	}
	job := s.processor.Start(context.Background(), convs, mode)
	s.job = job
	s.last = nil
	s.lastErr = ""
	s.logger.Info("processing started", zap.String("archive", path), zap.Int("conversations", len(convs)),
		zap.Int("malformed", len(archive.Malformed(convs))))
	go s.follow(job)
	return job, nil
}

func (s *Server) follow(job *processor.Job) {
	for pr := range job.Progress() {
		pr := pr
		s.mu.Lock()
		s.last = &pr
		s.mu.Unlock()
		s.hub.Broadcast(pr)
	}
	_, err := job.Wait()
	s.mu.Lock()
	s.job = nil
	s.finished = time.Now()
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("processing failed", zap.Error(err))
	}
}

// Running reports whether a processing run started by this server is active.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job != nil
}
