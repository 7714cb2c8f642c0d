package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elonfeng/tennisradar/internal/scheduler"
	"github.com/elonfeng/tennisradar/internal/store"
	"github.com/elonfeng/tennisradar/pkg/engine"
	"github.com/elonfeng/tennisradar/pkg/tennis"
)

// Loader returns the tables the server should serve.
type Loader func(ctx context.Context) (*tennis.Tables, error)

// Collector runs one collection on demand.
type Collector interface {
	Collect(ctx context.Context) (*scheduler.Result, error)
}

// Options configures the server.
type Options struct {
	Port            int
	Mode            string // gin mode
	Defaults        engine.Filter
	LeaderboardSize int
}

// snapshot is an immutable set of tables with the view built from them.
type snapshot struct {
	hash   string
	tables *tennis.Tables
	view   []engine.Row
	err    error
}

// Server provides the HTTP API.
type Server struct {
	store     store.Store
	collector Collector
	loader    Loader
	opts      Options
	logger    *zap.Logger
	router    *gin.Engine

	mu   sync.RWMutex
	snap *snapshot
}

// New creates a new HTTP server. store and collector may be nil; the
// endpoints that need them then answer 503.
func New(s store.Store, collector Collector, loader Loader, opts Options, logger *zap.Logger) *Server {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.LeaderboardSize <= 0 {
		opts.LeaderboardSize = 10
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &Server{
		store:     s,
		collector: collector,
		loader:    loader,
		opts:      opts,
		logger:    logger.Named("server"),
	}
	srv.SetTables(&tennis.Tables{})
	srv.router = srv.routes()
	return srv
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", s.handleHealth)

	api := r.Group("/api/v1")
	api.GET("/overview", s.handleOverview)
	api.GET("/rankings", s.handleRankings)
	api.GET("/leaderboards", s.handleLeaderboards)
	api.GET("/countries", s.handleCountries)
	api.GET("/categories", s.handleCategories)
	api.GET("/competitors", s.handleSearch)
	api.GET("/competitors/:name", s.handlePlayer)
	api.GET("/analysis", s.handleAnalysis)
	api.GET("/runs", s.handleRuns)
	api.POST("/collect", s.handleCollect)

	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Reload replaces the served tables with the loader's result.
func (s *Server) Reload(ctx context.Context) error {
	if s.loader == nil {
		return nil
	}
	t, err := s.loader(ctx)
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}
	s.SetTables(t)
	return nil
}

// SetTables swaps in a new snapshot. The view is only rebuilt when the
// content hash changed.
func (s *Server) SetTables(t *tennis.Tables) {
	if t == nil {
		t = &tennis.Tables{}
	}
	h := t.Hash()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil && s.snap.hash == h {
		return
	}
	view, err := engine.BuildView(t)
	s.snap = &snapshot{hash: h, tables: t, view: view, err: err}
	s.logger.Info("snapshot loaded", zap.String("hash", h[:12]), zap.Int("rows", len(view)), zap.Error(err))
}

func (s *Server) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", httpSrv.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
