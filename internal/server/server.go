// Package server exposes manager status and Prometheus metrics over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/osmike/cadence/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// TimerSource is the read side of a timer manager.
type TimerSource interface {
	Name() string
	State() domain.ManagerState
	Timers() []domain.TimerState
}

// WorkSource is the read side of a work manager.
type WorkSource interface {
	Stats() domain.WorkStats
}

// HistorySource is the read side of an execution history.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]domain.StateDTO, error)
}

// Server serves /healthz, /timers, /work, /executions and /metrics.
type Server struct {
	router       chi.Router
	logger       *zap.Logger
	timers       TimerSource
	work         WorkSource
	gatherer     prometheus.Gatherer
	history      HistorySource
	historyLimit int
	startTime    time.Time
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithHistory mounts /executions over h. limit is the page size used when the
// request does not set one.
func WithHistory(h HistorySource, limit int) Option {
	return func(s *Server) {
		s.history = h
		s.historyLimit = limit
	}
}

// New creates a Server with all routes registered.
// gatherer may be nil, in which case /metrics is not mounted.
func New(timers TimerSource, work WorkSource, gatherer prometheus.Gatherer, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.Named("http"),
		timers:    timers,
		work:      work,
		gatherer:  gatherer,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/timers", s.handleTimers)
	r.Get("/work", s.handleWork)
	if s.history != nil {
		r.Get("/executions", s.handleExecutions)
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Run serves on addr until ctx is done, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
