// Package server exposes the analysis scheduler over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"go.uber.org/zap"

	"github.com/ppiankov/taxaformer/internal/model"
	"github.com/ppiankov/taxaformer/internal/worker"
)

// Server serves the upload and queue API
type Server struct {
	cfg       model.ServerConfig
	scheduler *worker.Scheduler
	logger    *zap.Logger
	version   string
	now       func() time.Time
}

// New creates a server backed by scheduler
func New(cfg model.ServerConfig, scheduler *worker.Scheduler, logger *zap.Logger, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Server{
		cfg:       cfg,
		scheduler: scheduler,
		logger:    logger,
		version:   version,
		now:       time.Now,
	}
}

// Handler returns the routed handler wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	POST := router.Methods("POST").Subrouter()
	GET := router.Methods("GET", "HEAD").Subrouter()

	GET.HandleFunc("/", s.Index).Name("index")
	GET.HandleFunc("/health", s.Health).Name("health")
	GET.HandleFunc("/queue/status", s.QueueStatus).Name("queue-status")
	GET.HandleFunc("/queue/stats", s.QueueStats).Name("queue-stats")
	GET.HandleFunc("/jobs/{id}", s.Job).Name("job")
	GET.HandleFunc("/jobs/{id}/result", s.JobResult).Name("job-result")

	POST.HandleFunc("/analyze", s.Analyze).Name("analyze")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, apiError{
			Code:    "NOT_FOUND",
			Message: fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path),
		})
	})

	standard := alice.New(
		s.recoverPanics,
		s.logRequests,
	)

	return standard.Then(router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
