// Package api exposes the retrieval engine over HTTP.
//
// Endpoints:
//
//	GET    /health                              liveness probe
//	GET    /ready                               readiness probe (pings the database)
//	POST   /api/ingest                          ingest a batch of content items
//	POST   /api/search                          embed a query and search
//	PUT    /api/containers/{type}/{id}/tags     replace a container's tags
//	DELETE /api/chunkables/{type}/{id}          remove a chunkable and its chunks
//
// File structure:
//   - server.go: server setup and lifecycle
//   - middleware.go: recovery, request id, logging
//   - health.go: health probes
//   - knowledge.go: ingest, search, tagging, deletion
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to resist slow-client attacks.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	// Ingest batches can be large, so this is generous.
	ReadTimeout = 60 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout = 60 * time.Second

	// IdleTimeout applies to keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// ServerConfig carries the server's dependencies.
type ServerConfig struct {
	Logger    *slog.Logger
	Knowledge *KnowledgeHandler // required
	Pool      *pgxpool.Pool     // used by the readiness probe
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Knowledge == nil {
		return nil, errors.New("knowledge handler is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	hh := NewHealthHandler(cfg.Pool, logger)
	hh.RegisterRoutes(mux)
	cfg.Knowledge.RegisterRoutes(mux)

	return &Server{mux: mux, logger: logger}, nil
}

// Handler returns the handler with middleware applied.
// Order: recovery → request id → logging → routes. Request id runs before
// logging so every access log line carries it.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware(),
		loggingMiddleware(s.logger),
	)
}

// Run starts the server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
