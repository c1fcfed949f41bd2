// Package api exposes the chat engine over HTTP: one chat endpoint plus
// health probes, JSON in and out.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirusiru/radish-engine/internal/log"
)

// Server timeouts. The chat turn can legitimately take as long as one
// completion call, so the write timeout sits above the LLM timeout.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Pinger reports whether the backing database is reachable.
// *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP front of the chat engine.
type Server struct {
	mux    *http.ServeMux
	turns  TurnHandler
	pinger Pinger
	logger log.Logger
}

// NewServer wires routes and middleware. pinger may be nil; the readiness
// probe then only reports process liveness.
func NewServer(turns TurnHandler, pinger Pinger, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		mux:    http.NewServeMux(),
		turns:  turns,
		pinger: pinger,
		logger: logger,
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)

	return s
}

// Handler returns the full middleware-wrapped handler:
// recovery → logging → CORS → routes.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = corsMiddleware(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	return handler
}

// Run serves until ctx is canceled, then drains connections within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
