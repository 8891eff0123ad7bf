// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nesttask/client/internal/platform/apperr"
	"github.com/nesttask/client/internal/platform/constants"
	"github.com/nesttask/client/internal/platform/respond"
)

// Server wraps the chi router and the [http.Server] for the local status
// surface. It binds to localhost only; this is an introspection port, not
// a public API.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// Handlers groups the status-surface handler set.
type Handlers struct {
	// Liveness is the /health handler.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler.
	Readiness http.HandlerFunc

	// Status is the /status snapshot handler.
	Status http.HandlerFunc
}

// NewRouter builds the status-surface router. Exposed separately from
// [NewServer] so embedding hosts can mount the surface on their own mux.
func NewRouter(h Handlers) http.Handler {
	router := chi.NewRouter()

	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(constants.StatusWriteTimeout))
	router.Use(chimw.CleanPath)

	router.Get("/health", h.Liveness)
	router.Get("/ready", h.Readiness)
	router.Get("/status", h.Status)

	// Everything else answers in the same JSON envelope as real routes.
	router.NotFound(func(writer http.ResponseWriter, _ *http.Request) {
		respond.Error(writer, apperr.NotFound("Endpoint"))
	})
	router.MethodNotAllowed(func(writer http.ResponseWriter, _ *http.Request) {
		respond.Error(writer, apperr.ValidationError("Method not allowed"))
	})

	return router
}

// NewServer constructs the router and the underlying [http.Server].
func NewServer(port string, log *slog.Logger, h Handlers) *Server {
	router := NewRouter(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         "127.0.0.1:" + port,
			Handler:      router,
			ReadTimeout:  constants.StatusReadTimeout,
			WriteTimeout: constants.StatusWriteTimeout,
		},
		log: log,
	}
}

// ListenAndServe starts the status server. Blocks until shutdown or error.
func (s *Server) ListenAndServe() error {
	s.log.Info("status_server_listening", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains the status server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
