// Package api serves the read-only status endpoints: liveness, the recent
// error log, attendee listings and prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/eventpass/internal/domain"
	"github.com/ignite/eventpass/internal/errlog"
	"github.com/ignite/eventpass/internal/pkg/logger"
)

// AttendeeReader is the listing side of an attendee repository.
type AttendeeReader interface {
	List(ctx context.Context) ([]domain.Attendee, error)
	ListEmailNotSent(ctx context.Context) ([]domain.Attendee, error)
}

// Server is the status HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    *logger.Logger
}

// NewServer builds the router. gatherer may be nil, in which case /metrics
// is not mounted.
func NewServer(attendees AttendeeReader, errors errlog.Log, gatherer prometheus.Gatherer) *Server {
	h := &handlers{attendees: attendees, errors: errors}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", h.liveness)
	r.Get("/errors", h.recentErrors)
	r.Route("/attendees", func(r chi.Router) {
		r.Get("/", h.listAttendees)
		r.Get("/pending", h.listPending)
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return &Server{router: r, log: logger.With("api")}
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.log.Info("status API listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
