// Package http serves the read-only operational surface: regime status,
// persisted target weights, health, and Prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sawpanic/alphatilt/internal/persistence"
)

// Server is the read-only status server
type Server struct {
	router  *mux.Router
	server  *http.Server
	store   persistence.Store
	limiter *rate.Limiter
}

// Config holds server settings
type Config struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewServer wires routes over the state store and metrics gatherer
func NewServer(cfg Config, store persistence.Store, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}

	s.router.Use(s.rateLimit)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("status server listening")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.LoadRegime(r.Context())
	if errors.Is(err, persistence.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no regime status persisted yet"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("status read failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "state store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.LoadPortfolio(r.Context())
	if errors.Is(err, persistence.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no portfolio state persisted yet"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("portfolio read failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "state store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}
