// Package server is a mock of the remote event service: an in-memory event
// table behind the same HTTP contract the store's remote client speaks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"calstore/internal/google"
	"calstore/internal/ics"
	"calstore/internal/metrics"
	"calstore/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodyBytes      = 1 << 20
	shutdownTimeout   = 5 * time.Second
	limiterPruneEvery = time.Minute
	limiterMaxIdle    = 3 * time.Minute
)

// Server serves the event routes over a Repository.
type Server struct {
	repo    *Repository
	oauth   *google.OAuth
	metrics *metrics.Manager
	limiter *RateLimiter
	logger  *slog.Logger

	connected atomic.Bool
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithOAuth enables the authorization URL route. Without it the route
// answers 500.
func WithOAuth(o *google.OAuth) Option {
	return func(s *Server) {
		s.oauth = o
	}
}

// WithMetrics sets the metrics manager whose registry /healthz exposes.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRateLimiter enables per-client rate limiting.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = rl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConnected sets the initial connection state.
func WithConnected(connected bool) Option {
	return func(s *Server) {
		s.connected.Store(connected)
	}
}

// New creates a Server. It starts connected unless WithConnected(false) is given.
func New(repo *Repository, opts ...Option) *Server {
	s := &Server{
		repo:   repo,
		logger: slog.Default(),
	}
	s.connected.Store(true)
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewManager()
	}
	return s
}

// Connected reports whether event routes are currently served.
func (s *Server) Connected() bool { return s.connected.Load() }

// Handler returns the routed handler with middlewares applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	if s.limiter == nil {
		return mux
	}
	return rateLimitMiddleware(s.limiter, s.metrics, mux)
}

// Register attaches all routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	m := s.metrics
	mux.HandleFunc("GET /healthz", metricsMiddleware(m, "healthz", s.handleHealth))
	mux.HandleFunc("GET /api/google/events", metricsMiddleware(m, "events", s.requireConnected(s.handleList)))
	mux.HandleFunc("POST /api/google/events", metricsMiddleware(m, "events", s.requireConnected(s.handleCreate)))
	mux.HandleFunc("GET /api/google/events.ics", metricsMiddleware(m, "events_ics", s.requireConnected(s.handleFeed)))
	mux.HandleFunc("PATCH /api/google/events/{id}", metricsMiddleware(m, "event", s.requireConnected(s.handleUpdate)))
	mux.HandleFunc("DELETE /api/google/events/{id}", metricsMiddleware(m, "event", s.requireConnected(s.handleDelete)))
	mux.HandleFunc("GET /api/google/oauth/url", metricsMiddleware(m, "oauth_url", s.handleAuthURL))
	mux.HandleFunc("POST /api/google/connect", metricsMiddleware(m, "connect", s.handleConnect))
	mux.HandleFunc("POST /api/google/disconnect", metricsMiddleware(m, "disconnect", s.handleDisconnect))
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if s.limiter != nil {
		go s.limiter.Run(ctx, limiterPruneEvery, limiterMaxIdle)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Event service listening", "addr", addr, "connected", s.Connected())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%w: %w", ErrServe, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down event service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%w: shutdown: %w", ErrServe, err)
	}
	return nil
}

func (s *Server) requireConnected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.connected.Load() {
			writeError(w, http.StatusUnauthorized, "unauthorized", ErrUnauthorized)
			return
		}
		next(w, r)
	}
}

type eventsResponse struct {
	Events []models.Event `json:"events"`
}

type eventResponse struct {
	Event models.Event `json:"event"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type urlResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, eventsResponse{Events: s.repo.List()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in models.EventInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_event", err)
		return
	}

	e := s.repo.Create(in)
	s.logger.Debug("Created event", "id", e.ID, "title", e.Title)
	writeJSON(w, http.StatusOK, eventResponse{Event: e})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch models.EventPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if err := patch.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_event", err)
		return
	}

	e, err := s.repo.Update(id, patch)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: %s", err, id))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	s.logger.Debug("Updated event", "id", id)
	writeJSON(w, http.StatusOK, eventResponse{Event: e})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.repo.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: %s", err, id))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	s.logger.Debug("Deleted event", "id", id)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleFeed(w http.ResponseWriter, _ *http.Request) {
	events := s.repo.List()
	if len(events) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	if err := ics.Encode(w, events); err != nil {
		s.logger.Error("Failed to encode calendar feed", "error", err)
	}
}

func (s *Server) handleAuthURL(w http.ResponseWriter, _ *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusInternalServerError, "not_configured", google.ErrNotConfigured)
		return
	}
	writeJSON(w, http.StatusOK, urlResponse{URL: s.oauth.AuthURL(google.NewState())})
}

func (s *Server) handleConnect(w http.ResponseWriter, _ *http.Request) {
	if !s.connected.Swap(true) {
		s.logger.Info("Calendar connected")
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	if s.connected.Swap(false) {
		s.logger.Info("Calendar disconnected")
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
