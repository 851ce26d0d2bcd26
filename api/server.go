// Package api provides the HTTP REST API server for pairtrade.
//
// It exposes endpoints for pairs backtests, parameter sweeps, hedge
// ratios, cointegration tests, budget tables and reports, plus Prometheus
// metrics and WebSocket notifications.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/seenimoa/pairtrade/internal/backtest"
	"github.com/seenimoa/pairtrade/internal/config"
	"github.com/seenimoa/pairtrade/internal/datasource"
	"github.com/seenimoa/pairtrade/internal/metrics"
	"github.com/seenimoa/pairtrade/pkg/models"
	"github.com/seenimoa/pairtrade/web"
)

// Deps are the collaborators a Server is built from. Metrics is optional.
type Deps struct {
	Config   *config.Config
	Provider datasource.Provider
	Engine   *backtest.Engine
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
	Version  string
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	provider datasource.Provider
	engine   *backtest.Engine
	metrics  *metrics.Metrics
	log      zerolog.Logger
	wsHub    *WSHub
	version  string
	started  time.Time

	// mu guards the default strategy, which PUT /config/strategy replaces.
	mu       sync.RWMutex
	strategy config.StrategyConfig
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(d Deps) (*Server, error) {
	if d.Config == nil {
		return nil, fmt.Errorf("%w: api server needs a config", models.ErrInvalidArgument)
	}
	if d.Provider == nil || d.Engine == nil {
		return nil, fmt.Errorf("%w: api server needs a provider and an engine", models.ErrInvalidArgument)
	}
	version := d.Version
	if version == "" {
		version = "dev"
	}
	srv := &Server{
		cfg:      d.Config,
		provider: d.Provider,
		engine:   d.Engine,
		metrics:  d.Metrics,
		log:      d.Logger,
		wsHub:    NewWSHub(d.Logger),
		version:  version,
		started:  time.Now(),
		strategy: d.Config.Strategy,
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe starts the HTTP server and the WebSocket hub, and shuts
// both down gracefully when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	readTimeout, writeTimeout := s.cfg.API.ReadTimeout, s.cfg.API.WriteTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 120 * time.Second
	}
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("api server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get("/ws", s.handleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/strategies", s.handleStrategies)

		r.Post("/backtest", s.handleBacktest)
		r.Post("/sweep", s.handleSweep)
		r.Post("/hedge", s.handleHedge)
		r.Post("/cointegration", s.handleCointegration)
		r.Post("/budget", s.handleBudget)
		r.Get("/report", s.handleReport)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)
		r.Put("/config/strategy", s.handleUpdateStrategy)

		r.Get("/ws", s.handleWebSocket)
	})

	// Dashboard
	r.Handle("/*", http.FileServerFS(web.DistFS()))

	return r
}

// requestLogger logs each request and records it in the HTTP metrics
// under its route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, status)
		}
		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

// ============================================================
// Response helpers
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func (s *Server) writeData(w http.ResponseWriter, v interface{}) {
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: v})
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, APIResponse{Success: false, Error: msg})
}

// writeErr maps err onto an HTTP status through its sentinel.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	s.writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidArgument),
		errors.Is(err, models.ErrTypeMismatch),
		errors.Is(err, models.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, datasource.ErrTickerNotFound):
		return http.StatusNotFound
	case errors.Is(err, datasource.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrDataUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrUndefinedResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// ============================================================
// Basic handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, map[string]interface{}{
		"status":     "ok",
		"version":    s.version,
		"provider":   s.provider.Name(),
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"ws_clients": s.wsHub.ClientCount(),
	})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, backtest.BuiltinStrategies())
}

func (s *Server) defaultStrategy() config.StrategyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.strategy
}
