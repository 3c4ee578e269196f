// Package http is a thin HTTP and WebSocket adapter over the engine.
package http

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/viralrisk/internal/application"
	"github.com/sawpanic/viralrisk/internal/config"
	"github.com/sawpanic/viralrisk/internal/metrics"
)

// Server serves the engine over HTTP
type Server struct {
	router  *mux.Router
	server  *http.Server
	engine  *application.Engine
	metrics *metrics.Registry
	hub     *Hub
	config  ServerConfig
	now     func() time.Time
	started time.Time
	guards  []CircuitReporter
}

// CircuitReporter exposes a provider breaker for health reporting
type CircuitReporter interface {
	Name() string
	State() string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	Version        string

	// Training defaults for POST /train
	TrainLookback      time.Duration
	TrainMinEngagement int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfigFrom(config.DefaultAppConfig())
}

// ServerConfigFrom derives server settings from application config
func ServerConfigFrom(cfg *config.AppConfig) ServerConfig {
	return ServerConfig{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		IdleTimeout:        60 * time.Second,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		TrainLookback:      time.Duration(cfg.Training.LookbackDays) * 24 * time.Hour,
		TrainMinEngagement: cfg.Training.MinEngagement,
	}
}

// NewServer creates a new HTTP server instance. reg and hub may be nil.
func NewServer(engine *application.Engine, reg *metrics.Registry, hub *Hub, cfg ServerConfig) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	s := &Server{
		router:  mux.NewRouter(),
		engine:  engine,
		metrics: reg,
		hub:     hub,
		config:  cfg,
		now:     time.Now,
		started: time.Now(),
	}
	s.setupRoutes()

	// No WriteTimeout: /train and /events are long-lived
	s.server = &http.Server{
		Addr:        s.Addr(),
		Handler:     s.router,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	if s.hub != nil {
		s.router.HandleFunc("/events", s.hub.ServeWS).Methods("GET")
	}

	// Training runs until it finishes or the client goes away
	s.router.Handle("/train", s.jsonContentTypeMiddleware(http.HandlerFunc(s.train))).Methods("POST")

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.timeoutMiddleware)
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/health", s.health).Methods("GET")

	api.HandleFunc("/predict", s.predict).Methods("POST")
	api.HandleFunc("/predict/batch", s.predictBatch).Methods("POST")
	api.HandleFunc("/analyze", s.analyze).Methods("POST")

	api.HandleFunc("/config", s.getConfig).Methods("GET")
	api.HandleFunc("/config", s.updateConfig).Methods("PATCH")
	api.HandleFunc("/config/history", s.configHistory).Methods("GET")
	api.HandleFunc("/config/versions/{id}", s.getVersion).Methods("GET")
	api.HandleFunc("/config/rollback", s.rollback).Methods("POST")

	api.HandleFunc("/abtests", s.listABTests).Methods("GET")
	api.HandleFunc("/abtests", s.startABTest).Methods("POST")
	api.HandleFunc("/abtests/{id}", s.getABTest).Methods("GET")
	api.HandleFunc("/abtests/{id}", s.stopABTest).Methods("DELETE")
	api.HandleFunc("/abtests/{id}/resolve", s.resolveABTest).Methods("GET")

	s.router.NotFoundHandler = s.jsonContentTypeMiddleware(http.HandlerFunc(s.notFound))
	s.router.MethodNotAllowedHandler = s.jsonContentTypeMiddleware(http.HandlerFunc(s.methodNotAllowed))
}

// WithCircuits adds provider breakers to the health report
func (s *Server) WithCircuits(guards ...CircuitReporter) *Server {
	s.guards = append(s.guards, guards...)
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestID returns the id assigned to the request carried by ctx
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

// requestIDMiddleware adds unique request ID to each request
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLoggingMiddleware logs all requests with structured format
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Info().
			Str("request_id", RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// timeoutMiddleware enforces request timeouts
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// jsonContentTypeMiddleware sets JSON content type for API responses
func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	log.Info().Str("addr", s.Addr()).Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server on %s: %w", s.Addr(), err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	if s.hub != nil {
		s.hub.Close()
	}
	return s.server.Shutdown(ctx)
}

// Addr returns the server address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
}

// responseWrapper captures HTTP status codes for logging
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
