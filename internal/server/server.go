// Package server exposes the sentiment engine over a small JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"restaurant-sentiment/internal/review"
	"restaurant-sentiment/internal/sentiment"
	"restaurant-sentiment/internal/storage"

	"github.com/rs/zerolog/log"
)

// Engine is the part of *sentiment.Engine the server calls.
type Engine interface {
	Predict(ctx context.Context, texts []string) ([]review.Label, error)
	Acceptance(labels []review.Label) (float64, error)
	Info() (sentiment.Info, error)
	State() sentiment.State
}

// ReviewStore is the part of *storage.Store the business endpoint reads and writes.
type ReviewStore interface {
	GetReviews(businessID string, limit int) ([]review.Review, error)
	StorePrediction(rec storage.PredictionRecord) (storage.PredictionRecord, error)
}

// RequestObserver records served requests.
type RequestObserver interface {
	ObserveRequest(method, route string, code int, elapsed time.Duration)
	FailureRate() float64
}

// Config holds listener and request settings.
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PredictTimeout time.Duration
	ReviewLimit    int
}

// Server provides the HTTP API for predictions and per-business sentiment.
type Server struct {
	engine   Engine
	store    ReviewStore
	observer RequestObserver
	metrics  http.Handler
	cfg      Config
	handler  http.Handler
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables GET /businesses/{id}/sentiment.
func WithStore(store ReviewStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithObserver records per-route request counts and latency.
func WithObserver(o RequestObserver) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// New creates a server for engine. It does not listen until Start.
func New(engine Engine, cfg Config, opts ...Option) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.PredictTimeout == 0 {
		cfg.PredictTimeout = 10 * time.Second
	}
	if cfg.ReviewLimit <= 0 {
		cfg.ReviewLimit = 10
	}

	s := &Server{
		engine: engine,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("POST /acceptance", s.handleAcceptance)
	mux.HandleFunc("GET /businesses/{id}/sentiment", s.handleBusinessSentiment)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /model/info", s.handleModelInfo)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	s.handler = s.instrument(mux)
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting sentiment server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
