// Package api exposes the pantry use cases over HTTP.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"larder/pkg/render"
	"larder/services/pantry/app"
)

const (
	serviceName           = "larder-api"
	defaultRequestTimeout = 30 * time.Second
	defaultRateLimit      = 120
)

// Config controls runtime behaviour for the API handlers.
type Config struct {
	JWTSigningKey  []byte
	JWTIssuer      string
	AllowedOrigins []string
	RateLimit      int
	RequestTimeout time.Duration
}

// Checker reports whether a dependency is ready to serve traffic.
type Checker func(ctx context.Context) error

// API wires the pantry service, template renderer and configuration for HTTP handlers.
type API struct {
	svc      *app.Service
	renderer *render.Engine
	metrics  *Metrics
	config   Config
	log      zerolog.Logger
	checks   map[string]Checker
}

// Option customises an API.
type Option func(*API)

// WithLogger sets the logger used for request and error logs.
func WithLogger(l zerolog.Logger) Option {
	return func(a *API) { a.log = l }
}

// WithReadinessCheck adds a named dependency to /readyz.
func WithReadinessCheck(name string, c Checker) Option {
	return func(a *API) {
		if c != nil {
			a.checks[name] = c
		}
	}
}

// New initialises the API layer with defaults applied to the provided configuration.
func New(svc *app.Service, renderer *render.Engine, metrics *Metrics, cfg Config, opts ...Option) (*API, error) {
	if svc == nil {
		return nil, errors.New("pantry service is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if metrics == nil {
		return nil, errors.New("metrics are required")
	}
	if len(cfg.JWTSigningKey) == 0 {
		return nil, errors.New("jwt signing key is required")
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}

	a := &API{
		svc:      svc,
		renderer: renderer,
		metrics:  metrics,
		config:   cfg,
		log:      zerolog.Nop(),
		checks:   map[string]Checker{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}
