// Package core provides the API chassis for the climate risk service.
// It builds a chi router enforcing cross-cutting concerns (recovery, request
// correlation, logging, metrics, timeouts) before requests reach the domain
// handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"climarisk/internal/config"
	"climarisk/internal/observability"
	"climarisk/internal/types"
)

// RiskScorer computes risk for ad-hoc coordinates and named regions.
// Satisfied by *risk.Service.
type RiskScorer interface {
	ScoreCoordinate(ctx context.Context, lat, lon float64, day int, vulnerability float64, cfg types.RiskConfig) (*types.RiskResult, error)
	ScoreRegion(ctx context.Context, name string, day int, cfg types.RiskConfig) (*types.RiskResult, error)
}

// BatchRunner triggers a full evaluation run. Satisfied by *evaluator.Evaluator.
type BatchRunner interface {
	Run(ctx context.Context, day int) (*types.RunReport, error)
}

// HealthProbe checks one critical dependency for the health endpoint.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// Server encapsulates the API's dependencies, allowing injection during
// testing and distinct wiring for different environments.
type Server struct {
	Config       *config.Config
	Risk         RiskScorer
	Regions      types.RegionStore
	Evaluator    BatchRunner
	Logger       *slog.Logger
	Metrics      *observability.Metrics
	HealthProbes []HealthProbe

	router *chi.Mux
}

// ServerConfig holds the dependencies for NewServer.
type ServerConfig struct {
	Config       *config.Config
	Risk         RiskScorer
	Regions      types.RegionStore
	Evaluator    BatchRunner
	Logger       *slog.Logger
	Metrics      *observability.Metrics
	HealthProbes []HealthProbe
}

// NewServer validates critical dependencies and prepares the router. The
// caller mounts routes via MountRoutes after construction; the separation
// lets tests customize registration.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if cfg.Risk == nil {
		return nil, fmt.Errorf("risk scorer must not be nil")
	}
	if cfg.Regions == nil {
		return nil, fmt.Errorf("region store must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Server{
		Config:       cfg.Config,
		Risk:         cfg.Risk,
		Regions:      cfg.Regions,
		Evaluator:    cfg.Evaluator,
		Logger:       cfg.Logger,
		Metrics:      cfg.Metrics,
		HealthProbes: cfg.HealthProbes,
		router:       chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
