package core

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultRequestTimeout is the soft deadline applied to request contexts
// when the configuration does not specify one.
const defaultRequestTimeout = 29 * time.Second

// MountRoutes registers the global middleware chain, the v1 API group, and
// the operational endpoints.
//
// Middleware ordering:
//  1. Recoverer catches panics from everything below it.
//  2. ContextTimeout bounds request handling.
//  3. RequestID establishes the correlation ID used by logging and errors.
//  4. RequestLogger logs each request with its status and duration.
//  5. Metrics records request count and latency.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(s.MetricsMiddleware)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/risk", s.HandleRisk)
		r.Get("/regions", s.HandleListRegions)
		r.Post("/evaluate", s.HandleEvaluate)
	})

	s.router.Get("/health", s.HandleHealth)
	if s.Config.Observability.EnableMetrics {
		s.router.Method("GET", "/metrics", promhttp.Handler())
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}
