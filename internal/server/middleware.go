package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/leslieo2/go-healthchecks/internal/server/middleware"
)

// applyMiddleware installs the request chain. Order matters: metrics and
// logging wrap everything so rejected requests are observed too.
func (s *Server) applyMiddleware(r chi.Router) {
	r.Use(middleware.LoggingMiddleware(s.logger.Logger))
	if s.metrics != nil {
		r.Use(middleware.MetricsMiddleware(s.metrics))
	}
	r.Use(middleware.NoCacheMiddleware)
	r.Use(middleware.RequestSizeLimitMiddleware(s.config.Server.MaxRequestSize))
	r.Use(s.rateLimiter.Middleware)
	r.Use(middleware.ErrorCodeMiddleware(func() string {
		return s.state.Load().checks.ErrorCodeHeader
	}, s.logger.Logger))
}
