package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atinyakov/ClassFeed/internal/middleware"
)

// NewRouter constructs the HTTP handler that serves the ClassFeed API.
//
// Routes:
//
//	POST /api/login        → authHandler.Login
//	GET  /api/feed/stream  → feedHandler.Stream (token required)
//	GET  /api/media/{id}   → feedHandler.Item (token required)
//	GET  /metrics          → Prometheus metrics of gatherer
func NewRouter(
	authHandler *AuthHandler,
	feedHandler *FeedHandler,
	tokens middleware.TokenParser,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Only JSON bodies are accepted on login.
		r.With(chiMiddleware.AllowContentType("application/json")).
			Post("/login", authHandler.Login)

		// Protected group: requires a valid access token
		r.Group(func(r chi.Router) {
			r.Use(middleware.TokenAuth(tokens))
			r.Get("/feed/stream", feedHandler.Stream)
			r.Get("/media/{id}", feedHandler.Item)
		})
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
