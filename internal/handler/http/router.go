package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/shopcart/pkg/health"
	"github.com/utafrali/shopcart/pkg/middleware"
)

// RouterConfig holds the request policy of the public API.
type RouterConfig struct {
	// RateLimitRPS bounds requests per session. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	// AllowedOrigins enables CORS for browser storefronts when non-empty.
	AllowedOrigins []string
}

// NewRouter creates a chi router with all cart routes registered.
func NewRouter(sessions Sessions, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.AllowedOrigins}))
	}
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("cart"))
	r.Use(middleware.Tracing("cart"))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	h := NewCartHandler(sessions, logger)

	api := r.With()
	if cfg.RateLimitRPS > 0 {
		api = r.With(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
	}

	api.With(chimw.Timeout(30*time.Second)).Post("/api/v1/sessions", h.CreateSession)

	api.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(h.SessionFromHeader)

		// Streams stay open, so they get neither the timeout nor compression.
		r.Get("/events", h.Events)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(chimw.Timeout(30 * time.Second))
			r.Use(ContentTypeJSON)

			r.Get("/", h.GetCart)
			r.Get("/amounts", h.GetAmounts)
			r.Post("/items", h.AddProduct)
			r.Put("/items/{productId}", h.UpdateProductAmount)
			r.Delete("/items/{productId}", h.RemoveProduct)
		})
	})

	return r
}
