package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"akademik-ai/internal/handlers"
	"akademik-ai/internal/orchestrator"
	"akademik-ai/internal/storage"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Bot            orchestrator.AskBot
	Vectors        handlers.CollectionChecker
	CollectionName string
	Metrics        storage.MetricStore
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(LoggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(deps.Bot)
	healthHandler := handlers.NewHealthHandler(deps.Vectors, deps.CollectionName)
	summaryHandler := handlers.NewMetricSummaryHandler(deps.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodGet, "/metrics/summary", summaryHandler)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
