package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/storage"
)

const defaultSummaryWindow = 24 * time.Hour

// MetricSummaryHandler serves aggregate request metrics over a recent window.
type MetricSummaryHandler struct {
	metrics storage.MetricStore
}

// NewMetricSummaryHandler creates a new MetricSummaryHandler.
func NewMetricSummaryHandler(metrics storage.MetricStore) *MetricSummaryHandler {
	return &MetricSummaryHandler{metrics: metrics}
}

// ServeHTTP aggregates metrics recorded within the window given by the
// `window` query parameter (Go duration syntax, default 24h).
func (h *MetricSummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	window := defaultSummaryWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			logger.WarnContext(ctx, "invalid window parameter", "window", raw)
			writeError(w, http.StatusBadRequest, "Invalid window duration")
			return
		}
		window = parsed
	}

	summary, err := h.metrics.Summary(ctx, time.Now().Add(-window))
	if err != nil {
		logger.ErrorContext(ctx, "failed to aggregate metrics", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to aggregate metrics")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.ErrorContext(ctx, "failed to encode summary", "error", err)
	}
}
