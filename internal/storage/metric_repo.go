package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_metric_store.go -package=mocks akademik-ai/internal/storage MetricStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MetricStore defines the interface for request metric persistence.
type MetricStore interface {
	// Insert appends one metric row. Records are never updated or deleted
	// by the application.
	Insert(ctx context.Context, rec *MetricRecord) error
	// Summary aggregates metrics recorded at or after since.
	Summary(ctx context.Context, since time.Time) (*MetricSummary, error)
}

// MetricSummary is an aggregate view over the metric table.
type MetricSummary struct {
	TotalRequests  int            `json:"total_requests"`
	FallbackRate   float64        `json:"fallback_rate"`
	ErrorRate      float64        `json:"error_rate"`
	P95RetrievalMs int64          `json:"p95_retrieval_ms"`
	AvgLLMTimeMs   float64        `json:"avg_llm_time_ms"`
	ByMode         map[string]int `json:"by_mode"`
}

// MetricRepo provides methods for metric operations.
// It implements the MetricStore interface.
type MetricRepo struct {
	db *sql.DB
}

// NewMetricRepo creates a new MetricRepo.
func NewMetricRepo(db *sql.DB) *MetricRepo {
	return &MetricRepo{db: db}
}

// Insert appends one metric row.
func (r *MetricRepo) Insert(ctx context.Context, rec *MetricRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rag_metrics
			(request_id, user_id, mode, pipeline, intent_route, validation, answer_mode,
			 query_len, dense_hits, bm25_hits, final_docs,
			 retrieval_ms, rerank_ms, llm_model, llm_time_ms, fallback_used, source_count, status_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.UserID, rec.Mode, rec.Pipeline, rec.IntentRoute, rec.Validation, rec.AnswerMode,
		rec.QueryLen, rec.DenseHits, rec.BM25Hits, rec.FinalDocs,
		rec.RetrievalMs, rec.RerankMs, rec.LLMModel, rec.LLMTimeMs, rec.FallbackUsed, rec.SourceCount, rec.StatusCode,
	)
	if err != nil {
		return fmt.Errorf("failed to insert metric: %w", err)
	}
	return nil
}

// Summary aggregates metrics recorded at or after since. An empty window
// returns a zero summary, not an error.
func (r *MetricRepo) Summary(ctx context.Context, since time.Time) (*MetricSummary, error) {
	summary := &MetricSummary{ByMode: make(map[string]int)}

	var fallbacks, errors int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(fallback_used), 0),
			COALESCE(SUM(CASE WHEN status_code >= 500 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN llm_time_ms > 0 THEN llm_time_ms END), 0)
		 FROM rag_metrics WHERE created_at >= ?`,
		since,
	).Scan(&summary.TotalRequests, &fallbacks, &errors, &summary.AvgLLMTimeMs)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics: %w", err)
	}

	if summary.TotalRequests > 0 {
		summary.FallbackRate = float64(fallbacks) / float64(summary.TotalRequests)
		summary.ErrorRate = float64(errors) / float64(summary.TotalRequests)

		// Nearest-rank p95 over retrieval latency.
		offset := (summary.TotalRequests*95+99)/100 - 1
		if offset < 0 {
			offset = 0
		}
		err = r.db.QueryRowContext(ctx,
			`SELECT retrieval_ms FROM rag_metrics WHERE created_at >= ?
			 ORDER BY retrieval_ms LIMIT 1 OFFSET ?`,
			since, offset,
		).Scan(&summary.P95RetrievalMs)
		if err != nil {
			return nil, fmt.Errorf("failed to compute p95: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT mode, COUNT(*) FROM rag_metrics WHERE created_at >= ? GROUP BY mode",
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to group metrics by mode: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, fmt.Errorf("failed to scan mode count: %w", err)
		}
		summary.ByMode[mode] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return summary, nil
}
