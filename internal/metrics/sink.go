package metrics

import (
	"context"
	"strconv"

	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/envelope"
	"akademik-ai/internal/storage"
)

// Sample is everything known about one finished request.
type Sample struct {
	RequestID       string
	UserID          int64
	Query           string
	StatusCode      int
	DenseHits       int
	BM25Hits        int
	LLMModel        string
	LLMFallbackUsed bool
	Envelope        *envelope.Envelope
}

// Sink persists request samples. A failed write is logged and dropped;
// metrics must never fail the request they describe.
type Sink struct {
	store storage.MetricStore
}

func NewSink(store storage.MetricStore) *Sink {
	return &Sink{store: store}
}

// Record stores the sample in SQLite and updates the Prometheus series.
func (s *Sink) Record(ctx context.Context, sample Sample) {
	env := sample.Envelope
	if env == nil {
		return
	}
	timings := env.Meta.StageTimingsMs

	requestsTotal.WithLabelValues(
		env.Meta.Pipeline,
		env.Meta.Validation,
		strconv.Itoa(sample.StatusCode),
	).Inc()
	for stage, ms := range timings {
		stageDuration.WithLabelValues(stage).Observe(float64(ms) / 1000)
	}
	if sample.LLMFallbackUsed {
		llmFallbacksTotal.Inc()
	}

	rec := &storage.MetricRecord{
		RequestID:    sample.RequestID,
		UserID:       sample.UserID,
		Mode:         env.Meta.Mode,
		Pipeline:     env.Meta.Pipeline,
		IntentRoute:  env.Meta.IntentRoute,
		Validation:   env.Meta.Validation,
		AnswerMode:   env.Meta.AnswerMode,
		QueryLen:     len(sample.Query),
		DenseHits:    sample.DenseHits,
		BM25Hits:     sample.BM25Hits,
		FinalDocs:    env.Meta.RetrievalDocsCount,
		RetrievalMs:  timings["retrieval_ms"],
		RerankMs:     timings["rerank_ms"],
		LLMModel:     sample.LLMModel,
		LLMTimeMs:    timings["llm_ms"],
		FallbackUsed: sample.LLMFallbackUsed,
		SourceCount:  len(env.Sources),
		StatusCode:   sample.StatusCode,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to record request metric",
			"request_id", sample.RequestID, "error", err)
	}
}
