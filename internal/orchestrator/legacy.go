package orchestrator

import (
	"context"
	"time"

	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/envelope"
	"akademik-ai/internal/guard"
	"akademik-ai/internal/metrics"
	"akademik-ai/internal/router"
	"akademik-ai/internal/semantic"
	"akademik-ai/internal/structured"
)

// Legacy is the single-pass path kept as a rollback target while the staged
// orchestrator rolls out. It classifies inline, skips @mention resolution,
// and jumps straight into the structured shortcut or semantic retrieval.
type Legacy struct {
	structured StructuredPipeline
	semantic   SemanticPipeline
	mentions   MentionResolver
	sink       MetricRecorder
}

func NewLegacy(sp StructuredPipeline, sem SemanticPipeline, mentions MentionResolver, sink MetricRecorder) *Legacy {
	return &Legacy{
		structured: sp,
		semantic:   sem,
		mentions:   mentions,
		sink:       sink,
	}
}

func (l *Legacy) Ask(ctx context.Context, req AskRequest) (env *envelope.Envelope, status int) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()
	status = statusOK
	var stats semantic.RunStats

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "legacy orchestrator panic recovered", "panic", r)
			env = internalErrorEnvelope()
			status = statusError
			stats = semantic.RunStats{}
		}
		addStageTimings(env, map[string]int64{"total_ms": time.Since(start).Milliseconds()})
		l.sink.Record(ctx, metrics.Sample{
			RequestID:       req.RequestID,
			UserID:          req.UserID,
			Query:           req.Query,
			StatusCode:      status,
			DenseHits:       stats.DenseHits,
			BM25Hits:        stats.BM25Hits,
			LLMModel:        stats.LLMModel,
			LLMFallbackUsed: stats.LLMFallbackUsed,
			Envelope:        env,
		})
	}()

	if isBlank(req.Query) {
		return malformedQueryEnvelope(), statusOK
	}

	cls := guard.Classify(req.Query)
	if cls.Decision != guard.DecisionAllow {
		return guardEnvelope(cls), statusOK
	}

	route := router.Classify(req.Query)
	if route.Route == router.RouteOutOfDomain {
		return outOfDomainEnvelope(route), statusOK
	}

	hasDocs := l.mentions.HasDocuments(ctx, req.UserID)
	if route.Route == router.RouteAnalyticalTabular {
		structEnv, err := l.structured.Run(ctx, structured.Request{
			UserID:       req.UserID,
			Query:        req.Query,
			IntentRoute:  route.Route,
			HasDocuments: hasDocs,
		})
		if err != nil {
			logger.WarnContext(ctx, "structured shortcut failed, falling back to semantic", "error", err)
		} else if structEnv != nil {
			return structEnv, statusOK
		}
	}

	semEnv, semStats, err := l.semantic.Run(ctx, semantic.Request{
		UserID:       req.UserID,
		Query:        req.Query,
		IntentRoute:  route.Route,
		HasDocuments: hasDocs,
	})
	stats = semStats
	if err != nil {
		logger.ErrorContext(ctx, "semantic pipeline failed", "error", err)
		return semEnv, statusError
	}
	return semEnv, statusOK
}
