package orchestrator

import (
	"context"
	"time"

	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/envelope"
	"akademik-ai/internal/guard"
	"akademik-ai/internal/mention"
	"akademik-ai/internal/metrics"
	"akademik-ai/internal/router"
	"akademik-ai/internal/semantic"
	"akademik-ai/internal/structured"
)

// Modular is the staged orchestrator: each stage is a separate component
// and the first terminal stage wins.
type Modular struct {
	structured StructuredPipeline
	semantic   SemanticPipeline
	mentions   MentionResolver
	routes     RouteResolver
	sink       MetricRecorder
}

func NewModular(sp StructuredPipeline, sem SemanticPipeline, mentions MentionResolver, routes RouteResolver, sink MetricRecorder) *Modular {
	return &Modular{
		structured: sp,
		semantic:   sem,
		mentions:   mentions,
		routes:     routes,
		sink:       sink,
	}
}

// Ask runs the staged flow. A panic in any stage is recovered into the
// internal-error envelope with a 500 status; the metric row is written on
// every terminal path.
func (m *Modular) Ask(ctx context.Context, req AskRequest) (env *envelope.Envelope, status int) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()
	status = statusOK
	var stats semantic.RunStats

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "orchestrator panic recovered", "panic", r)
			env = internalErrorEnvelope()
			status = statusError
			stats = semantic.RunStats{}
		}
		addStageTimings(env, map[string]int64{"total_ms": time.Since(start).Milliseconds()})
		m.sink.Record(ctx, metrics.Sample{
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

	guardStart := time.Now()
	cls := guard.Classify(req.Query)
	guardMs := time.Since(guardStart).Milliseconds()
	if cls.Decision != guard.DecisionAllow {
		logger.InfoContext(ctx, "query blocked by guard", "decision", cls.Decision, "reason", cls.Reason)
		env = guardEnvelope(cls)
		addStageTimings(env, map[string]int64{"guard_ms": guardMs})
		return env, statusOK
	}

	mentionStart := time.Now()
	cleanQuery, mentions := mention.Extract(req.Query)
	if cleanQuery == "" {
		cleanQuery = req.Query
	}
	res, err := m.mentions.Resolve(ctx, req.UserID, mentions)
	if err != nil {
		logger.WarnContext(ctx, "mention resolution failed, treating mentions as unresolved", "error", err)
		res = mention.Resolution{Unresolved: mentions}
	}
	hasDocs := m.mentions.HasDocuments(ctx, req.UserID)
	mentionMs := time.Since(mentionStart).Milliseconds()

	if len(res.Ambiguous) > 0 {
		logger.InfoContext(ctx, "ambiguous document mention, asking for clarification", "mentions", res.Ambiguous)
		env = ambiguousMentionEnvelope(res)
		addStageTimings(env, map[string]int64{"guard_ms": guardMs, "mention_ms": mentionMs})
		return env, statusOK
	}

	routeStart := time.Now()
	route := m.routes.Resolve(req.UserID, cleanQuery)
	routeMs := time.Since(routeStart).Milliseconds()
	logger.InfoContext(ctx, "query routed",
		"route", route.Route,
		"reason", route.Reason,
		"has_documents", hasDocs,
		"mentions", len(mentions),
	)

	stageTimings := map[string]int64{
		"guard_ms":   guardMs,
		"mention_ms": mentionMs,
		"route_ms":   routeMs,
	}

	if route.Route == router.RouteOutOfDomain {
		env = outOfDomainEnvelope(route)
		addStageTimings(env, stageTimings)
		return env, statusOK
	}

	if route.Route == router.RouteAnalyticalTabular {
		structuredStart := time.Now()
		structEnv, err := m.structured.Run(ctx, structured.Request{
			UserID:             req.UserID,
			Query:              cleanQuery,
			IntentRoute:        route.Route,
			HasDocuments:       hasDocs,
			ResolvedDocIDs:     res.ResolvedDocIDs,
			ResolvedTitles:     res.ResolvedTitles,
			UnresolvedMentions: res.Unresolved,
		})
		stageTimings["structured_ms"] = time.Since(structuredStart).Milliseconds()
		switch {
		case err != nil:
			logger.WarnContext(ctx, "structured pipeline failed, falling back to semantic", "error", err)
		case structEnv != nil:
			env = structEnv
			addStageTimings(env, stageTimings)
			return env, statusOK
		}
	}

	semEnv, semStats, err := m.semantic.Run(ctx, semantic.Request{
		UserID:             req.UserID,
		Query:              cleanQuery,
		IntentRoute:        route.Route,
		HasDocuments:       hasDocs,
		ResolvedDocIDs:     res.ResolvedDocIDs,
		ResolvedTitles:     res.ResolvedTitles,
		UnresolvedMentions: res.Unresolved,
		AmbiguousMentions:  res.Ambiguous,
	})
	stats = semStats
	env = semEnv
	addStageTimings(env, stageTimings)
	if err != nil {
		logger.ErrorContext(ctx, "semantic pipeline failed", "error", err)
		return env, statusError
	}
	return env, statusOK
}
