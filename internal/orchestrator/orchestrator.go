// Package orchestrator ties the stages together: safety guard, mention
// resolution, intent routing, then the structured or semantic pipeline.
// Every path ends in a complete envelope; callers never see a nil answer.
package orchestrator

import (
	"context"
	"net/http"
	"strings"

	"akademik-ai/internal/envelope"
	"akademik-ai/internal/guard"
	"akademik-ai/internal/mention"
	"akademik-ai/internal/metrics"
	"akademik-ai/internal/router"
	"akademik-ai/internal/semantic"
	"akademik-ai/internal/structured"
)

// AskRequest is one incoming question.
type AskRequest struct {
	RequestID string
	UserID    int64
	Query     string
}

// AskBot answers a question and reports the HTTP status the answer should
// travel with. 200 covers every handled outcome including refusals; 5xx
// means a stage failed and the envelope is a degraded fallback.
type AskBot interface {
	Ask(ctx context.Context, req AskRequest) (*envelope.Envelope, int)
}

// StructuredPipeline is the analytics path. A nil envelope with nil error
// means the query was not claimed and should continue to semantic retrieval.
type StructuredPipeline interface {
	Run(ctx context.Context, req structured.Request) (*envelope.Envelope, error)
}

// SemanticPipeline is the terminal retrieval-augmented path.
type SemanticPipeline interface {
	Run(ctx context.Context, req semantic.Request) (*envelope.Envelope, semantic.RunStats, error)
}

// MentionResolver resolves @file references and document ownership.
type MentionResolver interface {
	Resolve(ctx context.Context, userID int64, mentions []string) (mention.Resolution, error)
	HasDocuments(ctx context.Context, userID int64) bool
}

// RouteResolver classifies a user's query into a pipeline route.
type RouteResolver interface {
	Resolve(userID int64, query string) router.Result
}

// MetricRecorder persists one sample per answered request.
type MetricRecorder interface {
	Record(ctx context.Context, sample metrics.Sample)
}

func malformedQueryEnvelope() *envelope.Envelope {
	env := &envelope.Envelope{
		Answer: "Pertanyaan kosong. Tulis pertanyaan akademikmu dulu, ya.",
		Meta: envelope.Meta{
			Mode:       "guard",
			Pipeline:   envelope.PipelineRouteGuard,
			Validation: envelope.ValidationMalformedQuery,
		},
	}
	env.Normalize()
	return env
}

func guardEnvelope(cls guard.Classification) *envelope.Envelope {
	env := &envelope.Envelope{
		Answer: guard.Answer(cls.Decision),
		Meta: envelope.Meta{
			Mode:        "guard",
			Pipeline:    envelope.PipelineRouteGuard,
			IntentRoute: string(cls.Decision),
			Validation:  envelope.ValidationNotApplicable,
		},
	}
	env.Normalize()
	return env
}

func outOfDomainEnvelope(route router.Result) *envelope.Envelope {
	env := &envelope.Envelope{
		Answer: guard.OutOfDomainAnswer(),
		Meta: envelope.Meta{
			Mode:        "guard",
			Pipeline:    envelope.PipelineRouteGuard,
			IntentRoute: string(route.Route),
			Validation:  envelope.ValidationNotApplicable,
		},
	}
	env.Normalize()
	return env
}

func ambiguousMentionEnvelope(res mention.Resolution) *envelope.Envelope {
	env := &envelope.Envelope{
		Answer: mention.AmbiguousAnswer(res.Ambiguous),
		Meta: envelope.Meta{
			Mode:                "mention_disambiguation",
			Pipeline:            envelope.PipelineRouteGuard,
			Validation:          envelope.ValidationNotApplicable,
			ReferencedDocuments: res.ResolvedTitles,
			UnresolvedMentions:  res.Unresolved,
			AmbiguousMentions:   res.Ambiguous,
		},
	}
	env.Normalize()
	return env
}

// internalErrorEnvelope is the last-resort answer after a panic or an
// unrecoverable stage failure.
func internalErrorEnvelope() *envelope.Envelope {
	env := &envelope.Envelope{
		Answer: "Maaf, sistem sedang sibuk memproses jawaban. Silakan coba lagi sebentar.",
		Meta: envelope.Meta{
			Mode:       "internal_error",
			Pipeline:   envelope.PipelineRAGSemantic,
			Validation: envelope.ValidationFailedFallback,
		},
	}
	env.Normalize()
	return env
}

// addStageTimings merges orchestration timings into the envelope without
// clobbering the pipeline's own entries.
func addStageTimings(env *envelope.Envelope, timings map[string]int64) {
	if env.Meta.StageTimingsMs == nil {
		env.Meta.StageTimingsMs = make(map[string]int64, len(timings))
	}
	for k, v := range timings {
		if _, exists := env.Meta.StageTimingsMs[k]; !exists {
			env.Meta.StageTimingsMs[k] = v
		}
	}
}

func isBlank(query string) bool {
	return strings.TrimSpace(query) == ""
}

const (
	statusOK    = http.StatusOK
	statusError = http.StatusInternalServerError
)
