package semantic

import (
	"context"
	"fmt"

	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/envelope"
	"akademik-ai/internal/router"
	"akademik-ai/internal/textutil"
)

const snippetMaxRunes = 160

// Request carries everything the semantic pipeline needs for one query.
type Request struct {
	UserID             int64
	Query              string
	IntentRoute        router.Route
	HasDocuments       bool
	ResolvedDocIDs     []string
	ResolvedTitles     []string
	UnresolvedMentions []string
	AmbiguousMentions  []string
}

// Pipeline is the retrieval-augmented answer path: dense or hybrid
// retrieval, grounding policy, then LLM synthesis.
type Pipeline struct {
	retriever *Retriever
	answerer  *Answerer
}

func NewPipeline(retriever *Retriever, answerer *Answerer) *Pipeline {
	return &Pipeline{retriever: retriever, answerer: answerer}
}

// RunStats carries retrieval and synthesis counters that belong in the
// metric record but not in the client-facing envelope.
type RunStats struct {
	DenseHits       int
	BM25Hits        int
	LLMModel        string
	LLMFallbackUsed bool
}

// Run executes retrieval and answer synthesis and always returns a complete
// envelope; semantic is the terminal pipeline with nothing to fall back to.
func (p *Pipeline) Run(ctx context.Context, req Request) (*envelope.Envelope, RunStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	retrieval, err := p.retriever.Retrieve(ctx, RetrievalInput{
		UserID:         req.UserID,
		Query:          req.Query,
		HasDocuments:   req.HasDocuments,
		ResolvedDocIDs: req.ResolvedDocIDs,
		DocTypeHint:    InferDocType(req.Query),
	})
	if err != nil {
		logger.ErrorContext(ctx, "retrieval failed", "error", err)
		return p.busyEnvelope(req, nil), RunStats{}, fmt.Errorf("retrieval failed: %w", err)
	}
	stats := RunStats{DenseHits: retrieval.DenseHits, BM25Hits: retrieval.BM25Hits}

	docType := InferDocType(req.Query)
	if ShouldAbstainNoGrounding(len(retrieval.Docs), docType, IsPersonalDocumentQuery(req.Query)) {
		logger.InfoContext(ctx, "abstaining, personal query without grounding evidence", "doc_type", docType)
		env := &envelope.Envelope{
			Answer: NoGroundingAnswer(),
			Meta: envelope.Meta{
				Mode:                ModeDocBackground,
				Pipeline:            envelope.PipelineRAGSemantic,
				IntentRoute:         string(req.IntentRoute),
				Validation:          envelope.ValidationNoGroundingEvidence,
				AnswerMode:          "factual",
				ReferencedDocuments: req.ResolvedTitles,
				UnresolvedMentions:  req.UnresolvedMentions,
				AmbiguousMentions:   req.AmbiguousMentions,
				StageTimingsMs:      map[string]int64{"retrieval_ms": retrieval.RetrievalMs, "llm_ms": 0},
			},
		}
		env.Normalize()
		return env, stats, nil
	}

	answer, err := p.answerer.Answer(ctx, req.Query, retrieval.Docs, retrieval.Mode, req.ResolvedTitles, req.UnresolvedMentions)
	if err != nil {
		logger.ErrorContext(ctx, "answer synthesis failed", "error", err)
		return p.busyEnvelope(req, retrieval), stats, fmt.Errorf("answer synthesis failed: %w", err)
	}
	stats.LLMModel = answer.Model
	stats.LLMFallbackUsed = answer.FallbackUsed

	env := &envelope.Envelope{
		Answer:  answer.Text,
		Sources: buildSources(retrieval.Docs),
		Meta: envelope.Meta{
			Mode:                retrieval.Mode,
			Pipeline:            envelope.PipelineRAGSemantic,
			IntentRoute:         string(req.IntentRoute),
			Validation:          envelope.ValidationNotApplicable,
			AnswerMode:          "factual",
			ReferencedDocuments: req.ResolvedTitles,
			UnresolvedMentions:  req.UnresolvedMentions,
			AmbiguousMentions:   req.AmbiguousMentions,
			RetrievalDocsCount:  len(retrieval.Docs),
			TopScore:            retrieval.TopScore,
			StageTimingsMs: map[string]int64{
				"retrieval_ms": retrieval.RetrievalMs,
				"rerank_ms":    retrieval.RerankMs,
				"llm_ms":       answer.LLMMs,
			},
		},
	}
	env.Normalize()
	return env, stats, nil
}

// busyEnvelope is the degraded answer when a stage failed outright. The
// error travels alongside so the caller can record a 5xx metric.
func (p *Pipeline) busyEnvelope(req Request, retrieval *Retrieval) *envelope.Envelope {
	mode := ModeDocBackground
	var retrievalMs int64
	var docsCount int
	if retrieval != nil {
		mode = retrieval.Mode
		retrievalMs = retrieval.RetrievalMs
		docsCount = len(retrieval.Docs)
	}
	if req.IntentRoute == router.RouteSemanticPolicy {
		mode = string(router.RouteSemanticPolicy)
	}
	env := &envelope.Envelope{
		Answer: "Maaf, sistem sedang sibuk memproses jawaban. Silakan coba lagi sebentar.",
		Meta: envelope.Meta{
			Mode:                mode,
			Pipeline:            envelope.PipelineRAGSemantic,
			IntentRoute:         string(req.IntentRoute),
			Validation:          envelope.ValidationFailedFallback,
			AnswerMode:          "factual",
			ReferencedDocuments: req.ResolvedTitles,
			UnresolvedMentions:  req.UnresolvedMentions,
			AmbiguousMentions:   req.AmbiguousMentions,
			RetrievalDocsCount:  docsCount,
			StageTimingsMs:      map[string]int64{"retrieval_ms": retrievalMs, "llm_ms": 0},
		},
	}
	env.Normalize()
	return env
}

// buildSources lists one source entry per retrieved chunk, deduplicated by
// document location.
func buildSources(docs []Doc) []envelope.Source {
	var out []envelope.Source
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		label := d.Source
		if label == "" {
			label = "document"
		}
		if d.Page > 0 {
			label = fmt.Sprintf("%s (p.%d)", label, d.Page)
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, envelope.Source{
			Source:  label,
			Snippet: textutil.Snippet(d.Text, snippetMaxRunes),
		})
	}
	return out
}
