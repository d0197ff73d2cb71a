// Package envelope defines the answer contract every pipeline returns.
// The field set is identical across routes so clients can rely on one shape.
package envelope

// Pipeline names reported in meta.pipeline.
const (
	PipelineRouteGuard          = "route_guard"
	PipelineStructuredAnalytics = "structured_analytics"
	PipelineRAGSemantic         = "rag_semantic"
)

// Validation states reported in meta.validation.
const (
	ValidationNotApplicable       = "not_applicable"
	ValidationPassed              = "passed"
	ValidationSkipped             = "skipped"
	ValidationSkippedStrict       = "skipped_strict"
	ValidationFailedFallback      = "failed_fallback"
	ValidationStrictNoFallback    = "strict_no_fallback"
	ValidationNoGroundingEvidence = "no_grounding_evidence"
	ValidationMalformedQuery      = "malformed_query"
)

// Source points an answer statement back at a document location.
type Source struct {
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

// AnalyticsStats counts rows through the structured pipeline stages.
type AnalyticsStats struct {
	Raw      int `json:"raw"`
	Deduped  int `json:"deduped"`
	Returned int `json:"returned"`
}

// Meta describes how an answer was produced.
type Meta struct {
	Mode                string           `json:"mode"`
	Pipeline            string           `json:"pipeline"`
	IntentRoute         string           `json:"intent_route"`
	Validation          string           `json:"validation"`
	AnswerMode          string           `json:"answer_mode"`
	AnalyticsStats      AnalyticsStats   `json:"analytics_stats"`
	ReferencedDocuments []string         `json:"referenced_documents"`
	UnresolvedMentions  []string         `json:"unresolved_mentions"`
	AmbiguousMentions   []string         `json:"ambiguous_mentions"`
	RetrievalDocsCount  int              `json:"retrieval_docs_count"`
	TopScore            float64          `json:"top_score"`
	StructuredReturned  int              `json:"structured_returned"`
	StageTimingsMs      map[string]int64 `json:"stage_timings_ms,omitempty"`
}

// Envelope is the uniform answer shape returned by every route.
type Envelope struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Meta    Meta     `json:"meta"`
}

// Normalize replaces nil slices so the JSON encoding always carries arrays,
// never null, and fills the default answer mode so meta keeps one shape on
// every route.
func (e *Envelope) Normalize() {
	if e.Sources == nil {
		e.Sources = []Source{}
	}
	if e.Meta.AnswerMode == "" {
		e.Meta.AnswerMode = "factual"
	}
	if e.Meta.ReferencedDocuments == nil {
		e.Meta.ReferencedDocuments = []string{}
	}
	if e.Meta.UnresolvedMentions == nil {
		e.Meta.UnresolvedMentions = []string{}
	}
	if e.Meta.AmbiguousMentions == nil {
		e.Meta.AmbiguousMentions = []string{}
	}
}
