// Package semantic implements vector retrieval over indexed document chunks
// plus LLM answer synthesis, for the queries the tabular pipeline cannot
// serve.
package semantic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"akademik-ai/internal/config"
	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/llm"
	"akademik-ai/internal/storage"
	"akademik-ai/internal/vectorstore"
)

// Doc is one retrieved chunk with its provenance and current ranking score.
// The score's scale depends on the stage that produced it (cosine, BM25,
// RRF), so scores are only comparable within one list.
type Doc struct {
	ChunkID string
	DocID   string
	Source  string
	Page    int
	Text    string
	Score   float64
}

// Query modes. The mode decides the retrieval plan and how hard the answer
// leans on retrieved context.
const (
	ModeLLMOnly       = "llm_only"
	ModeDocBackground = "doc_background"
	ModeDocReferenced = "doc_referenced"
)

// Query intents within doc_background mode.
const (
	IntentGeneralAcademic = "general_academic"
	IntentDocTargeted     = "doc_targeted"
)

var docTargetedMarkers = []string{
	"rekap nilai",
	"nilai saya",
	"ipk saya",
	"ips saya",
	"transkrip",
	"jadwal saya",
	"jadwal kelas",
	"mata kuliah",
	"khs",
	"krs",
	"sks",
	"ruang",
	"jam",
	"semester",
}

// ClassifyQueryIntent reports whether the query targets the user's own
// documents or is a general academic question.
func ClassifyQueryIntent(query string) string {
	ql := strings.ToLower(query)
	for _, m := range docTargetedMarkers {
		if strings.Contains(ql, m) {
			return IntentDocTargeted
		}
	}
	return IntentGeneralAcademic
}

// Embedder is the embedding surface retrieval needs.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string, mode llm.EncodeMode) ([][]float32, error)
}

// Retriever runs the dense / hybrid / rerank retrieval stages.
type Retriever struct {
	vectors    vectorstore.VectorStore
	collection string
	embedder   Embedder
	chunks     storage.ChunkStore
	docs       storage.DocumentStore

	planGeneral     config.RetrievalPlan
	planDocTargeted config.RetrievalPlan
	planReferenced  config.RetrievalPlan

	relevanceThreshold    float64
	filterFallbackEnabled bool
}

func NewRetriever(
	vectors vectorstore.VectorStore,
	collection string,
	embedder Embedder,
	chunks storage.ChunkStore,
	docs storage.DocumentStore,
	cfg *config.Config,
) *Retriever {
	return &Retriever{
		vectors:               vectors,
		collection:            collection,
		embedder:              embedder,
		chunks:                chunks,
		docs:                  docs,
		planGeneral:           cfg.PlanGeneral,
		planDocTargeted:       cfg.PlanDocTargeted,
		planReferenced:        cfg.PlanDocReferenced,
		relevanceThreshold:    cfg.RelevanceThreshold,
		filterFallbackEnabled: cfg.FilterFallbackEnabled,
	}
}

// RetrievalInput describes one retrieval request.
type RetrievalInput struct {
	UserID         int64
	Query          string
	HasDocuments   bool
	ResolvedDocIDs []string
	// DocTypeHint narrows the search to "transcript" or "schedule" chunks
	// when the query implies one; empty means no narrowing.
	DocTypeHint string
}

// Retrieval is the outcome of the retrieval stages.
type Retrieval struct {
	Mode        string
	QueryIntent string
	Docs        []Doc
	DenseHits   int
	BM25Hits    int
	TopScore    float64
	RetrievalMs int64
	RerankMs    int64
}

func (r *Retriever) plan(mode, intent string) config.RetrievalPlan {
	if mode == ModeDocReferenced {
		return r.planReferenced
	}
	if intent == IntentDocTargeted {
		return r.planDocTargeted
	}
	return r.planGeneral
}

// Retrieve runs dense search, optional hybrid fusion and optional rerank
// according to the plan for the query's mode.
func (r *Retriever) Retrieve(ctx context.Context, in RetrievalInput) (*Retrieval, error) {
	logger := contextutil.LoggerFromContext(ctx)

	mode := ModeLLMOnly
	if in.HasDocuments && len(in.ResolvedDocIDs) > 0 {
		mode = ModeDocReferenced
	} else if in.HasDocuments {
		mode = ModeDocBackground
	}
	intent := ClassifyQueryIntent(in.Query)

	if mode == ModeLLMOnly {
		return &Retrieval{Mode: mode, QueryIntent: intent}, nil
	}

	plan := r.plan(mode, intent)
	started := time.Now()

	vecs, err := r.embedder.EmbedTexts(ctx, []string{in.Query}, llm.EncodeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	filters := vectorstore.Filters{UserID: in.UserID}
	narrowed := false
	if len(in.ResolvedDocIDs) > 0 {
		filters.DocIDs = in.ResolvedDocIDs
		narrowed = true
	} else if in.DocTypeHint != "" {
		filters.DocType = in.DocTypeHint
		narrowed = true
	}

	dense, topScore, err := r.denseSearch(ctx, vecs[0], plan.DenseK, filters)
	if err != nil {
		return nil, err
	}

	// A narrowed filter that finds nothing retries across the whole user
	// corpus; an over-eager doc-type guess must not blank out the answer.
	if len(dense) == 0 && narrowed && r.filterFallbackEnabled {
		logger.InfoContext(ctx, "narrowed search empty, retrying user-wide")
		dense, topScore, err = r.denseSearch(ctx, vecs[0], plan.DenseK, vectorstore.Filters{UserID: in.UserID})
		if err != nil {
			return nil, err
		}
	}

	final := dense
	bm25Hits := 0
	if plan.UseHybrid && len(dense) > 0 {
		sparse := sparseSearch(in.Query, dense, plan.BM25K)
		bm25Hits = len(sparse)
		final = fuseRRF(dense, sparse, plan.BM25K)
	}

	var rerankMs int64
	if plan.UseRerank && len(final) > 0 {
		rerankStart := time.Now()
		pool := plan.DenseK
		if plan.BM25K > pool {
			pool = plan.BM25K
		}
		if len(final) > pool {
			final = final[:pool]
		}
		final = rerankDocs(in.Query, final, plan.RerankTopN)
		rerankMs = time.Since(rerankStart).Milliseconds()
	}

	limit := plan.DenseK
	if plan.UseRerank {
		limit = plan.RerankTopN
	}
	if limit < 1 {
		limit = 1
	}
	if len(final) > limit {
		final = final[:limit]
	}

	// General questions with only weakly related context answer better from
	// the model alone than from misleading snippets.
	if mode == ModeDocBackground && intent == IntentGeneralAcademic && topScore < r.relevanceThreshold {
		logger.InfoContext(ctx, "top score below relevance threshold, dropping context",
			"top_score", topScore,
			"threshold", r.relevanceThreshold,
		)
		final = nil
	}

	logger.InfoContext(ctx, "retrieval finished",
		"mode", mode,
		"query_intent", intent,
		"dense_hits", len(dense),
		"bm25_hits", bm25Hits,
		"final_docs", len(final),
		"top_score", topScore,
	)

	return &Retrieval{
		Mode:        mode,
		QueryIntent: intent,
		Docs:        final,
		DenseHits:   len(dense),
		BM25Hits:    bm25Hits,
		TopScore:    topScore,
		RetrievalMs: time.Since(started).Milliseconds(),
		RerankMs:    rerankMs,
	}, nil
}

// denseSearch queries the vector index and resolves hits to chunk texts and
// source labels. Stale points whose chunks were deleted are dropped.
func (r *Retriever) denseSearch(ctx context.Context, vec []float32, k int, filters vectorstore.Filters) ([]Doc, float64, error) {
	if k < 1 {
		k = 1
	}
	hits, err := r.vectors.Search(ctx, r.collection, vec, k, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("vector search failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, 0, nil
	}

	ids := make([]string, len(hits))
	scoreByID := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.PointID
		scoreByID[h.PointID] = float64(h.Score)
	}

	chunks, err := r.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve chunk texts: %w", err)
	}

	sourceByDoc, err := r.sourceLabels(ctx, filters.UserID)
	if err != nil {
		return nil, 0, err
	}

	seen := make(map[string]struct{}, len(chunks))
	docs := make([]Doc, 0, len(chunks))
	topScore := 0.0
	for _, c := range chunks {
		key := c.DocID + "|" + c.ID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		score := scoreByID[c.ID]
		if score > topScore {
			topScore = score
		}
		docs = append(docs, Doc{
			ChunkID: c.ID,
			DocID:   c.DocID,
			Source:  sourceByDoc[c.DocID],
			Page:    c.Page,
			Text:    c.Text,
			Score:   score,
		})
	}
	return docs, topScore, nil
}

func (r *Retriever) sourceLabels(ctx context.Context, userID int64) (map[string]string, error) {
	records, err := r.docs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents for source labels: %w", err)
	}
	out := make(map[string]string, len(records))
	for _, d := range records {
		label := d.Source
		if label == "" {
			label = d.Title
		}
		out[d.ID] = label
	}
	return out, nil
}
