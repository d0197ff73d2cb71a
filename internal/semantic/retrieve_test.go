package semantic

import (
	"context"
	"testing"

	"go.uber.org/mock/gomock"

	"akademik-ai/internal/config"
	"akademik-ai/internal/llm"
	"akademik-ai/internal/storage"
	storagemocks "akademik-ai/internal/storage/mocks"
	"akademik-ai/internal/vectorstore"
	vsmocks "akademik-ai/internal/vectorstore/mocks"
)

type fakeEmbedder struct {
	gotTexts []string
	gotMode  llm.EncodeMode
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string, mode llm.EncodeMode) ([][]float32, error) {
	f.gotTexts = texts
	f.gotMode = mode
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func testConfig() *config.Config {
	return &config.Config{
		PlanGeneral:           config.RetrievalPlan{DenseK: 6, BM25K: 8, RerankTopN: 4},
		PlanDocTargeted:       config.RetrievalPlan{DenseK: 18, BM25K: 28, RerankTopN: 10, UseHybrid: true, UseRerank: true},
		PlanDocReferenced:     config.RetrievalPlan{DenseK: 12, BM25K: 20, RerankTopN: 4, UseRerank: true},
		RelevanceThreshold:    0.18,
		FilterFallbackEnabled: true,
	}
}

func TestClassifyQueryIntent(t *testing.T) {
	if got := ClassifyQueryIntent("rekap nilai semester 3"); got != IntentDocTargeted {
		t.Errorf("intent = %q, want doc_targeted", got)
	}
	if got := ClassifyQueryIntent("apa itu sistem kredit di perguruan tinggi"); got != IntentGeneralAcademic {
		t.Errorf("intent = %q, want general_academic", got)
	}
}

func TestRetriever_Retrieve_LLMOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewRetriever(vsmocks.NewMockVectorStore(ctrl), "chunks", &fakeEmbedder{},
		storagemocks.NewMockChunkStore(ctrl), storagemocks.NewMockDocumentStore(ctrl), testConfig())

	got, err := r.Retrieve(context.Background(), RetrievalInput{UserID: 1, Query: "halo"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got.Mode != ModeLLMOnly || len(got.Docs) != 0 {
		t.Errorf("Retrieve() = %+v, want llm_only with no docs", got)
	}
}

func TestRetriever_Retrieve_DocReferenced(t *testing.T) {
	ctrl := gomock.NewController(t)
	vs := vsmocks.NewMockVectorStore(ctrl)
	chunks := storagemocks.NewMockChunkStore(ctrl)
	docs := storagemocks.NewMockDocumentStore(ctrl)
	embedder := &fakeEmbedder{}

	vs.EXPECT().
		Search(gomock.Any(), "chunks", gomock.Any(), 12, vectorstore.Filters{UserID: 1, DocIDs: []string{"doc-khs"}}).
		Return([]vectorstore.SearchResult{
			{PointID: "c1", Score: 0.9},
			{PointID: "c2", Score: 0.7},
		}, nil)
	chunks.EXPECT().GetByIDs(gomock.Any(), []string{"c1", "c2"}).Return([]storage.ChunkRecord{
		{ID: "c1", DocID: "doc-khs", Text: "semester=3 | mata_kuliah=Basis Data | nilai_huruf=A", Page: 1},
		{ID: "c2", DocID: "doc-khs", Text: "semester=3 | mata_kuliah=Jaringan | nilai_huruf=B", Page: 2},
	}, nil)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return([]storage.DocumentRecord{
		{ID: "doc-khs", UserID: 1, Title: "KHS Semester 3", Source: "khs.pdf"},
	}, nil)

	r := NewRetriever(vs, "chunks", embedder, chunks, docs, testConfig())
	got, err := r.Retrieve(context.Background(), RetrievalInput{
		UserID:         1,
		Query:          "nilai basis data berapa",
		HasDocuments:   true,
		ResolvedDocIDs: []string{"doc-khs"},
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	if got.Mode != ModeDocReferenced {
		t.Errorf("mode = %q, want doc_referenced", got.Mode)
	}
	if got.DenseHits != 2 {
		t.Errorf("dense_hits = %d, want 2", got.DenseHits)
	}
	if got.TopScore < 0.89 || got.TopScore > 0.91 {
		t.Errorf("top_score = %f, want 0.9", got.TopScore)
	}
	if len(got.Docs) == 0 || got.Docs[0].Source != "khs.pdf" {
		t.Errorf("docs = %+v, want source labels resolved", got.Docs)
	}
	if embedder.gotMode != llm.EncodeQuery {
		t.Errorf("embed mode = %q, want query", embedder.gotMode)
	}
}

func TestRetriever_Retrieve_FilterFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	vs := vsmocks.NewMockVectorStore(ctrl)
	chunks := storagemocks.NewMockChunkStore(ctrl)
	docs := storagemocks.NewMockDocumentStore(ctrl)

	// The doc-type narrowed search misses; the user-wide retry hits.
	vs.EXPECT().
		Search(gomock.Any(), "chunks", gomock.Any(), 18, vectorstore.Filters{UserID: 1, DocType: "transcript"}).
		Return(nil, nil)
	vs.EXPECT().
		Search(gomock.Any(), "chunks", gomock.Any(), 18, vectorstore.Filters{UserID: 1}).
		Return([]vectorstore.SearchResult{{PointID: "c1", Score: 0.8}}, nil)
	chunks.EXPECT().GetByIDs(gomock.Any(), []string{"c1"}).Return([]storage.ChunkRecord{
		{ID: "c1", DocID: "doc-x", Text: "nilai kalkulus A"},
	}, nil)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return(nil, nil)

	r := NewRetriever(vs, "chunks", &fakeEmbedder{}, chunks, docs, testConfig())
	got, err := r.Retrieve(context.Background(), RetrievalInput{
		UserID:       1,
		Query:        "nilai transkrip kalkulus saya",
		HasDocuments: true,
		DocTypeHint:  "transcript",
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got.DenseHits != 1 {
		t.Errorf("dense_hits = %d, want 1 from fallback", got.DenseHits)
	}
}

func TestRetriever_Retrieve_RelevanceThresholdDropsContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	vs := vsmocks.NewMockVectorStore(ctrl)
	chunks := storagemocks.NewMockChunkStore(ctrl)
	docs := storagemocks.NewMockDocumentStore(ctrl)

	vs.EXPECT().
		Search(gomock.Any(), "chunks", gomock.Any(), 6, vectorstore.Filters{UserID: 1}).
		Return([]vectorstore.SearchResult{{PointID: "c1", Score: 0.05}}, nil)
	chunks.EXPECT().GetByIDs(gomock.Any(), []string{"c1"}).Return([]storage.ChunkRecord{
		{ID: "c1", DocID: "doc-x", Text: "sesuatu yang tidak terkait"},
	}, nil)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return(nil, nil)

	r := NewRetriever(vs, "chunks", &fakeEmbedder{}, chunks, docs, testConfig())
	// General academic question: no doc markers, no doc-type hint.
	got, err := r.Retrieve(context.Background(), RetrievalInput{
		UserID:       1,
		Query:        "apa itu kurikulum merdeka",
		HasDocuments: true,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got.Mode != ModeDocBackground || got.QueryIntent != IntentGeneralAcademic {
		t.Fatalf("mode/intent = %q/%q", got.Mode, got.QueryIntent)
	}
	if len(got.Docs) != 0 {
		t.Errorf("weakly related context should be dropped, got %d docs", len(got.Docs))
	}
	if got.DenseHits != 1 {
		t.Errorf("dense_hits = %d, want 1", got.DenseHits)
	}
}
