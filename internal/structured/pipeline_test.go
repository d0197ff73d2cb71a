package structured

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"akademik-ai/internal/envelope"
	"akademik-ai/internal/router"
	"akademik-ai/internal/storage"
	"akademik-ai/internal/storage/mocks"
)

func testPipeline(t *testing.T, chunks *mocks.MockChunkStore, docs *mocks.MockDocumentStore, polisher *Polisher) *Pipeline {
	t.Helper()
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return NewPipeline(chunks, docs, polisher, Options{
		Enabled:                 true,
		StrictTranscriptEnabled: true,
		Timezone:                jakarta,
	})
}

func transcriptChunks() []storage.ChunkRecord {
	return []storage.ChunkRecord{
		{ID: "c1", DocID: "doc-khs", UserID: 1, Kind: storage.ChunkKindRow, DocType: "transcript",
			Text: "semester=1 | mata_kuliah=Kalkulus | sks=3 | nilai_huruf=D", Page: 1},
		{ID: "c2", DocID: "doc-khs", UserID: 1, Kind: storage.ChunkKindRow, DocType: "transcript",
			Text: "semester=3 | mata_kuliah=Kalkulus | sks=3 | nilai_huruf=B", Page: 2},
		{ID: "c3", DocID: "doc-khs", UserID: 1, Kind: storage.ChunkKindRow, DocType: "transcript",
			Text: "semester=2 | mata_kuliah=Basis Data | sks=3 | nilai_huruf=A", Page: 1},
	}
}

func userDocuments() []storage.DocumentRecord {
	return []storage.DocumentRecord{
		{ID: "doc-khs", UserID: 1, Title: "KHS Semester 3", DocType: "transcript", Source: "khs.pdf"},
	}
}

func TestPipeline_Run_NotApplicable(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		opts Options
	}{
		{
			name: "non analytical route",
			req:  Request{UserID: 1, Query: "rekap nilai", IntentRoute: router.RouteDefaultRAG, HasDocuments: true},
			opts: Options{Enabled: true},
		},
		{
			name: "no documents",
			req:  Request{UserID: 1, Query: "rekap nilai", IntentRoute: router.RouteAnalyticalTabular},
			opts: Options{Enabled: true},
		},
		{
			name: "analytics disabled",
			req:  Request{UserID: 1, Query: "rekap nilai", IntentRoute: router.RouteAnalyticalTabular, HasDocuments: true},
			opts: Options{Enabled: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			p := NewPipeline(mocks.NewMockChunkStore(ctrl), mocks.NewMockDocumentStore(ctrl), nil, tt.opts)

			env, err := p.Run(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if env != nil {
				t.Errorf("Run() = %+v, want nil", env)
			}
		})
	}
}

func TestPipeline_Run_TranscriptRecap(t *testing.T) {
	ctrl := gomock.NewController(t)
	chunks := mocks.NewMockChunkStore(ctrl)
	docs := mocks.NewMockDocumentStore(ctrl)

	chunks.EXPECT().ListRows(gomock.Any(), int64(1), "transcript", nil).Return(transcriptChunks(), nil)
	chunks.EXPECT().ListTexts(gomock.Any(), int64(1), "transcript", nil).Return([]storage.ChunkRecord{
		{Text: "Nama : BUDI SANTOSO Dosen PA : Dr. Rina NIM : 2110501001 IPK : 3.41"},
	}, nil)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return(userDocuments(), nil)

	p := testPipeline(t, chunks, docs, nil)
	env, err := p.Run(context.Background(), Request{
		UserID:       1,
		Query:        "rekap semua nilai saya dong",
		IntentRoute:  router.RouteAnalyticalTabular,
		HasDocuments: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if env == nil {
		t.Fatal("Run() = nil, want envelope")
	}

	if env.Meta.Mode != "structured_transcript" || env.Meta.Pipeline != envelope.PipelineStructuredAnalytics {
		t.Errorf("meta = %+v", env.Meta)
	}
	// Retake of Kalkulus dedupes to the semester-3 row.
	if env.Meta.AnalyticsStats.Raw != 3 || env.Meta.AnalyticsStats.Deduped != 2 || env.Meta.AnalyticsStats.Returned != 2 {
		t.Errorf("analytics_stats = %+v", env.Meta.AnalyticsStats)
	}
	if !strings.Contains(env.Answer, "BUDI SANTOSO") {
		t.Errorf("answer missing profile name:\n%s", env.Answer)
	}
	if !strings.Contains(env.Answer, "| 2 | Basis Data | 3 | A |") {
		t.Errorf("answer missing course row:\n%s", env.Answer)
	}
	if len(env.Sources) == 0 || !strings.Contains(env.Sources[0].Source, "khs.pdf") {
		t.Errorf("sources = %+v", env.Sources)
	}
	if env.Meta.AnswerMode != AnswerModeFactual {
		t.Errorf("answer_mode = %q", env.Meta.AnswerMode)
	}
}

func TestPipeline_Run_SemesterFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	chunks := mocks.NewMockChunkStore(ctrl)
	docs := mocks.NewMockDocumentStore(ctrl)

	chunks.EXPECT().ListRows(gomock.Any(), int64(1), "transcript", nil).Return(transcriptChunks(), nil)
	chunks.EXPECT().ListTexts(gomock.Any(), int64(1), "transcript", nil).Return(nil, nil)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return(userDocuments(), nil)

	p := testPipeline(t, chunks, docs, nil)
	env, err := p.Run(context.Background(), Request{
		UserID:       1,
		Query:        "daftar nilai semester 2",
		IntentRoute:  router.RouteAnalyticalTabular,
		HasDocuments: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if env.Meta.AnalyticsStats.Returned != 1 {
		t.Errorf("returned = %d, want 1 (only semester 2)", env.Meta.AnalyticsStats.Returned)
	}
	if !strings.Contains(env.Answer, "Basis Data") || strings.Contains(env.Answer, "Kalkulus") {
		t.Errorf("semester filter leaked rows:\n%s", env.Answer)
	}
}

func TestPipeline_Run_StrictTranscriptSkipsPolish(t *testing.T) {
	ctrl := gomock.NewController(t)
	chunks := mocks.NewMockChunkStore(ctrl)
	docs := mocks.NewMockDocumentStore(ctrl)

	chunks.EXPECT().ListRows(gomock.Any(), int64(1), "transcript", nil).Return(transcriptChunks(), nil)
	chunks.EXPECT().ListTexts(gomock.Any(), int64(1), "transcript", nil).Return(nil, nil)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return(userDocuments(), nil)

	inv := &fakeInvoker{err: context.Canceled}
	p := testPipeline(t, chunks, docs, NewPolisher(inv, "", 0, true))

	env, err := p.Run(context.Background(), Request{
		UserID:       1,
		Query:        "tampilkan data mentah khs saya",
		IntentRoute:  router.RouteAnalyticalTabular,
		HasDocuments: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if env.Meta.Validation != envelope.ValidationSkippedStrict {
		t.Errorf("validation = %q, want skipped_strict", env.Meta.Validation)
	}
	if inv.gotMessages != nil {
		t.Error("polisher must not be called in strict mode")
	}
}

func TestPipeline_Run_StrictNoRows(t *testing.T) {
	ctrl := gomock.NewController(t)
	chunks := mocks.NewMockChunkStore(ctrl)
	docs := mocks.NewMockDocumentStore(ctrl)

	chunks.EXPECT().ListRows(gomock.Any(), int64(1), "transcript", nil).Return(nil, nil)

	p := testPipeline(t, chunks, docs, nil)
	env, err := p.Run(context.Background(), Request{
		UserID:       1,
		Query:        "transkrip saya mana",
		IntentRoute:  router.RouteAnalyticalTabular,
		HasDocuments: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if env == nil {
		t.Fatal("strict mode must answer instead of falling through")
	}
	if env.Meta.Validation != envelope.ValidationStrictNoFallback {
		t.Errorf("validation = %q, want strict_no_fallback", env.Meta.Validation)
	}
	if !strings.Contains(env.Answer, "data tidak ditemukan") {
		t.Errorf("answer = %q", env.Answer)
	}
}

func TestPipeline_Run_ScheduleFallbackForRecap(t *testing.T) {
	ctrl := gomock.NewController(t)
	chunks := mocks.NewMockChunkStore(ctrl)
	docs := mocks.NewMockDocumentStore(ctrl)

	scheduleChunks := []storage.ChunkRecord{
		{ID: "s1", DocID: "doc-krs", UserID: 1, Kind: storage.ChunkKindRow, DocType: "schedule",
			Text: "hari=Senin | jam_mulai=07:30 | jam_selesai=10:00 | mata_kuliah=Jaringan | ruangan=Lab 2", Page: 1},
	}
	chunks.EXPECT().ListRows(gomock.Any(), int64(1), "transcript", nil).Return(nil, nil)
	chunks.EXPECT().ListRows(gomock.Any(), int64(1), "schedule", nil).Return(scheduleChunks, nil)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return([]storage.DocumentRecord{
		{ID: "doc-krs", UserID: 1, Title: "KRS Ganjil", DocType: "schedule", Source: "krs.pdf"},
	}, nil)

	p := testPipeline(t, chunks, docs, nil)
	env, err := p.Run(context.Background(), Request{
		UserID:       1,
		Query:        "daftar mata kuliah saya apa saja",
		IntentRoute:  router.RouteAnalyticalTabular,
		HasDocuments: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if env == nil {
		t.Fatal("Run() = nil, want schedule fallback answer")
	}
	if env.Meta.Mode != "structured_schedule" {
		t.Errorf("mode = %q, want structured_schedule", env.Meta.Mode)
	}
	if !strings.Contains(env.Answer, "Jaringan") {
		t.Errorf("answer missing schedule row:\n%s", env.Answer)
	}
}

func TestPipeline_Run_ScheduleDayFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	chunks := mocks.NewMockChunkStore(ctrl)
	docs := mocks.NewMockDocumentStore(ctrl)

	scheduleChunks := []storage.ChunkRecord{
		{ID: "s1", DocID: "doc-krs", UserID: 1, Kind: storage.ChunkKindRow, DocType: "schedule",
			Text: "hari=Senin | jam_mulai=07:30 | jam_selesai=10:00 | mata_kuliah=Jaringan", Page: 1},
		{ID: "s2", DocID: "doc-krs", UserID: 1, Kind: storage.ChunkKindRow, DocType: "schedule",
			Text: "hari=Kamis | jam_mulai=13:00 | jam_selesai=15:30 | mata_kuliah=Etika Profesi", Page: 1},
	}
	chunks.EXPECT().ListRows(gomock.Any(), int64(1), "schedule", nil).Return(scheduleChunks, nil)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return([]storage.DocumentRecord{
		{ID: "doc-krs", UserID: 1, Title: "KRS Ganjil", DocType: "schedule", Source: "krs.pdf"},
	}, nil)

	p := testPipeline(t, chunks, docs, nil)
	env, err := p.Run(context.Background(), Request{
		UserID:       1,
		Query:        "jadwal hari kamis",
		IntentRoute:  router.RouteAnalyticalTabular,
		HasDocuments: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if env.Meta.AnalyticsStats.Raw != 2 || env.Meta.AnalyticsStats.Returned != 1 {
		t.Errorf("analytics_stats = %+v", env.Meta.AnalyticsStats)
	}
	if !strings.Contains(env.Answer, "Etika Profesi") || strings.Contains(env.Answer, "Jaringan") {
		t.Errorf("day filter leaked rows:\n%s", env.Answer)
	}
}

func TestPipeline_Run_ColumnGuard(t *testing.T) {
	ctrl := gomock.NewController(t)
	chunks := mocks.NewMockChunkStore(ctrl)
	docs := mocks.NewMockDocumentStore(ctrl)

	// Grade question, transcript table empty, documents only carry schedule
	// columns.
	chunks.EXPECT().ListRows(gomock.Any(), int64(1), "transcript", nil).Return(nil, nil)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return([]storage.DocumentRecord{
		{ID: "doc-krs", UserID: 1, Title: "KRS Ganjil", DocType: "schedule",
			Columns: []string{"Hari", "Jam", "Mata Kuliah", "Ruangan"}},
	}, nil)

	p := testPipeline(t, chunks, docs, nil)
	env, err := p.Run(context.Background(), Request{
		UserID:       1,
		Query:        "berapa nilai saya",
		IntentRoute:  router.RouteAnalyticalTabular,
		HasDocuments: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if env == nil {
		t.Fatal("column guard should answer instead of falling through")
	}
	if !strings.Contains(env.Answer, "data nilai (Grade/Bobot) tidak ada") {
		t.Errorf("answer = %q", env.Answer)
	}
	if !strings.Contains(env.Answer, "Hari, Jam, Mata Kuliah, Ruangan") {
		t.Errorf("answer should list the available columns:\n%s", env.Answer)
	}
	if env.Meta.Validation != envelope.ValidationNoGroundingEvidence {
		t.Errorf("validation = %q, want %q", env.Meta.Validation, envelope.ValidationNoGroundingEvidence)
	}
}

func TestPipeline_Run_NoRowsFallsThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	chunks := mocks.NewMockChunkStore(ctrl)
	docs := mocks.NewMockDocumentStore(ctrl)

	chunks.EXPECT().ListRows(gomock.Any(), int64(1), "transcript", nil).Return(nil, nil)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return([]storage.DocumentRecord{
		{ID: "doc-x", UserID: 1, Title: "Panduan Akademik", DocType: "other"},
	}, nil)

	p := testPipeline(t, chunks, docs, nil)
	env, err := p.Run(context.Background(), Request{
		UserID:       1,
		Query:        "berapa nilai saya",
		IntentRoute:  router.RouteAnalyticalTabular,
		HasDocuments: true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if env != nil {
		t.Errorf("Run() = %+v, want nil so semantic retrieval takes over", env)
	}
}

func TestPipeline_Run_UnresolvedMentionNote(t *testing.T) {
	ctrl := gomock.NewController(t)
	chunks := mocks.NewMockChunkStore(ctrl)
	docs := mocks.NewMockDocumentStore(ctrl)

	chunks.EXPECT().ListRows(gomock.Any(), int64(1), "transcript", nil).Return(transcriptChunks(), nil)
	chunks.EXPECT().ListTexts(gomock.Any(), int64(1), "transcript", nil).Return(nil, nil)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return(userDocuments(), nil)

	p := testPipeline(t, chunks, docs, nil)
	env, err := p.Run(context.Background(), Request{
		UserID:             1,
		Query:              "rekap nilai saya",
		IntentRoute:        router.RouteAnalyticalTabular,
		HasDocuments:       true,
		UnresolvedMentions: []string{"khs-lama.pdf"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(env.Answer, "Catatan rujukan: ada file yang tidak ditemukan (@khs-lama.pdf).") {
		t.Errorf("answer missing unresolved mention note:\n%s", env.Answer)
	}
	if len(env.Meta.UnresolvedMentions) != 1 {
		t.Errorf("meta.unresolved_mentions = %v", env.Meta.UnresolvedMentions)
	}
}
