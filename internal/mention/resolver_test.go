package mention

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"akademik-ai/internal/cache"
	"akademik-ai/internal/storage"
	"akademik-ai/internal/storage/mocks"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantClean    string
		wantMentions []string
	}{
		{
			name:      "no mentions",
			query:     "rekap nilai semester 3",
			wantClean: "rekap nilai semester 3",
		},
		{
			name:         "filename mention with spaces",
			query:        "jadwal dari @Jadwal Kuliah Ganjil 2024.pdf dong",
			wantClean:    "jadwal dari dong",
			wantMentions: []string{"Jadwal Kuliah Ganjil 2024.pdf"},
		},
		{
			name:         "bare token mention",
			query:        "nilai di @khs-semester-3 berapa",
			wantClean:    "nilai di berapa",
			wantMentions: []string{"khs-semester-3"},
		},
		{
			name:         "mixed mentions deduplicated",
			query:        "@transkrip.pdf bandingkan dengan @transkrip.pdf dan @khs2024",
			wantClean:    "bandingkan dengan dan",
			wantMentions: []string{"transkrip.pdf", "khs2024"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clean, mentions := Extract(tt.query)
			if clean != tt.wantClean {
				t.Errorf("clean query = %q, want %q", clean, tt.wantClean)
			}
			if !reflect.DeepEqual(mentions, tt.wantMentions) {
				t.Errorf("mentions = %v, want %v", mentions, tt.wantMentions)
			}
		})
	}
}

func TestNormalizeDocKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jadwal Kuliah 2024.pdf", "jadwal kuliah 2024"},
		{"KHS_Semester-3.XLSX", "khs semester 3"},
		{"  transkrip  ", "transkrip"},
		{"...", ""},
	}

	for _, tt := range tests {
		if got := normalizeDocKey(tt.in); got != tt.want {
			t.Errorf("normalizeDocKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func userDocs() []storage.DocumentRecord {
	return []storage.DocumentRecord{
		{ID: "doc-jadwal", UserID: 1, Title: "Jadwal Kuliah Ganjil 2024", DocType: "schedule"},
		{ID: "doc-khs", UserID: 1, Title: "KHS Semester 3", DocType: "transcript"},
		{ID: "doc-khs-4", UserID: 1, Title: "KHS Semester 4", DocType: "transcript"},
	}
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		mentions []string
		want     Resolution
	}{
		{
			name:     "exact normalized match",
			mentions: []string{"KHS Semester 3.pdf"},
			want: Resolution{
				ResolvedDocIDs: []string{"doc-khs"},
				ResolvedTitles: []string{"KHS Semester 3"},
			},
		},
		{
			name:     "single containment match",
			mentions: []string{"jadwal kuliah"},
			want: Resolution{
				ResolvedDocIDs: []string{"doc-jadwal"},
				ResolvedTitles: []string{"Jadwal Kuliah Ganjil 2024"},
			},
		},
		{
			name:     "multiple containment is ambiguous",
			mentions: []string{"khs"},
			want:     Resolution{Ambiguous: []string{"khs"}},
		},
		{
			name:     "no match is unresolved",
			mentions: []string{"skripsi-draft"},
			want:     Resolution{Unresolved: []string{"skripsi-draft"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			docs := mocks.NewMockDocumentStore(ctrl)
			docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return(userDocs(), nil)

			r := NewResolver(docs, cache.Nop{}, 0, 0)
			got, err := r.Resolve(context.Background(), 1, tt.mentions)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolver_Resolve_NoDocuments(t *testing.T) {
	ctrl := gomock.NewController(t)
	docs := mocks.NewMockDocumentStore(ctrl)
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return(nil, nil)

	r := NewResolver(docs, cache.Nop{}, 0, 0)
	got, err := r.Resolve(context.Background(), 1, []string{"khs"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(got.Unresolved, []string{"khs"}) {
		t.Errorf("Unresolved = %v, want [khs]", got.Unresolved)
	}
}

func TestResolver_Resolve_CachesPerMentionSet(t *testing.T) {
	ctrl := gomock.NewController(t)
	docs := mocks.NewMockDocumentStore(ctrl)
	// One store hit despite two Resolve calls.
	docs.EXPECT().ListByUser(gomock.Any(), int64(1)).Return(userDocs(), nil).Times(1)

	r := NewResolver(docs, cache.New(), 30*time.Second, time.Minute)

	first, err := r.Resolve(context.Background(), 1, []string{"KHS Semester 3"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := r.Resolve(context.Background(), 1, []string{"khs semester 3"})
	if err != nil {
		t.Fatalf("Resolve() cached error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached resolution differs: %+v vs %+v", first, second)
	}
}

func TestResolver_HasDocuments_RechecksCachedNegative(t *testing.T) {
	ctrl := gomock.NewController(t)
	docs := mocks.NewMockDocumentStore(ctrl)
	// First call caches false; second call re-checks and finds documents.
	docs.EXPECT().ExistsByUser(gomock.Any(), int64(1)).Return(false, nil)
	docs.EXPECT().ExistsByUser(gomock.Any(), int64(1)).Return(true, nil)

	r := NewResolver(docs, cache.New(), 0, time.Minute)
	ctx := context.Background()

	if r.HasDocuments(ctx, 1) {
		t.Error("HasDocuments() = true before any upload")
	}
	if !r.HasDocuments(ctx, 1) {
		t.Error("HasDocuments() = false after upload, cached negative not re-checked")
	}
	// Positive is now cached; no further store calls expected.
	if !r.HasDocuments(ctx, 1) {
		t.Error("HasDocuments() = false on cached positive")
	}
}

func TestAmbiguousAnswer(t *testing.T) {
	answer := AmbiguousAnswer([]string{"khs", "jadwal", "transkrip", "krs"})
	if !strings.Contains(answer, "`@khs`") {
		t.Error("AmbiguousAnswer() missing first mention")
	}
	if strings.Contains(answer, "`@krs`") {
		t.Error("AmbiguousAnswer() should show at most three mentions")
	}
	if !strings.Contains(answer, "## Opsi Lanjut") {
		t.Error("AmbiguousAnswer() missing Opsi Lanjut section")
	}
}
