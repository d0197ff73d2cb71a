package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
)

func insertTestChunk(t *testing.T, db *sql.DB, docID string, userID int64, kind, docType, text string) string {
	t.Helper()

	chunk := &ChunkRecord{
		ID:      uuid.NewString(),
		DocID:   docID,
		UserID:  userID,
		Kind:    kind,
		DocType: docType,
		Text:    text,
	}
	if err := NewChunkRepo(db).Insert(context.Background(), chunk); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return chunk.ID
}

func TestChunkRepo_GetByID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewChunkRepo(db)

	docID := insertTestDocument(t, db, 1, "KHS Semester 3", "transcript", nil)
	id := insertTestChunk(t, db, docID, 1, ChunkKindRow, "transcript",
		"semester=3 | mata_kuliah=Algoritma | sks=3 | nilai_huruf=B")

	chunk, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if chunk.Kind != ChunkKindRow {
		t.Errorf("Kind = %q, want row", chunk.Kind)
	}
	if chunk.DocID != docID {
		t.Errorf("DocID = %q, want %q", chunk.DocID, docID)
	}

	if _, err := repo.GetByID(ctx, "missing"); err != ErrNotFound {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestChunkRepo_GetByIDs_PreservesOrderAndDropsStale(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewChunkRepo(db)

	docID := insertTestDocument(t, db, 1, "Panduan Akademik", "other", nil)
	first := insertTestChunk(t, db, docID, 1, ChunkKindText, "other", "bab satu")
	second := insertTestChunk(t, db, docID, 1, ChunkKindText, "other", "bab dua")

	// Retrieval order comes from vector scores, not insertion order.
	chunks, err := repo.GetByIDs(ctx, []string{second, "stale-point", first})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("GetByIDs() returned %d chunks, want 2", len(chunks))
	}
	if chunks[0].ID != second || chunks[1].ID != first {
		t.Errorf("GetByIDs() order = [%s %s], want [%s %s]", chunks[0].ID, chunks[1].ID, second, first)
	}
}

func TestChunkRepo_GetByIDs_Empty(t *testing.T) {
	db := newTestDB(t)
	repo := NewChunkRepo(db)

	chunks, err := repo.GetByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("GetByIDs(nil) returned %d chunks, want 0", len(chunks))
	}
}

func TestChunkRepo_ListRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewChunkRepo(db)

	khsDoc := insertTestDocument(t, db, 1, "KHS Semester 3", "transcript", nil)
	jadwalDoc := insertTestDocument(t, db, 1, "Jadwal Kuliah", "schedule", nil)
	otherDoc := insertTestDocument(t, db, 2, "KHS Orang Lain", "transcript", nil)

	insertTestChunk(t, db, khsDoc, 1, ChunkKindRow, "transcript", "semester=3 | mata_kuliah=Basis Data | nilai_huruf=A")
	insertTestChunk(t, db, khsDoc, 1, ChunkKindText, "transcript", "catatan naratif")
	insertTestChunk(t, db, jadwalDoc, 1, ChunkKindRow, "schedule", "hari=Senin | jam_mulai=07:30 | mata_kuliah=Basis Data")
	insertTestChunk(t, db, otherDoc, 2, ChunkKindRow, "transcript", "semester=1 | mata_kuliah=Kalkulus | nilai_huruf=C")

	tests := []struct {
		name    string
		userID  int64
		docType string
		docIDs  []string
		want    int
	}{
		{name: "all rows for user", userID: 1, want: 2},
		{name: "narrowed by doc type", userID: 1, docType: "transcript", want: 1},
		{name: "narrowed by doc set", userID: 1, docIDs: []string{jadwalDoc}, want: 1},
		{name: "other user's rows invisible", userID: 1, docIDs: []string{otherDoc}, want: 0},
		{name: "user without rows", userID: 99, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := repo.ListRows(ctx, tt.userID, tt.docType, tt.docIDs)
			if err != nil {
				t.Fatalf("ListRows() error = %v", err)
			}
			if len(rows) != tt.want {
				t.Errorf("ListRows() returned %d rows, want %d", len(rows), tt.want)
			}
			for _, row := range rows {
				if row.UserID != tt.userID {
					t.Errorf("ListRows() leaked row of user %d", row.UserID)
				}
				if row.Kind != ChunkKindRow {
					t.Errorf("ListRows() returned kind %q", row.Kind)
				}
			}
		})
	}
}

func TestChunkRepo_ListTexts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewChunkRepo(db)

	docID := insertTestDocument(t, db, 1, "KHS Semester 3", "transcript", nil)
	insertTestChunk(t, db, docID, 1, ChunkKindText, "transcript", "Nama : BUDI SANTOSO Dosen PA : Dr. Rina")
	insertTestChunk(t, db, docID, 1, ChunkKindRow, "transcript", "semester=3 | mata_kuliah=Basis Data | nilai_huruf=A")

	texts, err := repo.ListTexts(ctx, 1, "transcript", nil)
	if err != nil {
		t.Fatalf("ListTexts() error = %v", err)
	}
	if len(texts) != 1 {
		t.Fatalf("ListTexts() returned %d chunks, want 1", len(texts))
	}
	if texts[0].Kind != ChunkKindText {
		t.Errorf("Kind = %q, want text", texts[0].Kind)
	}
}

func TestChunkRepo_ListIDsByDocAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewChunkRepo(db)

	docID := insertTestDocument(t, db, 1, "KHS", "transcript", nil)
	insertTestChunk(t, db, docID, 1, ChunkKindRow, "transcript", "semester=1 | nilai_huruf=B")
	insertTestChunk(t, db, docID, 1, ChunkKindRow, "transcript", "semester=2 | nilai_huruf=A")

	ids, err := repo.ListIDsByDoc(ctx, docID)
	if err != nil {
		t.Fatalf("ListIDsByDoc() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ListIDsByDoc() returned %d ids, want 2", len(ids))
	}

	if err := repo.DeleteByDoc(ctx, docID); err != nil {
		t.Fatalf("DeleteByDoc() error = %v", err)
	}

	ids, err = repo.ListIDsByDoc(ctx, docID)
	if err != nil {
		t.Fatalf("ListIDsByDoc() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ListIDsByDoc() after delete returned %d ids, want 0", len(ids))
	}
}
