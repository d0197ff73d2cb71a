package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks akademik-ai/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// Insert inserts a single chunk into the database.
	// The chunk.ID must be set (UUID) before calling this method.
	Insert(ctx context.Context, chunk *ChunkRecord) error
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// GetByIDs resolves vector hits to their text, preserving input order.
	GetByIDs(ctx context.Context, ids []string) ([]ChunkRecord, error)
	// ListRows returns the row chunks for a user, optionally narrowed by
	// doc type and an explicit document set.
	ListRows(ctx context.Context, userID int64, docType string, docIDs []string) ([]ChunkRecord, error)
	// ListTexts returns the narrative text chunks for a user, optionally
	// narrowed by doc type and an explicit document set.
	ListTexts(ctx context.Context, userID int64, docType string, docIDs []string) ([]ChunkRecord, error)
	// ListIDsByDoc returns all chunk IDs for a document.
	ListIDsByDoc(ctx context.Context, docID string) ([]string, error)
	// DeleteByDoc deletes all chunks for a given document ID.
	DeleteByDoc(ctx context.Context, docID string) error
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Insert inserts a single chunk into the database.
// The chunk.ID must be set (UUID) before calling this method.
func (r *ChunkRepo) Insert(ctx context.Context, chunk *ChunkRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chunks (id, doc_id, user_id, kind, doc_type, text, page) VALUES (?, ?, ?, ?, ?, ?, ?)",
		chunk.ID, chunk.DocID, chunk.UserID, chunk.Kind, chunk.DocType, chunk.Text, chunk.Page,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	var chunk ChunkRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, doc_id, user_id, kind, doc_type, text, page FROM chunks WHERE id = ?",
		id,
	).Scan(&chunk.ID, &chunk.DocID, &chunk.UserID, &chunk.Kind, &chunk.DocType, &chunk.Text, &chunk.Page)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}

	return &chunk, nil
}

// GetByIDs resolves vector hits to their text, preserving input order.
// IDs that no longer exist are silently dropped; a stale vector point must
// not fail the whole retrieval.
func (r *ChunkRepo) GetByIDs(ctx context.Context, ids []string) ([]ChunkRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, doc_id, user_id, kind, doc_type, text, page FROM chunks WHERE id IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	byID := make(map[string]ChunkRecord, len(ids))
	for rows.Next() {
		var chunk ChunkRecord
		if err := rows.Scan(&chunk.ID, &chunk.DocID, &chunk.UserID, &chunk.Kind, &chunk.DocType, &chunk.Text, &chunk.Page); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		byID[chunk.ID] = chunk
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	ordered := make([]ChunkRecord, 0, len(byID))
	for _, id := range ids {
		if chunk, ok := byID[id]; ok {
			ordered = append(ordered, chunk)
		}
	}

	return ordered, nil
}

// ListRows returns the row chunks for a user, optionally narrowed by doc
// type and an explicit document set. This is the read path of the tabular
// analytics pipeline, which never goes through the vector index.
func (r *ChunkRepo) ListRows(ctx context.Context, userID int64, docType string, docIDs []string) ([]ChunkRecord, error) {
	return r.listByKind(ctx, userID, ChunkKindRow, docType, docIDs)
}

// ListTexts returns the narrative text chunks for a user. The analytics
// pipeline scrapes student profile fields (name, NIM, IPK) out of these.
func (r *ChunkRepo) ListTexts(ctx context.Context, userID int64, docType string, docIDs []string) ([]ChunkRecord, error) {
	return r.listByKind(ctx, userID, ChunkKindText, docType, docIDs)
}

func (r *ChunkRepo) listByKind(ctx context.Context, userID int64, kind, docType string, docIDs []string) ([]ChunkRecord, error) {
	query := "SELECT id, doc_id, user_id, kind, doc_type, text, page FROM chunks WHERE user_id = ? AND kind = ?"
	args := []any{userID, kind}

	if docType != "" {
		query += " AND doc_type = ?"
		args = append(args, docType)
	}
	if len(docIDs) > 0 {
		query += " AND doc_id IN (" + strings.TrimSuffix(strings.Repeat("?,", len(docIDs)), ",") + ")"
		for _, id := range docIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY doc_id, page, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s chunks: %w", kind, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []ChunkRecord
	for rows.Next() {
		var chunk ChunkRecord
		if err := rows.Scan(&chunk.ID, &chunk.DocID, &chunk.UserID, &chunk.Kind, &chunk.DocType, &chunk.Text, &chunk.Page); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

// ListIDsByDoc returns all chunk IDs for a document.
// Used to get Qdrant point IDs for deletion before re-indexing.
func (r *ChunkRepo) ListIDsByDoc(ctx context.Context, docID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE doc_id = ? ORDER BY page, id",
		docID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// DeleteByDoc deletes all chunks for a given document ID.
func (r *ChunkRepo) DeleteByDoc(ctx context.Context, docID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", docID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by document: %w", err)
	}
	return nil
}
