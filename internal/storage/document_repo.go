package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks akademik-ai/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// DocumentStore defines the interface for document metadata operations.
type DocumentStore interface {
	// Insert inserts a new document. The record ID must be set (UUID).
	Insert(ctx context.Context, doc *DocumentRecord) error
	// GetByID gets a document by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*DocumentRecord, error)
	// ListByUser returns all documents owned by a user, newest first.
	ListByUser(ctx context.Context, userID int64) ([]DocumentRecord, error)
	// ExistsByUser reports whether the user has any documents at all.
	ExistsByUser(ctx context.Context, userID int64) (bool, error)
	// DeleteByID deletes a document and cascades to its chunks.
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUser deletes every document owned by a user.
	DeleteByUser(ctx context.Context, userID int64) error
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Insert inserts a new document. The record ID must be set (UUID).
func (r *DocumentRepo) Insert(ctx context.Context, doc *DocumentRecord) error {
	columns, err := json.Marshal(doc.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO documents (id, user_id, title, doc_type, columns, source) VALUES (?, ?, ?, ?, ?, ?)",
		doc.ID, doc.UserID, doc.Title, doc.DocType, string(columns), doc.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetByID gets a document by its ID. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, doc_type, columns, source, created_at FROM documents WHERE id = ?",
		id,
	)
	doc, err := scanDocument(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return doc, nil
}

// ListByUser returns all documents owned by a user, newest first.
// Returns an empty slice if the user has no documents (not an error).
func (r *DocumentRepo) ListByUser(ctx context.Context, userID int64) ([]DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, title, doc_type, columns, source, created_at FROM documents WHERE user_id = ? ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []DocumentRecord
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}

// ExistsByUser reports whether the user has any documents at all.
// Used as a fast pre-check before running retrieval.
func (r *DocumentRepo) ExistsByUser(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM documents WHERE user_id = ? LIMIT 1",
		userID,
	).Scan(&one)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check documents: %w", err)
	}
	return true, nil
}

// DeleteByID deletes a document and cascades to its chunks.
func (r *DocumentRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// DeleteByUser deletes every document owned by a user.
func (r *DocumentRepo) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete documents by user: %w", err)
	}
	return nil
}

func scanDocument(scan func(dest ...any) error) (*DocumentRecord, error) {
	var doc DocumentRecord
	var columns string
	var source sql.NullString
	if err := scan(&doc.ID, &doc.UserID, &doc.Title, &doc.DocType, &columns, &source, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.Source = source.String
	if err := json.Unmarshal([]byte(columns), &doc.Columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
	}
	return &doc, nil
}
