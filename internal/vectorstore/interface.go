package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks akademik-ai/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// Filters constrains a search or delete to one user's slice of the
// collection. UserID is mandatory on every search; the other fields are
// optional narrowing conditions.
type Filters struct {
	// UserID scopes the operation to a single user. Search refuses to run
	// without it.
	UserID int64
	// DocType matches the payload doc_type field (e.g. "transcript",
	// "schedule").
	DocType string
	// DocIDs restricts to an explicit set of document ids.
	DocIDs []string
	// ChunkKind matches the payload chunk_kind field ("row" or "text").
	ChunkKind string
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search scoped by filters.
	Search(ctx context.Context, collection string, query []float32, k int, filters Filters) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// DeleteByFilter removes every point matching filters. Used when a
	// document or a whole user account is purged.
	DeleteByFilter(ctx context.Context, collection string, filters Filters) error
}
