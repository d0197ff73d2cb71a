package storage

import "time"

// DocumentRecord represents an uploaded academic document.
type DocumentRecord struct {
	ID        string // UUID
	UserID    int64  // Owning user; every query is scoped by this
	Title     string // Display title, matched against query mentions
	DocType   string // "transcript", "schedule" or "other"
	Columns   []string
	Source    string // Original filename or upload source
	CreatedAt time.Time
}

// ChunkRecord represents an indexed chunk of a document. The ID doubles as
// the Qdrant point ID so a vector hit resolves to its text with one lookup.
type ChunkRecord struct {
	ID      string // UUID (same as Qdrant point ID)
	DocID   string // Foreign key to documents.id
	UserID  int64  // Denormalized for direct row fetches
	Kind    string // "row" for tabular rows, "text" for narrative chunks
	DocType string
	Text    string // Row chunks hold "key=value | key=value" serializations
	Page    int
}

const (
	// ChunkKindRow marks a serialized table row.
	ChunkKindRow = "row"
	// ChunkKindText marks a narrative text chunk.
	ChunkKindText = "text"
)

// MetricRecord is one append-only row per answered request.
type MetricRecord struct {
	ID           int64
	RequestID    string
	UserID       int64
	Mode         string // retrieval mode, e.g. "doc_referenced"
	Pipeline     string // "route_guard", "structured_analytics" or "rag_semantic"
	IntentRoute  string
	Validation   string
	AnswerMode   string
	QueryLen     int
	DenseHits    int
	BM25Hits     int
	FinalDocs    int
	RetrievalMs  int64
	RerankMs     int64
	LLMModel     string
	LLMTimeMs    int64
	FallbackUsed bool
	SourceCount  int
	StatusCode   int
	CreatedAt    time.Time
}
