package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			columns TEXT NOT NULL DEFAULT '[]',
			source TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			text TEXT NOT NULL,
			page INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_user_kind ON chunks(user_id, kind, doc_type);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id);`,
		`CREATE TABLE IF NOT EXISTS rag_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			mode TEXT NOT NULL,
			pipeline TEXT NOT NULL DEFAULT '',
			intent_route TEXT NOT NULL DEFAULT '',
			validation TEXT NOT NULL DEFAULT '',
			answer_mode TEXT NOT NULL DEFAULT '',
			query_len INTEGER NOT NULL,
			dense_hits INTEGER NOT NULL DEFAULT 0,
			bm25_hits INTEGER NOT NULL DEFAULT 0,
			final_docs INTEGER NOT NULL DEFAULT 0,
			retrieval_ms INTEGER NOT NULL DEFAULT 0,
			rerank_ms INTEGER NOT NULL DEFAULT 0,
			llm_model TEXT,
			llm_time_ms INTEGER NOT NULL DEFAULT 0,
			fallback_used INTEGER NOT NULL DEFAULT 0,
			source_count INTEGER NOT NULL DEFAULT 0,
			status_code INTEGER NOT NULL DEFAULT 200,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rag_metrics_created ON rag_metrics(created_at);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
