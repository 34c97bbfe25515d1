package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// EnsureVectorSchema creates the chunk table used by the document store.
// Chunks carry their owning document id only inside metadata, so lookups are
// served by an expression index rather than a foreign key.
func EnsureVectorSchema(ctx context.Context, db Execer, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rag_chunks (
			id UUID PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_rag_chunks_document ON rag_chunks ((metadata->>'documentId'))",
	}

	return execAll(ctx, db, stmts)
}

// EnsureCatalogSchema creates the document catalog table.
func EnsureCatalogSchema(ctx context.Context, db Execer) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rag_documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			page_count INT NOT NULL DEFAULT 0,
			byte_size BIGINT NOT NULL DEFAULT 0,
			chunk_count INT NOT NULL DEFAULT 0,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		"CREATE INDEX IF NOT EXISTS idx_rag_documents_uploaded ON rag_documents(uploaded_at DESC)",
	}

	return execAll(ctx, db, stmts)
}

func execAll(ctx context.Context, db Execer, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}
