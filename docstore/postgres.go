package docstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Upsert writes all records in one transaction.
func (s *PostgresStore) Upsert(ctx context.Context, records []Record) (err error) {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	batch := &pgx.Batch{}
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("record %s has no embedding", rec.ID)
		}
		metadata := rec.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		batch.Queue(`
			INSERT INTO rag_chunks (id, content, metadata, embedding, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (id) DO UPDATE
			SET content = EXCLUDED.content,
			    metadata = EXCLUDED.metadata,
			    embedding = EXCLUDED.embedding
		`, rec.ID, rec.Content, metadata, pgvector.NewVector(rec.Embedding))
	}

	results := tx.SendBatch(ctx, batch)
	for i := range records {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			return fmt.Errorf("upsert chunk %d: %w", i, execErr)
		}
	}
	if err = results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Query scans the chunks of one document exactly, ordered by cosine distance.
func (s *PostgresStore) Query(ctx context.Context, embedding []float32, documentID string, k int) ([]Match, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
        SELECT
            id::text,
            content,
            metadata,
            1 - (embedding <=> $1::vector) AS score
        FROM rag_chunks
        WHERE metadata->>'documentId' = $2
        ORDER BY embedding <=> $1::vector, id
        LIMIT $3
    `, pgvector.NewVector(embedding), documentID, k)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, k)
	for rows.Next() {
		var m Match
		if scanErr := rows.Scan(&m.ID, &m.Content, &m.Metadata, &m.Score); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return matches, nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE rag_chunks"); err != nil {
		return fmt.Errorf("truncate chunks: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
