package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresCatalog struct {
	pool *pgxpool.Pool
}

func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

func (c *PostgresCatalog) Save(ctx context.Context, doc Document) error {
	if c.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if _, err := c.pool.Exec(ctx, `
		INSERT INTO rag_documents (id, filename, summary, page_count, byte_size, chunk_count, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, doc.ID, doc.Filename, doc.Summary, doc.PageCount, doc.ByteSize, doc.ChunkCount, doc.UploadedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (c *PostgresCatalog) Get(ctx context.Context, id string) (Document, error) {
	if c.pool == nil {
		return Document{}, fmt.Errorf("postgres pool is nil")
	}

	var doc Document
	err := c.pool.QueryRow(ctx, `
		SELECT id, filename, summary, page_count, byte_size, chunk_count, uploaded_at
		FROM rag_documents
		WHERE id = $1
	`, id).Scan(&doc.ID, &doc.Filename, &doc.Summary, &doc.PageCount, &doc.ByteSize, &doc.ChunkCount, &doc.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("query document: %w", err)
	}
	return doc, nil
}

func (c *PostgresCatalog) List(ctx context.Context) ([]Document, error) {
	if c.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := c.pool.Query(ctx, `
		SELECT id, filename, summary, page_count, byte_size, chunk_count, uploaded_at
		FROM rag_documents
		ORDER BY uploaded_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Summary, &doc.PageCount, &doc.ByteSize, &doc.ChunkCount, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (c *PostgresCatalog) Clear(ctx context.Context) error {
	if c.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if _, err := c.pool.Exec(ctx, "TRUNCATE rag_documents"); err != nil {
		return fmt.Errorf("truncate documents: %w", err)
	}
	return nil
}

var _ Catalog = (*PostgresCatalog)(nil)
