// Package docstore persists embedded chunks and answers similarity queries
// restricted to a single document.
package docstore

import "context"

// Metadata keys written on every chunk.
const (
	MetadataDocumentID = "documentId"
	MetadataPageNumber = "pageNumber"
	MetadataChunkIndex = "chunkIndex"
	MetadataSource     = "source"
)

type Record struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

type Match struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64
}

// Store is the shared vector index. Upsert is idempotent on Record.ID.
// Query only returns records whose documentId metadata equals documentID.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, embedding []float32, documentID string, k int) ([]Match, error)
	DeleteAll(ctx context.Context) error
}
