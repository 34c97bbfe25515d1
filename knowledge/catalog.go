// Package knowledge keeps the catalog of ingested documents.
package knowledge

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("document not found")

type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploadedAt"`
	Summary    string    `json:"summary"`
	PageCount  int       `json:"pageCount"`
	ByteSize   int64     `json:"byteSize"`
	ChunkCount int       `json:"chunkCount"`
}

// Catalog records documents once. Save never overwrites an existing entry and
// List returns the newest uploads first.
type Catalog interface {
	Save(ctx context.Context, doc Document) error
	Get(ctx context.Context, id string) (Document, error)
	List(ctx context.Context) ([]Document, error)
	Clear(ctx context.Context) error
}
