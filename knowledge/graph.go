package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphCatalog stores each document as a Document node linked to one Page
// node per page.
type GraphCatalog struct {
	driver neo4j.DriverWithContext
}

func NewGraphCatalog(driver neo4j.DriverWithContext) *GraphCatalog {
	return &GraphCatalog{driver: driver}
}

func (g *GraphCatalog) Save(ctx context.Context, doc Document) error {
	if g.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"id":          doc.ID,
		"filename":    doc.Filename,
		"summary":     doc.Summary,
		"page_count":  doc.PageCount,
		"byte_size":   doc.ByteSize,
		"chunk_count": doc.ChunkCount,
		"uploaded_at": doc.UploadedAt.UnixMilli(),
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, "MATCH (d:Document {id: $id}) RETURN count(d) AS existing", params)
		if err != nil {
			return nil, fmt.Errorf("lookup document node: %w", err)
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, fmt.Errorf("read document node: %w", err)
		}
		if existing, _, _ := neo4j.GetRecordValue[int64](record, "existing"); existing > 0 {
			return nil, nil
		}

		if _, err := tx.Run(ctx, `
			CREATE (d:Document {id: $id})
			SET d.filename = $filename,
			    d.summary = $summary,
			    d.page_count = $page_count,
			    d.byte_size = $byte_size,
			    d.chunk_count = $chunk_count,
			    d.uploaded_at = $uploaded_at
		`, params); err != nil {
			return nil, fmt.Errorf("create document node: %w", err)
		}

		for page := 1; page <= doc.PageCount; page++ {
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {id: $doc_id})
				MERGE (p:Page {document_id: $doc_id, number: $number})
				MERGE (d)-[:HAS_PAGE {order: $number}]->(p)
			`, map[string]any{
				"doc_id": doc.ID,
				"number": page,
			}); err != nil {
				return nil, fmt.Errorf("upsert page node: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

func (g *GraphCatalog) Get(ctx context.Context, id string) (Document, error) {
	docs, err := g.query(ctx, `
		MATCH (d:Document {id: $id})
		RETURN d.id AS id, d.filename AS filename, d.summary AS summary,
		       d.page_count AS page_count, d.byte_size AS byte_size,
		       d.chunk_count AS chunk_count, d.uploaded_at AS uploaded_at
	`, map[string]any{"id": id})
	if err != nil {
		return Document{}, err
	}
	if len(docs) == 0 {
		return Document{}, ErrNotFound
	}
	return docs[0], nil
}

func (g *GraphCatalog) List(ctx context.Context) ([]Document, error) {
	return g.query(ctx, `
		MATCH (d:Document)
		RETURN d.id AS id, d.filename AS filename, d.summary AS summary,
		       d.page_count AS page_count, d.byte_size AS byte_size,
		       d.chunk_count AS chunk_count, d.uploaded_at AS uploaded_at
		ORDER BY d.uploaded_at DESC
	`, nil)
}

// Clear removes every Document node and its pages.
func (g *GraphCatalog) Clear(ctx context.Context) error {
	if g.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MATCH (d:Document)
			OPTIONAL MATCH (d)-[:HAS_PAGE]->(p:Page)
			DETACH DELETE d, p
		`, nil); err != nil {
			return nil, fmt.Errorf("purge documents: %w", err)
		}
		return nil, nil
	})
	return err
}

func (g *GraphCatalog) query(ctx context.Context, cypher string, params map[string]any) ([]Document, error) {
	if g.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, fmt.Errorf("query documents: %w", err)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("collect documents: %w", err)
		}

		docs := make([]Document, 0, len(records))
		for _, record := range records {
			doc, err := documentFromRecord(record)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]Document), nil
}

func documentFromRecord(record *neo4j.Record) (Document, error) {
	var doc Document
	var err error

	if doc.ID, _, err = neo4j.GetRecordValue[string](record, "id"); err != nil {
		return Document{}, fmt.Errorf("read document id: %w", err)
	}
	doc.Filename, _, _ = neo4j.GetRecordValue[string](record, "filename")
	doc.Summary, _, _ = neo4j.GetRecordValue[string](record, "summary")

	pageCount, _, _ := neo4j.GetRecordValue[int64](record, "page_count")
	byteSize, _, _ := neo4j.GetRecordValue[int64](record, "byte_size")
	chunkCount, _, _ := neo4j.GetRecordValue[int64](record, "chunk_count")
	uploadedAt, _, _ := neo4j.GetRecordValue[int64](record, "uploaded_at")

	doc.PageCount = int(pageCount)
	doc.ByteSize = byteSize
	doc.ChunkCount = int(chunkCount)
	doc.UploadedAt = time.UnixMilli(uploadedAt).UTC()
	return doc, nil
}

var _ Catalog = (*GraphCatalog)(nil)
