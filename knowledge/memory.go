package knowledge

import (
	"context"
	"sort"
	"sync"
)

type MemoryCatalog struct {
	mu    sync.RWMutex
	docs  map[string]Document
	order []string
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{docs: make(map[string]Document)}
}

func (c *MemoryCatalog) Save(_ context.Context, doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[doc.ID]; ok {
		return nil
	}
	c.docs[doc.ID] = doc
	c.order = append(c.order, doc.ID)
	return nil
}

func (c *MemoryCatalog) Get(_ context.Context, id string) (Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (c *MemoryCatalog) List(context.Context) ([]Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	docs := make([]Document, 0, len(c.order))
	for i := len(c.order) - 1; i >= 0; i-- {
		docs = append(docs, c.docs[c.order[i]])
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs, nil
}

func (c *MemoryCatalog) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.docs = make(map[string]Document)
	c.order = nil
	return nil
}

var _ Catalog = (*MemoryCatalog)(nil)
