package docstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore keeps records in process. Used for tests and single-node demos.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	index   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

func (s *MemoryStore) Upsert(_ context.Context, records []Record) error {
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("record %s has no embedding", rec.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		rec = cloneRecord(rec)
		if pos, ok := s.index[rec.ID]; ok {
			s.records[pos] = rec
			continue
		}
		s.index[rec.ID] = len(s.records)
		s.records = append(s.records, rec)
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, embedding []float32, documentID string, k int) ([]Match, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0)
	for _, rec := range s.records {
		if id, _ := rec.Metadata[MetadataDocumentID].(string); id != documentID {
			continue
		}
		matches = append(matches, Match{
			ID:       rec.ID,
			Content:  rec.Content,
			Metadata: cloneMetadata(rec.Metadata),
			Score:    cosine(embedding, rec.Embedding),
		})
	}

	// ties keep insertion order
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *MemoryStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.index = make(map[string]int)
	return nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func cloneRecord(rec Record) Record {
	rec.Metadata = cloneMetadata(rec.Metadata)
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	return rec
}

func cloneMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
