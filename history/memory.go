package history

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]Message)}
}

func (s *MemoryStore) Get(_ context.Context, documentID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message{}, s.data[Key(documentID)]...), nil
}

func (s *MemoryStore) Put(_ context.Context, documentID string, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[Key(documentID)] = append([]Message(nil), messages...)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, Key(documentID))
	return nil
}

var _ Store = (*MemoryStore)(nil)
