package rolling

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]string)}
}

func (s *MemoryStore) Load(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.data[key]...), nil
}

func (s *MemoryStore) Save(ctx context.Context, key string, labels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]string(nil), labels...)
	return nil
}
