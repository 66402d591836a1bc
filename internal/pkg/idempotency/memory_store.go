// internal/pkg/idempotency/memory_store.go
package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 是 Store 的进程内实现，供测试和本地组装使用。
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Seen(ctx context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok, nil
}

func (s *MemoryStore) Record(ctx context.Context, key, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return ErrDuplicateKey
	}
	s.records[key] = Record{Key: key, Outcome: outcome, CreatedAt: time.Now().UTC()}
	return nil
}
