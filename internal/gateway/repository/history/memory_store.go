package history

import (
	"context"
	"sync"
)

// MemoryStore keeps the newest records up to a fixed capacity.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []Record
	capacity int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{capacity: capacity}
}

func (s *MemoryStore) Record(_ context.Context, rec Record) error {
	rec = prepare(rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if over := len(s.records) - s.capacity; over > 0 {
		s.records = append([]Record(nil), s.records[over:]...)
	}
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, username string, limit int) ([]Record, error) {
	limit = clampLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if username != "" && s.records[i].Username != username {
			continue
		}
		out = append(out, s.records[i])
	}
	return out, nil
}
