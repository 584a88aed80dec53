package document

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, owner, name string, content []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	owner, name, err := normalize(owner, name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectKey(owner, name)] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, owner, name string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	owner, name, err := normalize(owner, name)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[objectKey(owner, name)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) List(_ context.Context, owner string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	prefix := owner + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 16)
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

// GetURL is unsupported in memory; documents are served by the gateway.
func (s *MemoryStore) GetURL(context.Context, string, string) (string, error) {
	return "", nil
}
