package document

import (
	"context"
	"errors"
	"sync"
	"testing"

	docrepo "screendeck/internal/gateway/repository/document"
	"screendeck/internal/tester"
)

// countingStore wraps a memory store and records origin traffic.
type countingStore struct {
	*docrepo.MemoryStore
	mu       sync.Mutex
	gets     int
	lists    int
	urlCalls int
	failPut  bool
}

func (s *countingStore) Put(ctx context.Context, owner, name string, content []byte) error {
	if s.failPut {
		return errors.New("put failed")
	}
	return s.MemoryStore.Put(ctx, owner, name, content)
}

func (s *countingStore) Get(ctx context.Context, owner, name string) ([]byte, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.MemoryStore.Get(ctx, owner, name)
}

func (s *countingStore) List(ctx context.Context, owner string) ([]string, error) {
	s.mu.Lock()
	s.lists++
	s.mu.Unlock()
	return s.MemoryStore.List(ctx, owner)
}

func (s *countingStore) GetURL(context.Context, string, string) (string, error) {
	s.mu.Lock()
	s.urlCalls++
	s.mu.Unlock()
	return "https://example.invalid/deck", nil
}

func newCounting() *countingStore {
	return &countingStore{MemoryStore: docrepo.NewMemoryStore()}
}

func TestCachedStorePutPopulatesBlobCache(t *testing.T) {
	ctx := context.Background()
	origin := newCounting()
	s := NewCachedStore(origin, CacheConfig{})

	tester.NoErr(t, s.Put(ctx, "alice", "deck.pptx", []byte("PK")))
	got, err := s.Get(ctx, "alice", "deck.pptx")
	tester.NoErr(t, err)
	tester.Eq(t, string(got), "PK")
	tester.Eq(t, origin.gets, 0, "get should be served from cache")

	got[0] = 'X'
	again, _ := s.Get(ctx, "alice", "deck.pptx")
	tester.Eq(t, string(again), "PK", "cached bytes must not alias callers")
}

func TestCachedStoreListInvalidatedOnPut(t *testing.T) {
	ctx := context.Background()
	origin := newCounting()
	s := NewCachedStore(origin, CacheConfig{})

	tester.NoErr(t, s.Put(ctx, "bob", "a.pptx", []byte("1")))
	names, err := s.List(ctx, "bob")
	tester.NoErr(t, err)
	tester.Eq(t, names, []string{"a.pptx"})
	_, _ = s.List(ctx, "bob")
	tester.Eq(t, origin.lists, 1)

	tester.NoErr(t, s.Put(ctx, "bob", "b.pptx", []byte("2")))
	names, err = s.List(ctx, "bob")
	tester.NoErr(t, err)
	tester.Eq(t, names, []string{"a.pptx", "b.pptx"})
	tester.Eq(t, origin.lists, 2)
}

func TestCachedStoreMissReadsOriginOnce(t *testing.T) {
	ctx := context.Background()
	origin := newCounting()
	tester.NoErr(t, origin.MemoryStore.Put(ctx, "carol", "x.pptm", []byte("macro")))
	s := NewCachedStore(origin, CacheConfig{})

	for i := 0; i < 3; i++ {
		got, err := s.Get(ctx, "carol", "x.pptm")
		tester.NoErr(t, err)
		tester.Eq(t, string(got), "macro")
	}
	tester.Eq(t, origin.gets, 1)

	st := s.Stats()
	tester.Eq(t, st.Misses, uint64(1))
	tester.Eq(t, st.Hits, uint64(2))
	tester.Eq(t, st.CachedBytes, len("macro"))
}

func TestCachedStoreNotFoundPropagates(t *testing.T) {
	s := NewCachedStore(newCounting(), CacheConfig{})
	_, err := s.Get(context.Background(), "dave", "missing.pptx")
	tester.True(t, errors.Is(err, docrepo.ErrNotFound), err)
	tester.Eq(t, s.Stats().OriginErrors, uint64(1))
}

func TestCachedStoreURLCached(t *testing.T) {
	ctx := context.Background()
	origin := newCounting()
	s := NewCachedStore(origin, CacheConfig{})
	for i := 0; i < 2; i++ {
		u, err := s.GetURL(ctx, "erin", "d.pptx")
		tester.NoErr(t, err)
		tester.Eq(t, u, "https://example.invalid/deck")
	}
	tester.Eq(t, origin.urlCalls, 1)
}

func TestCachedStoreFailedPutLeavesCacheEmpty(t *testing.T) {
	ctx := context.Background()
	origin := newCounting()
	origin.failPut = true
	s := NewCachedStore(origin, CacheConfig{})

	tester.ErrContains(t, s.Put(ctx, "frank", "d.pptx", []byte("1")), "put failed")
	_, err := s.Get(ctx, "frank", "d.pptx")
	tester.True(t, errors.Is(err, docrepo.ErrNotFound), err)
	tester.Eq(t, s.Stats().OriginWrites, uint64(1))
}
