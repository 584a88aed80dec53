// Package document fronts a document store with in-memory caches for
// recently emitted decks and owner listings.
package document

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	memcache "screendeck/internal/cache/memory"
	docrepo "screendeck/internal/gateway/repository/document"
)

type Store = docrepo.Store

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int
	BlobMaxBytes   int

	ListTTL        time.Duration
	ListMaxEntries int

	// URLTTL should stay below the presign lifetime of the origin.
	URLTTL        time.Duration
	URLMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:        10 * time.Minute,
		BlobMaxEntries: 256,
		BlobMaxBytes:   128 * 1024 * 1024, // 128MiB
		ListTTL:        15 * time.Second,
		ListMaxEntries: 256,
		URLTTL:         30 * time.Minute,
		URLMaxEntries:  512,
	}
}

// withDefaults fills every unset field from DefaultCacheConfig.
func (c CacheConfig) withDefaults() CacheConfig {
	def := DefaultCacheConfig()
	if c.BlobTTL <= 0 {
		c.BlobTTL = def.BlobTTL
	}
	if c.BlobMaxEntries <= 0 {
		c.BlobMaxEntries = def.BlobMaxEntries
	}
	if c.BlobMaxBytes < 0 {
		c.BlobMaxBytes = def.BlobMaxBytes
	}
	if c.ListTTL <= 0 {
		c.ListTTL = def.ListTTL
	}
	if c.ListMaxEntries <= 0 {
		c.ListMaxEntries = def.ListMaxEntries
	}
	if c.URLTTL <= 0 {
		c.URLTTL = def.URLTTL
	}
	if c.URLMaxEntries <= 0 {
		c.URLMaxEntries = def.URLMaxEntries
	}
	return c
}

type Stats struct {
	Hits         uint64
	Misses       uint64
	OriginReads  uint64
	OriginWrites uint64
	OriginErrors uint64
	CachedBytes  int
}

type CachedStore struct {
	origin Store

	blobs *memcache.LRUTTL[string, []byte]
	lists *memcache.LRUTTL[string, []string]
	urls  *memcache.LRUTTL[string, string]

	hits, misses             atomic.Uint64
	originReads, originWrite atomic.Uint64
	originErr                atomic.Uint64
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	cfg = cfg.withDefaults()
	return &CachedStore{
		origin: origin,
		blobs:  memcache.NewLRUTTL[string, []byte](cfg.BlobMaxEntries, cfg.BlobMaxBytes, cfg.BlobTTL),
		lists:  memcache.NewLRUTTL[string, []string](cfg.ListMaxEntries, 0, cfg.ListTTL),
		urls:   memcache.NewLRUTTL[string, string](cfg.URLMaxEntries, 0, cfg.URLTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, owner, name string, content []byte) error {
	s.originWrite.Add(1)
	if err := s.origin.Put(ctx, owner, name, content); err != nil {
		s.originErr.Add(1)
		return err
	}
	key := cacheKey(owner, name)
	copied := append([]byte(nil), content...)
	s.blobs.Set(key, copied, len(copied))
	s.lists.Delete(strings.TrimSpace(owner))
	s.urls.Delete(key)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, owner, name string) ([]byte, error) {
	key := cacheKey(owner, name)
	if raw, ok := s.blobs.Get(key); ok {
		s.hits.Add(1)
		return append([]byte(nil), raw...), nil
	}
	s.misses.Add(1)
	raw, err := s.read(func() ([]byte, error) { return s.origin.Get(ctx, owner, name) })
	if err != nil {
		return nil, err
	}
	s.blobs.Set(key, append([]byte(nil), raw...), len(raw))
	return raw, nil
}

func (s *CachedStore) GetURL(ctx context.Context, owner, name string) (string, error) {
	key := cacheKey(owner, name)
	if u, ok := s.urls.Get(key); ok {
		s.hits.Add(1)
		return u, nil
	}
	s.misses.Add(1)
	s.originReads.Add(1)
	u, err := s.origin.GetURL(ctx, owner, name)
	if err != nil {
		s.originErr.Add(1)
		return "", err
	}
	if strings.TrimSpace(u) != "" {
		s.urls.Set(key, u, len(u))
	}
	return u, nil
}

func (s *CachedStore) List(ctx context.Context, owner string) ([]string, error) {
	owner = strings.TrimSpace(owner)
	if names, ok := s.lists.Get(owner); ok {
		s.hits.Add(1)
		return append([]string(nil), names...), nil
	}
	s.misses.Add(1)
	s.originReads.Add(1)
	names, err := s.origin.List(ctx, owner)
	if err != nil {
		s.originErr.Add(1)
		return nil, err
	}
	size := 0
	for _, n := range names {
		size += len(n)
	}
	s.lists.Set(owner, append([]string(nil), names...), size)
	return names, nil
}

func (s *CachedStore) read(fn func() ([]byte, error)) ([]byte, error) {
	s.originReads.Add(1)
	raw, err := fn()
	if err != nil {
		s.originErr.Add(1)
		return nil, err
	}
	return raw, nil
}

func (s *CachedStore) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		OriginReads:  s.originReads.Load(),
		OriginWrites: s.originWrite.Load(),
		OriginErrors: s.originErr.Load(),
		CachedBytes:  s.blobs.Bytes(),
	}
}

func cacheKey(owner, name string) string {
	return strings.TrimSpace(owner) + "/" + strings.TrimLeft(strings.TrimSpace(name), "/")
}
