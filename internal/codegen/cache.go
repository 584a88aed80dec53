package codegen

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// ScriptCache remembers extracted code per screenshot and collapses
// concurrent generations for the same key. Only successful generations are
// stored, and callers Remove entries whose code then fails to run.
type ScriptCache struct {
	lru   *lru.Cache[string, Script]
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewScriptCache returns nil when size <= 0; a nil cache is never consulted.
func NewScriptCache(size int) (*ScriptCache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, Script](size)
	if err != nil {
		return nil, err
	}
	return &ScriptCache{lru: c}, nil
}

// CacheKey derives the cache key from the image digest and request shape.
func CacheKey(image []byte, provider string, mode Mode, refine bool) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:]) + "|" + provider + "|" + string(mode) + "|" + strconv.FormatBool(refine)
}

// Do returns the cached script for key or runs fn once for all callers.
func (c *ScriptCache) Do(key string, fn func() (Script, error)) (Script, error) {
	if s, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		s.Cached = true
		return s, nil
	}
	c.misses.Add(1)
	v, err, _ := c.group.Do(key, func() (any, error) {
		s, err := fn()
		if err != nil {
			return Script{}, err
		}
		c.lru.Add(key, s)
		return s, nil
	})
	if err != nil {
		return Script{}, err
	}
	return v.(Script), nil
}

// Remove evicts key. The next Do for it counts as a miss.
func (c *ScriptCache) Remove(key string) { c.lru.Remove(key) }

func (c *ScriptCache) Len() int { return c.lru.Len() }

// Stats reports hits and misses since creation.
func (c *ScriptCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
