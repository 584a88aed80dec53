package memory

import (
	"testing"
	"time"

	"screendeck/internal/tester"
)

func TestLRUTTLEvictsLeastRecent(t *testing.T) {
	c := NewLRUTTL[string, int](2, 0, time.Minute)
	c.Set("a", 1, 1)
	c.Set("b", 2, 1)
	_, _ = c.Get("a")
	c.Set("c", 3, 1)

	_, ok := c.Get("b")
	tester.False(t, ok, "b should be evicted")
	v, ok := c.Get("a")
	tester.True(t, ok, "a should survive")
	tester.Eq(t, v, 1)
	tester.Eq(t, c.Len(), 2)
}

func TestLRUTTLByteBound(t *testing.T) {
	c := NewLRUTTL[string, []byte](10, 8, time.Minute)
	c.Set("a", make([]byte, 5), 5)
	c.Set("b", make([]byte, 5), 5)
	_, ok := c.Get("a")
	tester.False(t, ok, "a should be evicted by byte bound")
	tester.Eq(t, c.Bytes(), 5)

	c.Set("huge", make([]byte, 9), 9)
	_, ok = c.Get("huge")
	tester.False(t, ok, "oversized value should not be cached")
	tester.Eq(t, c.Bytes(), 5)
}

func TestLRUTTLExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewLRUTTL[string, string](4, 0, time.Second).WithClock(func() time.Time { return now })
	c.Set("k", "v", 1)
	_, ok := c.Get("k")
	tester.True(t, ok, "fresh entry")

	now = now.Add(2 * time.Second)
	_, ok = c.Get("k")
	tester.False(t, ok, "expired entry")
	tester.Eq(t, c.Len(), 0)
}

func TestLRUTTLOverwriteAdjustsBytes(t *testing.T) {
	c := NewLRUTTL[string, string](4, 0, time.Minute)
	c.Set("k", "long value", 10)
	c.Set("k", "v", 1)
	tester.Eq(t, c.Bytes(), 1)
	c.Delete("k")
	tester.Eq(t, c.Bytes(), 0)
	c.Set("x", "y", 1)
	c.Clear()
	tester.Eq(t, c.Len(), 0)
}
