package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, Record{Username: "alice", Mode: "script", Filename: fmt.Sprintf("%d.pptx", i)}))
	}
	require.NoError(t, s.Record(ctx, Record{Username: "bob", Mode: "ocr", Status: StatusFailed}))

	got, err := s.Recent(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2.pptx", got[0].Filename)
	assert.Equal(t, "1.pptx", got[1].Filename)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())

	all, err := s.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "bob", all[0].Username)
}

func TestMemoryStoreCapacity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, Record{ID: fmt.Sprint(i), Mode: "script"}))
	}
	got, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "4", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestPrepareKeepsExplicitFields(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := prepare(Record{ID: "fixed", CreatedAt: at})
	assert.Equal(t, "fixed", rec.ID)
	assert.Equal(t, at, rec.CreatedAt)
}

func TestPostgresStoreUninitialized(t *testing.T) {
	s := NewPostgresStore(nil)
	assert.ErrorContains(t, s.Record(context.Background(), Record{}), "not initialized")
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, clampLimit(0))
	assert.Equal(t, DefaultLimit, clampLimit(10000))
	assert.Equal(t, 7, clampLimit(7))
}
