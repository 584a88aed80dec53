package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"screendeck/internal/tester"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	names, err := s.List(ctx, "alice")
	tester.NoErr(t, err)
	tester.Eq(t, len(names), 0)

	tester.NoErr(t, s.Put(ctx, "alice", "b_20260101_000000.pptx", []byte("two")))
	tester.NoErr(t, s.Put(ctx, "alice", "a_20260101_000000.pptx", []byte("one")))
	tester.NoErr(t, s.Put(ctx, "bob", "c.pptx", []byte("three")))

	got, err := s.Get(ctx, "alice", "a_20260101_000000.pptx")
	tester.NoErr(t, err)
	tester.Eq(t, string(got), "one")

	names, err = s.List(ctx, "alice")
	tester.NoErr(t, err)
	tester.Eq(t, names, []string{"a_20260101_000000.pptx", "b_20260101_000000.pptx"})

	tester.NoErr(t, s.Put(ctx, "alice", "a_20260101_000000.pptx", []byte("uno")))
	got, err = s.Get(ctx, "alice", "a_20260101_000000.pptx")
	tester.NoErr(t, err)
	tester.Eq(t, string(got), "uno")

	_, err = s.Get(ctx, "alice", "missing.pptx")
	tester.True(t, errors.Is(err, ErrNotFound), err)

	tester.ErrContains(t, s.Put(ctx, "", "x.pptx", nil), "owner is required")
	tester.ErrContains(t, s.Put(ctx, "alice", " ", nil), "name is required")
	tester.ErrContains(t, s.Put(ctx, "alice", "../x.pptx", nil), "invalid document key")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	s, err := NewFileStore(root)
	tester.NoErr(t, err)
	exerciseStore(t, s)

	raw, err := os.ReadFile(filepath.Join(root, "bob", "c.pptx"))
	tester.NoErr(t, err)
	tester.Eq(t, string(raw), "three")
}

func TestFileStoreSkipsHiddenAndDirs(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root)
	tester.NoErr(t, err)
	tester.NoErr(t, os.MkdirAll(filepath.Join(root, "alice", "nested"), 0o755))
	tester.NoErr(t, os.WriteFile(filepath.Join(root, "alice", ".tmp-123"), []byte("x"), 0o644))
	tester.NoErr(t, s.Put(context.Background(), "alice", "deck.pptx", []byte("x")))

	names, err := s.List(context.Background(), "alice")
	tester.NoErr(t, err)
	tester.Eq(t, names, []string{"deck.pptx"})
}

func TestS3StoreConfigValidation(t *testing.T) {
	_, err := NewS3Store(S3Config{})
	tester.ErrContains(t, err, "endpoint is required")
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000"})
	tester.ErrContains(t, err, "access key")
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	tester.ErrContains(t, err, "bucket is required")

	s, err := NewS3Store(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "decks"})
	tester.NoErr(t, err)
	tester.Eq(t, s.region, "us-east-1")
}

func TestPostgresStoreNilDB(t *testing.T) {
	s := NewPostgresStore(nil)
	tester.ErrContains(t, s.Put(context.Background(), "a", "b.pptx", nil), "db is nil")
}

func TestContentTypeFor(t *testing.T) {
	tester.Eq(t, contentTypeFor("x.pptx"), "application/vnd.openxmlformats-officedocument.presentationml.presentation")
	tester.Eq(t, contentTypeFor("x.pptm"), "application/vnd.ms-powerpoint.presentation.macroEnabled.12")
	tester.Eq(t, contentTypeFor("x.unknownext"), "application/octet-stream")
}
