package emit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendeck/internal/apperr"
	docrepo "screendeck/internal/gateway/repository/document"
	"screendeck/internal/pptx"
)

var fixed = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func fixedEmitter(opts ...Option) *Emitter {
	base := []Option{WithClock(func() time.Time { return fixed }), WithTags(func() string { return "" })}
	return New(append(base, opts...)...)
}

func deck(t *testing.T) *pptx.Presentation {
	t.Helper()
	p := pptx.New()
	s, err := p.AddSlide(pptx.LayoutBlank)
	require.NoError(t, err)
	run := s.AddTextbox(pptx.Inches(1), pptx.Inches(1), pptx.Inches(4), pptx.Inches(1)).Text.FirstParagraph().AddRun()
	run.Text = "hello"
	return p
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"":          "output",
		"alice":     "alice",
		"a.b c/d":   "a_b_c_d",
		"../../etc": "______etc",
		"ok-name_1": "ok-name_1",
		"日本":        "__",
	}
	allowed := regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	for in, want := range cases {
		got := Sanitize(in)
		assert.Equal(t, want, got, in)
		assert.Regexp(t, allowed, got)
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "alice_20260304_050607.pptx", FileName("alice", FormatPPTX, fixed, ""))
	assert.Equal(t, "output_20260304_050607.bas", FileName("", FormatBAS, fixed, ""))
	assert.Equal(t, "alice_20260304_050607_3f9a.pptx", FileName("alice", FormatPPTX, fixed, "3f9a"))
	assert.Equal(t, "alice_20260304_050607_ab.pptx", FileName("alice", FormatPPTX, fixed, "a/b"))
}

func TestSameSecondNamesDoNotCollide(t *testing.T) {
	store := docrepo.NewMemoryStore()
	e := New(WithStore(store), WithClock(func() time.Time { return fixed }))

	first, err := e.Emit(context.Background(), deck(t), "frank")
	require.NoError(t, err)
	second, err := e.EmitBytes(context.Background(), FormatBAS, []byte("Sub X()\nEnd Sub\n"), "frank")
	require.NoError(t, err)
	third, err := e.Emit(context.Background(), deck(t), "frank")
	require.NoError(t, err)

	assert.NotEqual(t, first.Name, third.Name)
	assert.Regexp(t, `^frank_20260304_050607_[0-9a-f]{8}\.pptx$`, first.Name)
	assert.Regexp(t, `^frank_20260304_050607_[0-9a-f]{8}\.bas$`, second.Name)

	got, err := store.Get(context.Background(), "frank", first.Name)
	require.NoError(t, err)
	assert.Equal(t, first.Data, got)
	names, err := store.List(context.Background(), "frank")
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestEmitWithoutStore(t *testing.T) {
	e := fixedEmitter()
	out, err := e.Emit(context.Background(), deck(t), "bob smith")
	require.NoError(t, err)
	assert.Equal(t, "bob_smith_20260304_050607.pptx", out.Name)
	assert.Equal(t, FormatPPTX.ContentType(), out.ContentType)
	assert.Equal(t, 1, out.Slides)
	assert.False(t, out.Stored)
	assert.False(t, e.Persistent())
}

func TestEmitPersists(t *testing.T) {
	store := docrepo.NewMemoryStore()
	e := fixedEmitter(WithStore(store))
	out, err := e.Emit(context.Background(), deck(t), "carol")
	require.NoError(t, err)
	assert.True(t, out.Stored)

	got, err := store.Get(context.Background(), "carol", out.Name)
	require.NoError(t, err)
	assert.Equal(t, out.Data, got)
}

func TestEmitBytesRejectsBrokenPackage(t *testing.T) {
	_, err := New().EmitBytes(context.Background(), FormatPPTM, []byte("not a zip"), "x")
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestEmitBytesMacroSource(t *testing.T) {
	src := []byte("Sub CreatePresentation()\nEnd Sub\n")
	out, err := fixedEmitter().EmitBytes(context.Background(), FormatBAS, src, "dave")
	require.NoError(t, err)
	assert.Equal(t, "dave_20260304_050607.bas", out.Name)
	assert.Equal(t, "text/plain; charset=utf-8", out.ContentType)
	assert.Equal(t, 0, out.Slides)
}

type failingStore struct{ *docrepo.MemoryStore }

func (failingStore) Put(context.Context, string, string, []byte) error {
	return errors.New("disk full")
}

func TestEmitStoreFailureIsHostError(t *testing.T) {
	e := New(WithStore(failingStore{docrepo.NewMemoryStore()}))
	_, err := e.Emit(context.Background(), deck(t), "erin")
	require.Error(t, err)
	assert.Equal(t, apperr.Host, apperr.KindOf(err))
	assert.Equal(t, 500, apperr.HTTPStatus(err))
}

func TestPreviewRejectsGarbage(t *testing.T) {
	_, err := Preview([]byte("garbage"), 0, 0)
	assert.Error(t, err)
}
