package codegen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendeck/internal/apperr"
	"screendeck/internal/llm"
	"screendeck/internal/tester"
)

const fenced = "Here you go:\n```python\ndef create_slide():\n    prs = Presentation()\n    return prs\n```\n"

const originalCode = "def create_slide():\n    prs = Presentation()\n    return prs"

var png = []byte("\x89PNG fake bytes")

func registry(m llm.Model) *llm.Registry {
	r := llm.NewRegistry("fake")
	r.Register("fake", m)
	return r
}

func TestGenerateFirstAttempt(t *testing.T) {
	f := llm.FakeText("fake", fenced)
	s, err := New(registry(f)).Generate(context.Background(), Input{Image: png, MIME: "image/png"})
	tester.NoErr(t, err)
	tester.Eq(t, s.Code, originalCode)
	tester.Eq(t, s.Attempts, 1)
	tester.Eq(t, s.Mode, ModeScript)
	tester.Eq(t, s.Provider, "fake")
	tester.False(t, s.Refined)

	req := f.Requests()[0]
	assert.Contains(t, req.System, "def create_slide():")
	assert.Contains(t, req.System, "add_freeform")
	assert.Contains(t, req.System, "build_freeform")
	assert.Equal(t, ScriptSampling, req.Sampling)
	assert.Equal(t, png, req.Image)
	assert.Equal(t, "image/png", req.ImageMIME)
}

func TestGenerateRetriesOnceWithStrictFormat(t *testing.T) {
	f := llm.FakeText("fake", "I think this slide has a title.", fenced)
	s, err := New(registry(f)).Generate(context.Background(), Input{Image: png})
	tester.NoErr(t, err)
	tester.Eq(t, s.Attempts, 2)
	tester.Eq(t, s.Code, originalCode)

	reqs := f.Requests()
	require.Len(t, reqs, 2)
	assert.NotContains(t, reqs[0].User, "previous answer")
	assert.Contains(t, reqs[1].User, "previous answer contained no usable code")
}

func TestGenerateFailureKinds(t *testing.T) {
	cases := []struct {
		name    string
		replies []llm.FakeReply
		kind    apperr.Kind
		msg     string
		calls   int
	}{
		{"no code twice", []llm.FakeReply{{Text: "prose"}, {Text: "more prose"}}, apperr.Extraction, "no valid code generated", 2},
		{"empty twice", []llm.FakeReply{{Text: ""}, {Text: "  "}}, apperr.Generation, "empty response", 2},
		{"empty sentinel", []llm.FakeReply{{Err: llm.ErrEmptyResponse}}, apperr.Generation, "empty response", 2},
		// provider failures are left to the transport retry
		{"provider error", []llm.FakeReply{{Err: errors.New("quota exceeded")}}, apperr.Generation, "quota exceeded", 1},
		{"timeout", []llm.FakeReply{{Err: llm.ErrTimeout}}, apperr.Generation, "provider timed out", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := llm.NewFakeModel("fake", tc.replies...)
			_, err := New(registry(f)).Generate(context.Background(), Input{Image: png})
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tc.msg)
			assert.Equal(t, tc.calls, f.Calls())
		})
	}
}

func TestProviderErrorAfterFormatRetry(t *testing.T) {
	f := llm.NewFakeModel("fake", llm.FakeReply{Text: "prose"}, llm.FakeReply{Err: errors.New("quota exceeded")})
	_, err := New(registry(f)).Generate(context.Background(), Input{Image: png})
	require.Error(t, err)
	tester.Eq(t, apperr.KindOf(err), apperr.Generation)
	tester.ErrContains(t, err, "quota exceeded")
	tester.Eq(t, f.Calls(), 2)
}

func TestGenerateMacroMode(t *testing.T) {
	f := llm.FakeText("fake", "```vb\nSub CreatePresentation()\n  Dim s\nEnd Sub\n```")
	s, err := New(registry(f)).Generate(context.Background(), Input{Image: png, Mode: ModeMacro})
	tester.NoErr(t, err)
	tester.Eq(t, s.Code, "Sub CreatePresentation()\n  Dim s\nEnd Sub")
	req := f.Requests()[0]
	assert.Equal(t, MacroSampling, req.Sampling)
	assert.Contains(t, req.System, "CreatePresentation()")
	assert.Contains(t, req.System, "```vb")
}

func TestGenerateSamplingOverride(t *testing.T) {
	f := llm.FakeText("fake", fenced)
	custom := llm.Sampling{Temperature: 0.3, MaxTokens: 100}
	_, err := New(registry(f), WithSampling(ModeScript, custom)).Generate(context.Background(), Input{Image: png})
	tester.NoErr(t, err)
	tester.Eq(t, f.Requests()[0].Sampling, custom)
}

func TestRefineReplacesCode(t *testing.T) {
	refined := "```python\ndef create_slide():\n    prs = Presentation()\n    prs.slide_width = Inches(13.333)\n    return prs\n```"
	f := llm.FakeText("fake", fenced, refined)
	s, err := New(registry(f)).Generate(context.Background(), Input{Image: png, Refine: true})
	tester.NoErr(t, err)
	tester.True(t, s.Refined)
	assert.Contains(t, s.Code, "Inches(13.333)")
	reqs := f.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[1].User, "Do not change content or logic, only aesthetics")
	assert.Contains(t, reqs[1].User, originalCode)
}

func TestRefineFailureKeepsOriginal(t *testing.T) {
	cases := map[string]llm.FakeReply{
		"no fence":       {Text: "Looks great already!"},
		"provider error": {Err: errors.New("503")},
		"unterminated":   {Text: "```python\ndef create_slide():\n    return 1"},
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			f := llm.NewFakeModel("fake", llm.FakeReply{Text: fenced}, reply)
			s, err := New(registry(f)).Generate(context.Background(), Input{Image: png, Refine: true})
			tester.NoErr(t, err)
			tester.False(t, s.Refined)
			tester.Eq(t, s.Code, originalCode)
		})
	}
}

func TestRefineRejectedByChecker(t *testing.T) {
	bad := "```python\ndef create_slide():\n    slide.shapes.add_freeform()\n```"
	f := llm.FakeText("fake", fenced, bad)
	check := func(_ Mode, code string) error {
		if strings.Contains(code, "add_freeform") {
			return errors.New("forbidden")
		}
		return nil
	}
	s, err := New(registry(f), WithChecker(check)).Generate(context.Background(), Input{Image: png, Refine: true})
	tester.NoErr(t, err)
	tester.False(t, s.Refined)
	tester.Eq(t, s.Code, originalCode)
}

func TestGenerateUnknownProvider(t *testing.T) {
	_, err := New(registry(llm.FakeText("fake", fenced))).Generate(context.Background(), Input{Image: png, Provider: "nope"})
	require.Error(t, err)
	tester.Eq(t, apperr.KindOf(err), apperr.Input)
}

func TestGenerateRequiresImage(t *testing.T) {
	_, err := New(registry(llm.FakeText("fake", fenced))).Generate(context.Background(), Input{})
	tester.Eq(t, apperr.KindOf(err), apperr.Input)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeScript, "Script": ModeScript, " macro ": ModeMacro} {
		got, err := ParseMode(in)
		tester.NoErr(t, err)
		tester.Eq(t, got, want)
	}
	_, err := ParseMode("ocr")
	tester.Eq(t, apperr.KindOf(err), apperr.Input)
}

func TestCacheServesRepeats(t *testing.T) {
	c, err := NewScriptCache(8)
	require.NoError(t, err)
	f := llm.FakeText("fake", fenced)
	g := New(registry(f), WithCache(c))

	first, err := g.Generate(context.Background(), Input{Image: png})
	tester.NoErr(t, err)
	tester.False(t, first.Cached)
	second, err := g.Generate(context.Background(), Input{Image: png})
	tester.NoErr(t, err)
	tester.True(t, second.Cached)
	tester.Eq(t, second.Code, first.Code)
	tester.Eq(t, f.Calls(), 1)

	// a different mode is a different key
	_, err = g.Generate(context.Background(), Input{Image: png, Refine: true})
	tester.NoErr(t, err)
	tester.Eq(t, c.Len(), 2)
	hits, misses := c.Stats()
	tester.Eq(t, hits, int64(1))
	tester.Eq(t, misses, int64(2))
}

func TestCacheSkipsFailures(t *testing.T) {
	c, _ := NewScriptCache(8)
	f := llm.NewFakeModel("fake", llm.FakeReply{Text: "prose"}, llm.FakeReply{Text: "prose"}, llm.FakeReply{Text: fenced})
	g := New(registry(f), WithCache(c))
	_, err := g.Generate(context.Background(), Input{Image: png})
	require.Error(t, err)
	s, err := g.Generate(context.Background(), Input{Image: png})
	tester.NoErr(t, err)
	tester.Eq(t, s.Code, originalCode)
	tester.Eq(t, c.Len(), 1)
}

func TestDiscardEvictsScript(t *testing.T) {
	c, _ := NewScriptCache(8)
	f := llm.FakeText("fake", fenced)
	g := New(registry(f), WithCache(c))

	s, err := g.Generate(context.Background(), Input{Image: png})
	tester.NoErr(t, err)
	tester.Eq(t, c.Len(), 1)
	g.Discard(s)
	tester.Eq(t, c.Len(), 0)

	again, err := g.Generate(context.Background(), Input{Image: png})
	tester.NoErr(t, err)
	tester.False(t, again.Cached)
	tester.Eq(t, f.Calls(), 2)

	// uncached generators and nil scripts are no-ops
	New(registry(f)).Discard(again)
	g.Discard(nil)
	tester.Eq(t, c.Len(), 1)
}

func TestCacheCollapsesConcurrentCalls(t *testing.T) {
	c, _ := NewScriptCache(8)
	m := newGatedModel(llm.FakeText("fake", fenced))
	g := New(registry(m), WithCache(c))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Generate(context.Background(), Input{Image: png})
			assert.NoError(t, err)
		}()
	}
	<-m.start
	close(m.gate)
	wg.Wait()
	assert.GreaterOrEqual(t, m.inner.Calls(), 1)
	assert.Equal(t, 1, c.Len())
}

func TestNilCacheDisabled(t *testing.T) {
	c, err := NewScriptCache(0)
	tester.NoErr(t, err)
	tester.True(t, c == nil)
}

func TestCacheKeyDistinguishesInputs(t *testing.T) {
	base := CacheKey(png, "fake", ModeScript, false)
	assert.NotEqual(t, base, CacheKey(png, "openai", ModeScript, false))
	assert.NotEqual(t, base, CacheKey(png, "fake", ModeMacro, false))
	assert.NotEqual(t, base, CacheKey(png, "fake", ModeScript, true))
	assert.NotEqual(t, base, CacheKey([]byte("other"), "fake", ModeScript, false))
	assert.Equal(t, base, CacheKey(png, "fake", ModeScript, false))
}

type gatedModel struct {
	inner *llm.FakeModel
	gate  chan struct{}
	start chan struct{}
	once  sync.Once
}

func newGatedModel(inner *llm.FakeModel) *gatedModel {
	return &gatedModel{inner: inner, gate: make(chan struct{}), start: make(chan struct{})}
}

func (g *gatedModel) Name() string { return "fake" }
func (g *gatedModel) Close() error { return nil }
func (g *gatedModel) Complete(ctx context.Context, req llm.Request) (string, error) {
	g.once.Do(func() { close(g.start) })
	<-g.gate
	return g.inner.Complete(ctx, req)
}
