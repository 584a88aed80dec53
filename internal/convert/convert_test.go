package convert

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendeck/internal/apperr"
	"screendeck/internal/automation"
	"screendeck/internal/codegen"
	"screendeck/internal/emit"
	"screendeck/internal/gateway/repository/history"
	"screendeck/internal/layout"
	"screendeck/internal/llm"
	"screendeck/internal/pptx"
	"screendeck/internal/sandbox"
	"screendeck/internal/tester"
)

const scriptReply = "```python\n" + `def create_slide():
    prs = Presentation()
    slide = prs.slides.add_slide(prs.slide_layouts[6])
    box = slide.shapes.add_textbox(Inches(1), Inches(1), Inches(4), Inches(1))
    tf = box.text_frame
    tf.text = "Quarterly report"
    return prs
` + "```\n"

const macroReply = "```vb\nSub CreatePresentation()\n    ActivePresentation.Slides.Add 1, 12\nEnd Sub\n```"

type fixture struct {
	model   *llm.FakeModel
	history *history.MemoryStore
	events  []Event
	mu      sync.Mutex
}

func (f *fixture) observe(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fixture) stages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, ev := range f.events {
		if ev.Type == EventStage && ev.Status == "finished" {
			out = append(out, ev.Stage)
		}
	}
	return out
}

func newPipeline(t *testing.T, reply string, opts ...Option) (*Pipeline, *fixture) {
	t.Helper()
	f := &fixture{model: llm.FakeText("fake", reply), history: history.NewMemoryStore(10)}
	reg := llm.NewRegistry("fake")
	reg.Register("fake", f.model)
	opts = append([]Option{WithHistory(f.history)}, opts...)
	return New(codegen.New(reg), sandbox.New(sandbox.Config{}), emit.New(), opts...), f
}

func TestConvertScript(t *testing.T) {
	p, f := newPipeline(t, scriptReply)
	out, err := p.Convert(context.Background(), Request{
		Image:    tester.RedSquareDataURI(t),
		Username: "ann lee",
		Observe:  f.observe,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Name, "ann_lee_"))
	assert.True(t, strings.HasSuffix(out.Name, ".pptx"))
	assert.Equal(t, 1, out.Slides)

	sum, err := pptx.Inspect(out.Data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Quarterly report"}, sum.Slides[0].Texts)
	assert.Equal(t, 1, sum.Slides[0].Shapes)

	assert.Equal(t, []string{"ingest", "generate", "execute", "emit"}, f.stages())
	last := f.events[len(f.events)-1]
	assert.Equal(t, EventDone, last.Type)
	assert.True(t, last.Done)
	assert.Equal(t, out.Name, last.Name)

	var lifecycle []string
	for _, ev := range f.events {
		if ev.Type == EventLifecycle {
			lifecycle = append(lifecycle, ev.Stage)
		}
	}
	assert.Equal(t, []string{"extracted", "validated", "executed", "serialized"}, lifecycle)

	recs, err := f.history.Recent(context.Background(), "ann lee", 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, history.StatusSucceeded, recs[0].Status)
	assert.Equal(t, "fake", recs[0].Provider)
	assert.Equal(t, out.Name, recs[0].Filename)
}

func TestConvertBadImageSkipsProvider(t *testing.T) {
	p, f := newPipeline(t, scriptReply)
	_, err := p.Convert(context.Background(), Request{Image: "data:image/png;base64,!!!"})
	require.Error(t, err)
	assert.Equal(t, apperr.Input, apperr.KindOf(err))
	assert.Equal(t, 0, f.model.Calls())

	recs, _ := f.history.Recent(context.Background(), "", 5)
	require.Len(t, recs, 1)
	assert.Equal(t, history.StatusFailed, recs[0].Status)
	assert.Equal(t, "input", recs[0].ErrorKind)
}

func TestConvertMissingImage(t *testing.T) {
	p, f := newPipeline(t, scriptReply)
	_, err := p.Convert(context.Background(), Request{Observe: f.observe})
	tester.ErrContains(t, err, "no image provided")
	last := f.events[len(f.events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.True(t, last.Done)
	assert.Equal(t, "no image provided", last.Error)
}

func TestConvertUnsupportedMode(t *testing.T) {
	p, _ := newPipeline(t, scriptReply)
	_, err := p.Convert(context.Background(), Request{Image: tester.RedSquareDataURI(t), Mode: "flash"})
	require.Error(t, err)
	assert.Equal(t, 400, apperr.HTTPStatus(err))
}

func TestConvertValidationFailure(t *testing.T) {
	reply := "```python\ndef create_slide():\n    prs = Presentation()\n    s = prs.slides.add_slide(prs.slide_layouts[6])\n    s.shapes.build_freeform(0, 0)\n    return prs\n```"
	p, f := newPipeline(t, reply)
	_, err := p.Convert(context.Background(), Request{Image: tester.RedSquareDataURI(t), Observe: f.observe})
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	var failed bool
	for _, ev := range f.events {
		if ev.Type == EventLifecycle && ev.Stage == "failed" {
			failed = true
		}
	}
	assert.True(t, failed)
}

func TestConvertDoesNotReplayFailedScript(t *testing.T) {
	bad := "```python\ndef create_slide():\n    prs = Presentation()\n    s = prs.slides.add_slide(prs.slide_layouts[6])\n    s.shapes.build_freeform(0, 0)\n    return prs\n```"
	model := llm.FakeText("fake", bad, scriptReply)
	reg := llm.NewRegistry("fake")
	reg.Register("fake", model)
	cache, err := codegen.NewScriptCache(8)
	require.NoError(t, err)
	p := New(codegen.New(reg, codegen.WithCache(cache)), sandbox.New(sandbox.Config{}), emit.New())

	req := Request{Image: tester.RedSquareDataURI(t)}
	_, err = p.Convert(context.Background(), req)
	require.Error(t, err)
	tester.Eq(t, cache.Len(), 0)

	out, err := p.Convert(context.Background(), req)
	require.NoError(t, err)
	tester.Eq(t, out.Slides, 1)
	tester.Eq(t, model.Calls(), 2)
	tester.Eq(t, cache.Len(), 1)

	// the working script is now served from the cache
	_, err = p.Convert(context.Background(), req)
	require.NoError(t, err)
	tester.Eq(t, model.Calls(), 2)
}

func TestConvertIgnoresCallerCancellation(t *testing.T) {
	p, _ := newPipeline(t, scriptReply)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Convert(ctx, Request{Image: tester.RedSquareDataURI(t)})
	require.NoError(t, err)
}

func TestConvertMacroWithoutHostReturnsSource(t *testing.T) {
	p, _ := newPipeline(t, macroReply)
	out, err := p.Convert(context.Background(), Request{Image: tester.RedSquareDataURI(t), Mode: "macro", Username: "vb"})
	require.NoError(t, err)
	assert.Equal(t, emit.FormatBAS, out.Format)
	assert.Contains(t, string(out.Data), "Sub CreatePresentation()")
}

type fakeHost struct {
	calls []string
	deck  []byte
	fail  error
}

func (h *fakeHost) Start(context.Context) error { h.calls = append(h.calls, "start"); return nil }
func (h *fakeHost) NewDocument(context.Context) error {
	h.calls = append(h.calls, "new")
	return nil
}
func (h *fakeHost) InjectModule(_ context.Context, name, _ string) error {
	h.calls = append(h.calls, "inject:"+name)
	return nil
}
func (h *fakeHost) RunProcedure(_ context.Context, q string) error {
	h.calls = append(h.calls, "run:"+q)
	return h.fail
}
func (h *fakeHost) SaveAs(context.Context, string, int) ([]byte, error) {
	h.calls = append(h.calls, "save")
	return h.deck, nil
}
func (h *fakeHost) Close(context.Context) error { h.calls = append(h.calls, "close"); return nil }
func (h *fakeHost) Quit(context.Context) error  { h.calls = append(h.calls, "quit"); return nil }

func TestConvertMacroOnHost(t *testing.T) {
	deck := pptx.New()
	_, err := deck.AddSlide(pptx.LayoutBlank)
	require.NoError(t, err)
	data, err := deck.Bytes()
	require.NoError(t, err)

	host := &fakeHost{deck: data}
	p, f := newPipeline(t, macroReply, WithAutomation(func() automation.Host { return host }))
	out, err := p.Convert(context.Background(), Request{Image: tester.RedSquareDataURI(t), Mode: "macro", Observe: f.observe})
	require.NoError(t, err)
	assert.Equal(t, emit.FormatPPTM, out.Format)
	assert.Equal(t, "application/vnd.ms-powerpoint.presentation.macroEnabled.12", out.ContentType)
	assert.Equal(t, []string{"start", "new", "inject:MyModule", "run:MyModule.CreatePresentation", "save", "close", "quit"}, host.calls)
	assert.Equal(t, []string{"ingest", "generate", "automation", "emit"}, f.stages())
}

func TestConvertMacroError(t *testing.T) {
	host := &fakeHost{fail: &automation.MacroError{Message: "Compile error"}}
	p, _ := newPipeline(t, macroReply, WithAutomation(func() automation.Host { return host }))
	_, err := p.Convert(context.Background(), Request{Image: tester.RedSquareDataURI(t), Mode: "macro"})
	require.Error(t, err)
	assert.Equal(t, apperr.Execution, apperr.KindOf(err))
	assert.Equal(t, "quit", host.calls[len(host.calls)-1])
}

type fakeRecognizer struct {
	tokens []layout.Token
	err    error
}

func (r fakeRecognizer) Recognize(context.Context, image.Image) ([]layout.Token, error) {
	return r.tokens, r.err
}

func TestConvertOCR(t *testing.T) {
	rec := fakeRecognizer{tokens: []layout.Token{
		{Text: "Title", BBox: image.Rect(100, 100, 300, 130), Confidence: 91},
		{Text: "noise", BBox: image.Rect(0, 0, 5, 5), Confidence: 12},
	}}
	p, f := newPipeline(t, scriptReply, WithOCR(layout.NewExtractor(rec, layout.Params{})))
	out, err := p.Convert(context.Background(), Request{Image: tester.RedSquareDataURI(t), Mode: "ocr", Observe: f.observe})
	require.NoError(t, err)
	assert.Equal(t, 0, f.model.Calls())
	assert.Equal(t, []string{"ingest", "ocr", "emit"}, f.stages())

	sum, err := pptx.Inspect(out.Data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Title"}, sum.Slides[0].Texts)
}

func TestConvertOCRUnavailable(t *testing.T) {
	p, _ := newPipeline(t, scriptReply)
	_, err := p.Convert(context.Background(), Request{Image: tester.RedSquareDataURI(t), Mode: "ocr"})
	require.Error(t, err)
	assert.Equal(t, 500, apperr.HTTPStatus(err))
}

func TestConvertOCREngineFailure(t *testing.T) {
	rec := fakeRecognizer{err: errors.New("tesseract crashed")}
	p, _ := newPipeline(t, scriptReply, WithOCR(layout.NewExtractor(rec, layout.Params{})))
	_, err := p.Convert(context.Background(), Request{Image: tester.RedSquareDataURI(t), Mode: "ocr"})
	require.Error(t, err)
	assert.Equal(t, apperr.Host, apperr.KindOf(err))
}

func TestConvertRefineDefault(t *testing.T) {
	p, f := newPipeline(t, scriptReply, WithRefineDefault(true))
	_, err := p.Convert(context.Background(), Request{Image: tester.RedSquareDataURI(t)})
	require.NoError(t, err)
	assert.Equal(t, 2, f.model.Calls())

	off := false
	p, f = newPipeline(t, scriptReply, WithRefineDefault(true))
	_, err = p.Convert(context.Background(), Request{Image: tester.RedSquareDataURI(t), Refine: &off})
	require.NoError(t, err)
	assert.Equal(t, 1, f.model.Calls())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" OCR ")
	require.NoError(t, err)
	assert.Equal(t, ModeOCR, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeScript, m)
}
