package layout

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendeck/internal/pptx"
	"screendeck/internal/tester"
)

type fakeRecognizer struct {
	tokens []Token
	err    error
	seen   image.Image
}

func (f *fakeRecognizer) Recognize(_ context.Context, img image.Image) ([]Token, error) {
	f.seen = img
	return f.tokens, f.err
}

func word(text string, x, y, w, h int, conf float64) Token {
	return Token{Text: text, BBox: image.Rect(x, y, x+w, y+h), Confidence: conf}
}

func TestExtractDropsLowConfidence(t *testing.T) {
	rec := &fakeRecognizer{tokens: []Token{
		word("Revenue", 100, 50, 200, 20, 80),
		word("smudge", 10, 10, 30, 10, 30),
	}}
	els, err := NewExtractor(rec, Params{}).Extract(context.Background(), image.NewRGBA(image.Rect(0, 0, 400, 300)))
	tester.NoErr(t, err)
	require.Len(t, els, 1)
	el := els[0]
	tester.Eq(t, el.Text, "Revenue")
	assert.InDelta(t, 1.0, el.Left, 1e-9)
	assert.InDelta(t, 0.5, el.Top, 1e-9)
	assert.InDelta(t, 2.0, el.Width, 1e-9)
	assert.InDelta(t, 0.2, el.Height, 1e-9)
	assert.InDelta(t, 26.0, el.FontSize, 1e-9)

	gray, ok := rec.seen.(*image.Gray)
	require.True(t, ok, "recognizer should receive the binarized image")
	tester.Eq(t, gray.Bounds().Dx(), 400)
}

func TestElementsKeepsRecognitionOrderAndDropsBlank(t *testing.T) {
	e := NewExtractor(&fakeRecognizer{}, Params{})
	els := e.Elements([]Token{
		word("second", 0, 200, 10, 10, 90),
		word("   ", 0, 0, 10, 10, 99),
		word("first", 0, 0, 10, 10, 90),
		word("edge", 0, 0, 10, 10, 50),
	})
	texts := make([]string, len(els))
	for i, el := range els {
		texts[i] = el.Text
	}
	tester.Eq(t, texts, []string{"second", "first", "edge"})
}

func TestParamsAreTunable(t *testing.T) {
	e := NewExtractor(&fakeRecognizer{}, Params{Scale: 200, FontScale: 2, MinConfidence: 95})
	els := e.Elements([]Token{word("a", 200, 400, 100, 10, 96), word("b", 0, 0, 1, 1, 90)})
	require.Len(t, els, 1)
	assert.InDelta(t, 1.0, els[0].Left, 1e-9)
	assert.InDelta(t, 2.0, els[0].Top, 1e-9)
	assert.InDelta(t, 20.0, els[0].FontSize, 1e-9)
}

func TestExtractZeroElementsIsValid(t *testing.T) {
	els, err := NewExtractor(&fakeRecognizer{}, Params{}).Extract(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	tester.NoErr(t, err)
	tester.Eq(t, len(els), 0)
}

func TestExtractPropagatesEngineError(t *testing.T) {
	_, err := NewExtractor(&fakeRecognizer{err: errors.New("engine down")}, Params{}).Extract(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	tester.ErrContains(t, err, "engine down")
}

func TestPreprocessStretchesAndBinarizes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	// luminance 100, 125 and 150: after stretching 0, 127 and 255.
	img.Set(0, 0, color.Gray{Y: 100})
	img.Set(1, 0, color.Gray{Y: 125})
	img.Set(2, 0, color.Gray{Y: 150})
	out := Preprocess(img, 150)
	tester.Eq(t, out.Pix, []uint8{0, 0, 255})

	out = Preprocess(img, 100)
	tester.Eq(t, out.Pix, []uint8{0, 255, 255})
}

func TestPreprocessFlatImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	out := Preprocess(img, 0)
	for _, v := range out.Pix {
		tester.Eq(t, v, uint8(255))
	}
}

func TestBuildDeck(t *testing.T) {
	p := BuildDeck([]Element{
		{Text: "Title", Left: 1, Top: 0.5, Width: 3, Height: 0.4, FontSize: 26},
		{Text: "body", Left: 1, Top: 1.5, Width: 1, Height: 0.2, FontSize: 13},
	})
	require.Len(t, p.Slides, 1)
	shapes := p.Slides[0].Shapes
	require.Len(t, shapes, 2)
	tester.Eq(t, shapes[0].Left, pptx.Inches(1))
	tester.Eq(t, shapes[0].Kind, pptx.KindTextBox)
	tester.Eq(t, shapes[0].Text.Text(), "Title")
	tester.Eq(t, shapes[0].Text.Paragraphs[0].Runs[0].Font.Size, 26.0)

	data, err := p.Bytes()
	tester.NoErr(t, err)
	sum, err := pptx.Inspect(data)
	tester.NoErr(t, err)
	tester.Eq(t, sum.SlideCount(), 1)
	tester.Eq(t, sum.ShapeCount(), 2)
	tester.Eq(t, sum.Slides[0].Texts, []string{"Title", "body"})
}

func TestBuildDeckEmpty(t *testing.T) {
	p := BuildDeck(nil)
	require.Len(t, p.Slides, 1)
	tester.Eq(t, len(p.Slides[0].Shapes), 0)
}
