package pptx

import (
	"bytes"
	"image/color"
	"strings"
	"testing"

	"screendeck/internal/tester"

	goppt "github.com/VantageDataChat/GoPPT"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitConversions(t *testing.T) {
	tester.Eq(t, Inches(1), EMU(914400))
	tester.Eq(t, Points(1), EMU(12700))
	tester.Eq(t, Cm(1), EMU(360000))
	assert.InDelta(t, 2.5, Inches(2.5).Inches(), 1e-9)
	assert.InDelta(t, 18, Points(18).Points(), 1e-9)
}

func TestParseRGB(t *testing.T) {
	c, err := ParseRGB("#ff8000")
	tester.NoErr(t, err)
	tester.Eq(t, c, RGB{0xFF, 0x80, 0x00})
	tester.Eq(t, c.Hex(), "FF8000")

	_, err = ParseRGB("zz")
	tester.True(t, err != nil, "expected error for malformed color")
}

func TestAddSlideLayouts(t *testing.T) {
	p := New()
	cases := []struct {
		layout       int
		placeholders int
	}{
		{LayoutTitle, 2},
		{LayoutTitleAndContent, 2},
		{LayoutTitleOnly, 1},
		{LayoutBlank, 0},
		{3, 0},
	}
	for _, c := range cases {
		s, err := p.AddSlide(c.layout)
		tester.NoErr(t, err)
		tester.Eq(t, len(s.Placeholders()), c.placeholders, c.layout)
	}
	_, err := p.AddSlide(LayoutCount)
	tester.True(t, err != nil, "expected out of range error")
	tester.Eq(t, len(p.Slides), 5)
}

func TestBlankSlideOneRectangle(t *testing.T) {
	p := New()
	s, err := p.AddSlide(LayoutBlank)
	require.NoError(t, err)
	sh := s.AddShape("rect", Inches(1), Inches(1), Inches(2), Inches(2))
	sh.Fill.Solid(RGB{R: 255})

	data, err := p.Bytes()
	require.NoError(t, err)

	sum, err := Inspect(data)
	require.NoError(t, err)
	tester.Eq(t, sum.SlideCount(), 1)
	tester.Eq(t, sum.Slides[0].Shapes, 1)
}

func TestSerializeAllShapeKinds(t *testing.T) {
	p := New()
	p.Title = "Quarterly <review>"
	s, err := p.AddSlide(LayoutTitleOnly)
	require.NoError(t, err)
	s.Title().Text.SetText("Revenue & costs")
	s.Background = &RGB{0xF0, 0xF0, 0xF0}

	tb := s.AddTextbox(Inches(1), Inches(2), Inches(3), Inches(1))
	tb.Text.SetText("first\nsecond")
	bold := true
	tb.Text.Paragraphs[0].Runs[0].Font.Bold = &bold
	tb.Text.Paragraphs[1].Alignment = AlignCenter

	ln := s.AddConnector("line", Inches(5), Inches(5), Inches(1), Inches(6))
	ln.Line.Dash = "dash"
	ln.Line.Width = Points(2)

	s.AddPicture(tester.SolidPNG(t, 4, 2, color.White), "png", 4, 2, 0, 0, Inches(1), 0)

	tbl, err := s.AddTable(2, 3, Inches(1), Inches(3), Inches(6), Inches(1))
	require.NoError(t, err)
	cell, err := tbl.Table.Cell(1, 2)
	require.NoError(t, err)
	cell.Text.SetText("x")

	_, err = s.AddChart(ChartColumnClustered, Inches(1), Inches(4), Inches(4), Inches(3), ChartData{
		Categories: []string{"Q1", "Q2"},
		Series:     []Series{{Name: "Sales", Values: []float64{1, 2.5}}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := p.WriteTo(&buf)
	require.NoError(t, err)
	tester.Eq(t, n, int64(buf.Len()))

	sum, err := Inspect(buf.Bytes())
	require.NoError(t, err)
	// The chart is written to its own part and not read back as a shape.
	tester.Eq(t, sum.Slides[0].Shapes, 5)
	joined := strings.Join(sum.Slides[0].Texts, "|")
	assert.Contains(t, joined, "Revenue & costs")
	assert.Contains(t, joined, "first|second")
}

func TestConnectorFlips(t *testing.T) {
	s, err := New().AddSlide(LayoutBlank)
	require.NoError(t, err)
	c := s.AddConnector("line", Inches(3), Inches(1), Inches(1), Inches(2))
	tester.Eq(t, c.Left, Inches(1))
	tester.Eq(t, c.Width, Inches(2))
	tester.True(t, c.FlipH)
	tester.False(t, c.FlipV)
}

func TestPictureKeepsAspect(t *testing.T) {
	s, err := New().AddSlide(LayoutBlank)
	require.NoError(t, err)
	pic := s.AddPicture([]byte{1}, ".PNG", 200, 100, 0, 0, Inches(2), 0)
	tester.Eq(t, pic.Height, Inches(1))
	tester.Eq(t, pic.Picture.Ext, "png")
}

func TestInvalidTableAndChart(t *testing.T) {
	s, err := New().AddSlide(LayoutBlank)
	require.NoError(t, err)
	_, err = s.AddTable(0, 2, 0, 0, Inches(1), Inches(1))
	tester.True(t, err != nil)

	_, err = s.AddChart(ChartPie, 0, 0, Inches(1), Inches(1), ChartData{
		Categories: []string{"a", "b"},
		Series:     []Series{{Name: "s", Values: []float64{1}}},
	})
	tester.ErrContains(t, err, "1 values for 2 categories")
	tester.Eq(t, len(s.Shapes), 0)
}

func TestInspectRejectsGarbage(t *testing.T) {
	_, err := Inspect([]byte("not a zip"))
	assert.ErrorIs(t, err, ErrNotPackage)
}

func TestDocumentMapsShapeKinds(t *testing.T) {
	p := New()
	p.Width, p.Height = Inches(13.333), Inches(7.5)
	s, err := p.AddSlide(LayoutTitleOnly)
	require.NoError(t, err)
	rect := s.AddShape("rect", Inches(1), Inches(1), Inches(2), Inches(1))
	rect.Fill.Solid(RGB{R: 255})
	rect.Text.SetText("boxed")
	rect.Rotation = 30
	oval := s.AddShape("ellipse", Inches(4), Inches(1), Inches(1), Inches(1))
	oval.Text.SetText("round")
	s.AddConnector("line", Inches(1), Inches(3), Inches(5), Inches(3))

	doc, err := p.Document()
	require.NoError(t, err)
	defer doc.Close()
	tester.Eq(t, doc.GetLayout().CX, int64(Inches(13.333)))
	shapes := doc.Slides()[0].GetShapes()
	require.Len(t, shapes, 4)

	_, ok := shapes[0].(*goppt.PlaceholderShape)
	tester.True(t, ok, "title placeholder")
	rt, ok := shapes[1].(*goppt.RichTextShape)
	require.True(t, ok)
	tester.Eq(t, rt.GetFill().Type, goppt.FillSolid)
	tester.Eq(t, rt.GetFill().Color.ARGB, "FFFF0000")
	tester.Eq(t, rt.GetRotation(), 30)
	as, ok := shapes[2].(*goppt.AutoShape)
	require.True(t, ok)
	tester.Eq(t, as.GetAutoShapeType(), goppt.AutoShapeType("ellipse"))
	tester.Eq(t, as.GetText(), "round")
	tester.Eq(t, as.GetFill().Color, accentFill)
	_, ok = shapes[3].(*goppt.LineShape)
	tester.True(t, ok, "connector")
}

func TestEmptyDeckKeepsOneSlide(t *testing.T) {
	data, err := New().Bytes()
	require.NoError(t, err)
	sum, err := Inspect(data)
	require.NoError(t, err)
	tester.Eq(t, sum.SlideCount(), 1)
	tester.Eq(t, sum.ShapeCount(), 0)
}
