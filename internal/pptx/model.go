package pptx

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Serializer is the capability a finished document exposes.
type Serializer interface {
	WriteTo(w io.Writer) (int64, error)
}

// Default slide size is 4:3 at 10in × 7.5in.
var (
	DefaultWidth  = Inches(10)
	DefaultHeight = Inches(7.5)
)

// Layout indexes follow the default template. Unknown indexes map to Blank.
const (
	LayoutTitle           = 0
	LayoutTitleAndContent = 1
	LayoutTitleOnly       = 5
	LayoutBlank           = 6
)

// LayoutCount is the number of layout slots addressable by index.
const LayoutCount = 11

type Presentation struct {
	Width  EMU
	Height EMU
	Title  string
	Slides []*Slide
}

func New() *Presentation {
	return &Presentation{Width: DefaultWidth, Height: DefaultHeight}
}

// AddSlide appends a slide using the layout at index, adding its placeholders.
func (p *Presentation) AddSlide(layout int) (*Slide, error) {
	if layout < 0 || layout >= LayoutCount {
		return nil, fmt.Errorf("pptx: slide layout index %d out of range", layout)
	}
	s := &Slide{Layout: layout, pres: p, nextID: 2}
	switch layoutKind(layout) {
	case LayoutTitle:
		s.addPlaceholder("ctrTitle", 0, "Title", Inches(0.75), Inches(2.33), p.Width-Inches(1.5), Inches(1.6))
		s.addPlaceholder("subTitle", 1, "Subtitle", Inches(1.5), Inches(4.25), p.Width-Inches(3), Inches(1.9))
	case LayoutTitleAndContent:
		s.addPlaceholder("title", 0, "Title", Inches(0.5), Inches(0.3), p.Width-Inches(1), Inches(1.25))
		s.addPlaceholder("body", 1, "Content Placeholder", Inches(0.5), Inches(1.75), p.Width-Inches(1), p.Height-Inches(2.25))
	case LayoutTitleOnly:
		s.addPlaceholder("title", 0, "Title", Inches(0.5), Inches(0.3), p.Width-Inches(1), Inches(1.25))
	}
	p.Slides = append(p.Slides, s)
	return s, nil
}

// ShapeCount is the number of shapes across all slides.
func (p *Presentation) ShapeCount() int {
	n := 0
	for _, s := range p.Slides {
		n += len(s.Shapes)
	}
	return n
}

// WriteTo serializes the presentation through the GoPPT writer.
func (p *Presentation) WriteTo(w io.Writer) (int64, error) {
	doc, err := p.Document()
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	var buf bytes.Buffer
	if err := doc.WriteTo(&buf); err != nil {
		return 0, fmt.Errorf("pptx: write package: %w", err)
	}
	return buf.WriteTo(w)
}

// Bytes returns the serialized package.
func (p *Presentation) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func layoutKind(layout int) int {
	switch layout {
	case LayoutTitle, LayoutTitleAndContent, LayoutTitleOnly:
		return layout
	default:
		return LayoutBlank
	}
}

type Slide struct {
	Layout     int
	Shapes     []*Shape
	Background *RGB

	pres   *Presentation
	nextID int
}

func (s *Slide) newShape(kind ShapeKind, name string, l, t, w, h EMU) *Shape {
	id := s.nextID
	s.nextID++
	sh := &Shape{
		ID:     id,
		Name:   fmt.Sprintf("%s %d", name, id-1),
		Kind:   kind,
		Left:   l,
		Top:    t,
		Width:  w,
		Height: h,
	}
	s.Shapes = append(s.Shapes, sh)
	return sh
}

func (s *Slide) addPlaceholder(phType string, idx int, name string, l, t, w, h EMU) *Shape {
	sh := s.newShape(KindPlaceholder, name, l, t, w, h)
	sh.PlaceholderType = phType
	sh.PlaceholderIdx = idx
	sh.Text = &TextFrame{}
	return sh
}

// Title returns the title placeholder, if the layout has one.
func (s *Slide) Title() *Shape {
	for _, sh := range s.Shapes {
		if sh.Kind == KindPlaceholder && (sh.PlaceholderType == "title" || sh.PlaceholderType == "ctrTitle") {
			return sh
		}
	}
	return nil
}

// Placeholder returns the placeholder with the given idx.
func (s *Slide) Placeholder(idx int) *Shape {
	for _, sh := range s.Shapes {
		if sh.Kind == KindPlaceholder && sh.PlaceholderIdx == idx {
			return sh
		}
	}
	return nil
}

// Placeholders lists placeholders in document order.
func (s *Slide) Placeholders() []*Shape {
	var out []*Shape
	for _, sh := range s.Shapes {
		if sh.Kind == KindPlaceholder {
			out = append(out, sh)
		}
	}
	return out
}

// AddShape adds an autoshape with a preset geometry such as "rect".
func (s *Slide) AddShape(geometry string, l, t, w, h EMU) *Shape {
	sh := s.newShape(KindAutoShape, geometryName(geometry), l, t, w, h)
	sh.Geometry = geometry
	sh.Text = &TextFrame{}
	sh.styled = true
	return sh
}

func (s *Slide) AddTextbox(l, t, w, h EMU) *Shape {
	sh := s.newShape(KindTextBox, "TextBox", l, t, w, h)
	sh.Geometry = "rect"
	sh.Text = &TextFrame{}
	return sh
}

// AddConnector adds a connector between two points. The bounding box is
// normalized and flips record the direction.
func (s *Slide) AddConnector(geometry string, x1, y1, x2, y2 EMU) *Shape {
	l, w, flipH := span(x1, x2)
	t, h, flipV := span(y1, y2)
	sh := s.newShape(KindConnector, "Connector", l, t, w, h)
	sh.Geometry = geometry
	sh.FlipH = flipH
	sh.FlipV = flipV
	sh.styled = true
	return sh
}

// AddPicture embeds image data. Zero width or height is derived from the
// pixel size at 96 dpi, keeping the aspect ratio when one side is given.
func (s *Slide) AddPicture(data []byte, ext string, pxW, pxH int, l, t, w, h EMU) *Shape {
	nw, nh := EMU(pxW)*EMUPerInch/96, EMU(pxH)*EMUPerInch/96
	switch {
	case w == 0 && h == 0:
		w, h = nw, nh
	case w == 0 && nh > 0:
		w = EMU(int64(h) * int64(nw) / int64(nh))
	case h == 0 && nw > 0:
		h = EMU(int64(w) * int64(nh) / int64(nw))
	}
	sh := s.newShape(KindPicture, "Picture", l, t, w, h)
	sh.Picture = &Picture{Data: append([]byte(nil), data...), Ext: strings.TrimPrefix(strings.ToLower(ext), ".")}
	return sh
}

func (s *Slide) AddTable(rows, cols int, l, t, w, h EMU) (*Shape, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("pptx: table needs at least one row and one column, got %dx%d", rows, cols)
	}
	sh := s.newShape(KindTable, "Table", l, t, w, h)
	sh.Table = newTable(rows, cols, w, h)
	return sh, nil
}

func (s *Slide) AddChart(kind ChartKind, l, t, w, h EMU, data ChartData) (*Shape, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}
	sh := s.newShape(KindChart, "Chart", l, t, w, h)
	sh.Chart = &Chart{Kind: kind, Data: data, HasLegend: len(data.Series) > 1 || kind.Elem == "pieChart"}
	return sh, nil
}

func span(a, b EMU) (start, size EMU, flip bool) {
	if b < a {
		return b, a - b, true
	}
	return a, b - a, false
}

func geometryName(geometry string) string {
	switch geometry {
	case "rect":
		return "Rectangle"
	case "ellipse":
		return "Oval"
	case "roundRect":
		return "Rounded Rectangle"
	default:
		if geometry == "" {
			return "Shape"
		}
		return strings.ToUpper(geometry[:1]) + geometry[1:]
	}
}
