package pptx

import (
	"fmt"
	"strings"
)

type ShapeKind int

const (
	KindAutoShape ShapeKind = iota
	KindTextBox
	KindConnector
	KindPicture
	KindTable
	KindChart
	KindPlaceholder
)

func (k ShapeKind) String() string {
	switch k {
	case KindAutoShape:
		return "autoshape"
	case KindTextBox:
		return "textbox"
	case KindConnector:
		return "connector"
	case KindPicture:
		return "picture"
	case KindTable:
		return "table"
	case KindChart:
		return "chart"
	case KindPlaceholder:
		return "placeholder"
	}
	return "unknown"
}

type Shape struct {
	ID       int
	Name     string
	Kind     ShapeKind
	Geometry string
	Left     EMU
	Top      EMU
	Width    EMU
	Height   EMU
	Rotation float64
	FlipH    bool
	FlipV    bool

	Fill Fill
	Line Line
	Text *TextFrame

	PlaceholderType string
	PlaceholderIdx  int

	Picture *Picture
	Table   *Table
	Chart   *Chart

	// styled shapes reference theme colors when fill or line are unset.
	styled bool
}

type FillKind int

const (
	FillUnset FillKind = iota
	FillNone
	FillSolid
)

type Fill struct {
	Kind  FillKind
	Color RGB
}

func (f *Fill) Solid(c RGB) {
	f.Kind = FillSolid
	f.Color = c
}

func (f *Fill) None() { f.Kind = FillNone }

// Line styles use DrawingML preset dash names ("dash", "sysDot", ...).
type Line struct {
	Color     *RGB
	Width     EMU
	Dash      string
	NoLine    bool
	HeadArrow string
	TailArrow string
}

type Alignment string

const (
	AlignUnset      Alignment = ""
	AlignLeft       Alignment = "l"
	AlignCenter     Alignment = "ctr"
	AlignRight      Alignment = "r"
	AlignJustify    Alignment = "just"
	AlignDistribute Alignment = "dist"
)

type Font struct {
	Size      float64
	Bold      *bool
	Italic    *bool
	Underline *bool
	Color     *RGB
	Name      string
}

func (f Font) merge(over Font) Font {
	out := f
	if over.Size > 0 {
		out.Size = over.Size
	}
	if over.Bold != nil {
		out.Bold = over.Bold
	}
	if over.Italic != nil {
		out.Italic = over.Italic
	}
	if over.Underline != nil {
		out.Underline = over.Underline
	}
	if over.Color != nil {
		out.Color = over.Color
	}
	if over.Name != "" {
		out.Name = over.Name
	}
	return out
}

type Run struct {
	Text string
	Font Font
}

type Paragraph struct {
	Runs      []*Run
	Alignment Alignment
	Level     int
	// Font applies to runs that leave a property unset.
	Font      Font
}

func (p *Paragraph) AddRun() *Run {
	r := &Run{}
	p.Runs = append(p.Runs, r)
	return r
}

func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// SetText replaces the runs with a single run.
func (p *Paragraph) SetText(s string) {
	p.Runs = []*Run{{Text: s}}
}

type Anchor string

const (
	AnchorUnset  Anchor = ""
	AnchorTop    Anchor = "t"
	AnchorMiddle Anchor = "ctr"
	AnchorBottom Anchor = "b"
)

type AutoSize string

const (
	AutoSizeUnset      AutoSize = ""
	AutoSizeNone       AutoSize = "none"
	AutoSizeShapeToFit AutoSize = "shape"
	AutoSizeTextToFit  AutoSize = "text"
)

type TextFrame struct {
	Paragraphs []*Paragraph
	WordWrap   *bool
	Anchor     Anchor
	AutoSize   AutoSize

	MarginLeft, MarginRight, MarginTop, MarginBottom *EMU
}

// FirstParagraph returns the first paragraph, creating it if needed.
func (tf *TextFrame) FirstParagraph() *Paragraph {
	if len(tf.Paragraphs) == 0 {
		tf.Paragraphs = []*Paragraph{{}}
	}
	return tf.Paragraphs[0]
}

func (tf *TextFrame) AddParagraph() *Paragraph {
	p := &Paragraph{}
	tf.Paragraphs = append(tf.Paragraphs, p)
	return p
}

// SetText replaces all paragraphs; each line becomes a paragraph.
func (tf *TextFrame) SetText(s string) {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	tf.Paragraphs = tf.Paragraphs[:0]
	for _, line := range lines {
		p := &Paragraph{}
		if line != "" {
			p.SetText(line)
		}
		tf.Paragraphs = append(tf.Paragraphs, p)
	}
}

func (tf *TextFrame) Text() string {
	parts := make([]string, 0, len(tf.Paragraphs))
	for _, p := range tf.Paragraphs {
		parts = append(parts, p.Text())
	}
	return strings.Join(parts, "\n")
}

// Clear leaves a single empty paragraph.
func (tf *TextFrame) Clear() {
	tf.Paragraphs = []*Paragraph{{}}
}

type Picture struct {
	Data []byte
	Ext  string
}

func (p *Picture) contentType() string {
	switch p.Ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

type Cell struct {
	Text *TextFrame
	Fill Fill
}

type Table struct {
	Rows       int
	Cols       int
	ColWidths  []EMU
	RowHeights []EMU
	Cells      [][]*Cell
	FirstRow   bool
	BandRow    bool
}

func newTable(rows, cols int, w, h EMU) *Table {
	t := &Table{
		Rows:       rows,
		Cols:       cols,
		ColWidths:  make([]EMU, cols),
		RowHeights: make([]EMU, rows),
		Cells:      make([][]*Cell, rows),
		FirstRow:   true,
		BandRow:    true,
	}
	for c := range t.ColWidths {
		t.ColWidths[c] = w / EMU(cols)
	}
	for r := range t.RowHeights {
		t.RowHeights[r] = h / EMU(rows)
	}
	for r := range t.Cells {
		t.Cells[r] = make([]*Cell, cols)
		for c := range t.Cells[r] {
			t.Cells[r][c] = &Cell{Text: &TextFrame{}}
		}
	}
	return t
}

func (t *Table) Cell(row, col int) (*Cell, error) {
	if row < 0 || row >= t.Rows || col < 0 || col >= t.Cols {
		return nil, fmt.Errorf("pptx: cell (%d, %d) outside %dx%d table", row, col, t.Rows, t.Cols)
	}
	return t.Cells[row][col], nil
}

// ChartKind selects the DrawingML plot element for a chart.
type ChartKind struct {
	Elem     string
	BarDir   string
	Grouping string
	Marker   bool
}

var (
	ChartColumnClustered = ChartKind{Elem: "barChart", BarDir: "col", Grouping: "clustered"}
	ChartColumnStacked   = ChartKind{Elem: "barChart", BarDir: "col", Grouping: "stacked"}
	ChartBarClustered    = ChartKind{Elem: "barChart", BarDir: "bar", Grouping: "clustered"}
	ChartBarStacked      = ChartKind{Elem: "barChart", BarDir: "bar", Grouping: "stacked"}
	ChartLine            = ChartKind{Elem: "lineChart", Grouping: "standard"}
	ChartLineMarkers     = ChartKind{Elem: "lineChart", Grouping: "standard", Marker: true}
	ChartPie             = ChartKind{Elem: "pieChart"}
	ChartDoughnut        = ChartKind{Elem: "doughnutChart"}
	ChartArea            = ChartKind{Elem: "areaChart", Grouping: "standard"}
)

type Series struct {
	Name   string
	Values []float64
}

type ChartData struct {
	Categories []string
	Series     []Series
}

func (d ChartData) validate() error {
	if len(d.Series) == 0 {
		return fmt.Errorf("pptx: chart data has no series")
	}
	for _, s := range d.Series {
		if len(d.Categories) > 0 && len(s.Values) != len(d.Categories) {
			return fmt.Errorf("pptx: series %q has %d values for %d categories", s.Name, len(s.Values), len(d.Categories))
		}
	}
	return nil
}

type Chart struct {
	Kind      ChartKind
	Data      ChartData
	HasLegend bool
	Title     string
}
