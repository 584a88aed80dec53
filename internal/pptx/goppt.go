package pptx

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	goppt "github.com/VantageDataChat/GoPPT"
)

// defaultFontSize applies to runs that never set a size.
const defaultFontSize = 18

// Styled shapes that leave fill or line unset take the default theme accent.
var (
	accentFill = goppt.NewColor("4472C4")
	accentLine = goppt.NewColor("2F528F")
)

// Document builds the GoPPT presentation for p. A deck without slides
// still carries the one blank slide GoPPT requires.
func (p *Presentation) Document() (doc *goppt.Presentation, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("pptx: build panicked: %v", r)
		}
	}()

	doc = goppt.New()
	doc.GetLayout().SetCustomLayout(int64(p.Width), int64(p.Height))
	if p.Title != "" {
		doc.GetDocumentProperties().Title = p.Title
	}
	for i, s := range p.Slides {
		gs := doc.GetActiveSlide()
		if i > 0 {
			gs = doc.CreateSlide()
		}
		if s.Background != nil {
			bg := goppt.NewFill()
			bg.SetSolid(toColor(*s.Background))
			gs.SetBackground(bg)
		}
		for _, sh := range s.Shapes {
			if err := addShape(gs, sh); err != nil {
				return nil, fmt.Errorf("pptx: slide %d, %s: %w", i+1, sh.Name, err)
			}
		}
	}
	return doc, nil
}

func addShape(gs *goppt.Slide, sh *Shape) error {
	switch sh.Kind {
	case KindPlaceholder:
		ph := gs.CreatePlaceholderShape(goppt.PlaceholderType(sh.PlaceholderType))
		ph.SetPlaceholderIndex(sh.PlaceholderIdx)
		place(&ph.BaseShape, sh)
		writeText(&ph.RichTextShape, sh.Text)
	case KindTextBox:
		addRichText(gs, sh)
	case KindAutoShape:
		if sh.Geometry == "" || sh.Geometry == "rect" {
			addRichText(gs, sh)
			return nil
		}
		// Preset geometries other than rect carry plain text only.
		as := gs.CreateAutoShape()
		as.SetGeometry(goppt.AutoShapeType(sh.Geometry))
		place(&as.BaseShape, sh)
		as.SetFill(shapeFill(sh))
		as.SetBorder(shapeBorder(sh))
		if sh.Text != nil {
			as.SetText(sh.Text.Text())
		}
	case KindConnector:
		addLine(gs, sh)
	case KindPicture:
		if sh.Picture == nil {
			return fmt.Errorf("picture has no image data")
		}
		pic := gs.AddImageData(sh.Picture.Data, sh.Picture.contentType())
		place(&pic.BaseShape, sh)
	case KindTable:
		if sh.Table == nil {
			return fmt.Errorf("table has no cells")
		}
		addTable(gs, sh)
	case KindChart:
		if sh.Chart == nil {
			return fmt.Errorf("chart has no data")
		}
		addChart(gs, sh)
	default:
		return fmt.Errorf("unsupported shape kind %s", sh.Kind)
	}
	return nil
}

func place(b *goppt.BaseShape, sh *Shape) {
	b.SetName(sh.Name)
	b.SetPosition(int64(sh.Left), int64(sh.Top))
	b.SetSize(int64(sh.Width), int64(sh.Height))
	b.SetRotation(int(math.Round(sh.Rotation)))
	b.SetFlipHorizontal(sh.FlipH)
	b.SetFlipVertical(sh.FlipV)
}

func addRichText(gs *goppt.Slide, sh *Shape) {
	rt := gs.CreateRichTextShape()
	place(&rt.BaseShape, sh)
	rt.SetFill(shapeFill(sh))
	rt.SetBorder(shapeBorder(sh))
	writeText(rt, sh.Text)
}

func writeText(rt *goppt.RichTextShape, tf *TextFrame) {
	if tf == nil {
		return
	}
	if tf.WordWrap != nil {
		rt.SetWordWrap(*tf.WordWrap)
	}
	switch tf.AutoSize {
	case AutoSizeNone:
		rt.SetAutoFit(goppt.AutoFitNone)
	case AutoSizeShapeToFit:
		rt.SetAutoFit(goppt.AutoFitShape)
	case AutoSizeTextToFit:
		rt.SetAutoFit(goppt.AutoFitNormal)
	}
	rt.SetTextAnchor(goppt.TextAnchorType(tf.Anchor))
	for i, para := range tf.Paragraphs {
		gp := rt.GetActiveParagraph()
		if i > 0 {
			gp = rt.CreateParagraph()
		}
		writeParagraph(gp, para)
	}
}

func writeParagraph(gp *goppt.Paragraph, para *Paragraph) {
	a := gp.GetAlignment()
	if para.Alignment != AlignUnset {
		a.Horizontal = goppt.HorizontalAlignment(para.Alignment)
	}
	a.Level = para.Level
	for _, r := range para.Runs {
		run := gp.CreateTextRun(r.Text)
		applyFont(run.GetFont(), para.Font.merge(r.Font))
	}
}

func applyFont(f *goppt.Font, src Font) {
	f.Size = defaultFontSize
	if src.Size > 0 {
		f.Size = max(1, int(math.Round(src.Size)))
	}
	f.Bold = src.Bold != nil && *src.Bold
	f.Italic = src.Italic != nil && *src.Italic
	if src.Underline != nil && *src.Underline {
		f.Underline = goppt.UnderlineSingle
	}
	if src.Color != nil {
		f.Color = toColor(*src.Color)
	}
	if src.Name != "" {
		f.Name = src.Name
	}
}

func shapeFill(sh *Shape) *goppt.Fill {
	f := goppt.NewFill()
	switch sh.Fill.Kind {
	case FillSolid:
		f.SetSolid(toColor(sh.Fill.Color))
	case FillUnset:
		if sh.styled {
			f.SetSolid(accentFill)
		}
	}
	return f
}

func shapeBorder(sh *Shape) *goppt.Border {
	b := goppt.NewBorder()
	ln := sh.Line
	switch {
	case ln.NoLine:
		return b
	case ln.Color != nil:
		b.SetSolidFill(toColor(*ln.Color))
	case sh.styled:
		b.SetSolidFill(accentLine)
	default:
		return b
	}
	b.Style = dashStyle(ln.Dash)
	b.Width = int(ln.Width)
	if b.Width <= 0 {
		b.Width = int(EMUPerPoint)
	}
	return b
}

// dashStyle folds DrawingML dash presets onto the styles GoPPT writes.
func dashStyle(dash string) goppt.BorderStyle {
	d := strings.ToLower(dash)
	switch {
	case d == "" || d == "solid":
		return goppt.BorderSolid
	case strings.Contains(d, "dash"):
		return goppt.BorderDash
	case strings.Contains(d, "dot"):
		return goppt.BorderDot
	}
	return goppt.BorderSolid
}

func addLine(gs *goppt.Slide, sh *Shape) {
	ln := gs.CreateLineShape()
	place(&ln.BaseShape, sh)
	ln.SetLineStyle(dashStyle(sh.Line.Dash))
	ln.SetLineWidth(1)
	if sh.Line.Width > 0 {
		ln.SetLineWidth(max(1, int(math.Round(sh.Line.Width.Points()))))
	}
	switch {
	case sh.Line.Color != nil:
		ln.SetLineColor(toColor(*sh.Line.Color))
	case sh.styled:
		ln.SetLineColor(accentLine)
	}
	if sh.Line.HeadArrow != "" {
		ln.SetHeadEnd(arrow(sh.Line.HeadArrow))
	}
	if sh.Line.TailArrow != "" {
		ln.SetTailEnd(arrow(sh.Line.TailArrow))
	}
}

func arrow(kind string) *goppt.LineEnd {
	return &goppt.LineEnd{Type: goppt.ArrowType(kind), Width: goppt.ArrowSizeMed, Length: goppt.ArrowSizeMed}
}

// addTable writes each cell's paragraphs as line breaks in the single
// paragraph GoPPT keeps per cell.
func addTable(gs *goppt.Slide, sh *Shape) {
	t := sh.Table
	tbl := gs.CreateTableShape(t.Rows, t.Cols)
	place(&tbl.BaseShape, sh)
	for r := 0; r < t.Rows; r++ {
		for c := 0; c < t.Cols; c++ {
			src, cell := t.Cells[r][c], tbl.GetCell(r, c)
			if src == nil || cell == nil {
				continue
			}
			if src.Fill.Kind == FillSolid {
				cell.GetFill().SetSolid(toColor(src.Fill.Color))
			}
			if src.Text == nil || len(cell.GetParagraphs()) == 0 {
				continue
			}
			gp := cell.GetParagraphs()[0]
			for i, para := range src.Text.Paragraphs {
				if i > 0 {
					gp.CreateBreak()
				}
				writeParagraph(gp, para)
			}
		}
	}
}

func addChart(gs *goppt.Slide, sh *Shape) {
	c := sh.Chart
	ch := gs.CreateChartShape()
	place(&ch.BaseShape, sh)
	ch.GetTitle().SetText(c.Title).SetVisible(c.Title != "")
	ch.GetLegend().Visible = c.HasLegend

	cats := c.Data.Categories
	if len(cats) == 0 && len(c.Data.Series) > 0 {
		for i := range c.Data.Series[0].Values {
			cats = append(cats, strconv.Itoa(i+1))
		}
	}
	series := make([]*goppt.ChartSeries, 0, len(c.Data.Series))
	for _, s := range c.Data.Series {
		cs := goppt.NewChartSeriesOrdered(s.Name, cats, s.Values)
		if c.Kind.Marker {
			cs.Marker = &goppt.SeriesMarker{Symbol: goppt.MarkerCircle, Size: 5}
		}
		series = append(series, cs)
	}

	switch c.Kind.Elem {
	case "lineChart":
		lc := goppt.NewLineChart()
		for _, s := range series {
			lc.AddSeries(s)
		}
		ch.GetPlotArea().SetType(lc)
	case "areaChart":
		ac := goppt.NewAreaChart()
		for _, s := range series {
			ac.AddSeries(s)
		}
		ch.GetPlotArea().SetType(ac)
	case "pieChart":
		pc := goppt.NewPieChart()
		for _, s := range series {
			pc.AddSeries(s)
		}
		ch.GetPlotArea().SetType(pc)
	case "doughnutChart":
		dc := goppt.NewDoughnutChart()
		for _, s := range series {
			dc.AddSeries(s)
		}
		ch.GetPlotArea().SetType(dc)
	default:
		bc := goppt.NewBarChart()
		if c.Kind.BarDir != "" {
			bc.BarDirection = c.Kind.BarDir
		}
		if c.Kind.Grouping != "" {
			bc.SetBarGrouping(c.Kind.Grouping)
		}
		for _, s := range series {
			bc.AddSeries(s)
		}
		ch.GetPlotArea().SetType(bc)
	}
}

func toColor(c RGB) goppt.Color { return goppt.NewColor(c.Hex()) }
