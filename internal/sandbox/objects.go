package sandbox

import "screendeck/internal/pptx"

type shapeObj struct {
	p  *pptx.Presentation
	sh *pptx.Shape
}

func (o *shapeObj) TypeName() string {
	switch o.sh.Kind {
	case pptx.KindConnector:
		return "Connector"
	case pptx.KindPicture:
		return "Picture"
	case pptx.KindTable, pptx.KindChart:
		return "GraphicFrame"
	case pptx.KindPlaceholder:
		return "SlidePlaceholder"
	}
	return "Shape"
}

func (o *shapeObj) GetAttr(name string) (Value, bool, error) {
	sh := o.sh
	switch name {
	case "name":
		return sh.Name, true, nil
	case "shape_id":
		return int64(sh.ID), true, nil
	case "left":
		return Length(sh.Left), true, nil
	case "top":
		return Length(sh.Top), true, nil
	case "width":
		return Length(sh.Width), true, nil
	case "height":
		return Length(sh.Height), true, nil
	case "rotation":
		return sh.Rotation, true, nil
	case "is_placeholder":
		return sh.Kind == pptx.KindPlaceholder, true, nil
	case "has_text_frame":
		return sh.Text != nil, true, nil
	case "has_table":
		return sh.Table != nil, true, nil
	case "has_chart":
		return sh.Chart != nil, true, nil
	case "begin_x", "begin_y", "end_x", "end_y":
		if sh.Kind != pptx.KindConnector {
			return nil, false, nil
		}
		x1, y1, x2, y2 := endpoints(sh)
		return Length(map[string]pptx.EMU{"begin_x": x1, "begin_y": y1, "end_x": x2, "end_y": y2}[name]), true, nil
	case "fill":
		if sh.Kind == pptx.KindTable || sh.Kind == pptx.KindChart {
			return nil, false, nil
		}
		return &fillObj{get: func() pptx.Fill { return sh.Fill }, set: func(f pptx.Fill) { sh.Fill = f }}, true, nil
	case "line":
		if sh.Kind == pptx.KindTable || sh.Kind == pptx.KindChart {
			return nil, false, nil
		}
		return &lineObj{l: &sh.Line}, true, nil
	case "text_frame":
		if sh.Text == nil {
			return nil, false, nil
		}
		return &textFrameObj{tf: sh.Text}, true, nil
	case "text":
		if sh.Text == nil {
			return nil, false, nil
		}
		return sh.Text.Text(), true, nil
	case "table":
		if sh.Table == nil {
			return nil, false, nil
		}
		return &tableObj{t: sh.Table}, true, nil
	case "chart":
		if sh.Chart == nil {
			return nil, false, nil
		}
		return &chartObj{c: sh.Chart}, true, nil
	}
	return nil, false, nil
}

func (o *shapeObj) SetAttr(name string, v Value) error {
	sh := o.sh
	switch name {
	case "name":
		s, err := toString(v, "name")
		if err != nil {
			return err
		}
		sh.Name = s
		return nil
	case "rotation":
		f, err := toFloat(v, "rotation")
		if err != nil {
			return err
		}
		sh.Rotation = f
		return nil
	case "text":
		if sh.Text == nil {
			return noAttr(o.TypeName(), name)
		}
		s, err := toString(v, "text")
		if err != nil {
			return err
		}
		sh.Text.SetText(s)
		return nil
	case "left", "top", "width", "height":
		e, err := emuArg(v, name)
		if err != nil {
			return err
		}
		switch name {
		case "left":
			sh.Left = e
		case "top":
			sh.Top = e
		case "width":
			sh.Width = e
		default:
			sh.Height = e
		}
		return nil
	case "begin_x", "begin_y", "end_x", "end_y":
		if sh.Kind != pptx.KindConnector {
			return noAttr(o.TypeName(), name)
		}
		e, err := emuArg(v, name)
		if err != nil {
			return err
		}
		x1, y1, x2, y2 := endpoints(sh)
		switch name {
		case "begin_x":
			x1 = e
		case "begin_y":
			y1 = e
		case "end_x":
			x2 = e
		default:
			y2 = e
		}
		setEndpoints(sh, x1, y1, x2, y2)
		return nil
	}
	return readOnly(o.TypeName(), name)
}

func endpoints(sh *pptx.Shape) (x1, y1, x2, y2 pptx.EMU) {
	x1, x2 = sh.Left, sh.Left+sh.Width
	y1, y2 = sh.Top, sh.Top+sh.Height
	if sh.FlipH {
		x1, x2 = x2, x1
	}
	if sh.FlipV {
		y1, y2 = y2, y1
	}
	return x1, y1, x2, y2
}

func setEndpoints(sh *pptx.Shape, x1, y1, x2, y2 pptx.EMU) {
	sh.Left, sh.Width, sh.FlipH = x1, x2-x1, false
	if x2 < x1 {
		sh.Left, sh.Width, sh.FlipH = x2, x1-x2, true
	}
	sh.Top, sh.Height, sh.FlipV = y1, y2-y1, false
	if y2 < y1 {
		sh.Top, sh.Height, sh.FlipV = y2, y1-y2, true
	}
}

// fillObj edits a fill through accessors so slide backgrounds and cells
// can share it.
type fillObj struct {
	get func() pptx.Fill
	set func(pptx.Fill)
}

func (*fillObj) TypeName() string { return "FillFormat" }

func (o *fillObj) GetAttr(name string) (Value, bool, error) {
	switch name {
	case "solid":
		return method(name, func(a Args) (Value, error) {
			if _, err := bindArgs(name, a); err != nil {
				return nil, err
			}
			f := o.get()
			f.Kind = pptx.FillSolid
			o.set(f)
			return None, nil
		}), true, nil
	case "background":
		return method(name, func(a Args) (Value, error) {
			if _, err := bindArgs(name, a); err != nil {
				return nil, err
			}
			o.set(pptx.Fill{Kind: pptx.FillNone})
			return None, nil
		}), true, nil
	case "fore_color":
		return &colorObj{
			get: func() *pptx.RGB {
				if f := o.get(); f.Kind == pptx.FillSolid {
					return &f.Color
				}
				return nil
			},
			set: func(c pptx.RGB) { o.set(pptx.Fill{Kind: pptx.FillSolid, Color: c}) },
		}, true, nil
	case "type":
		return fillTypeMember(o.get().Kind), true, nil
	}
	return nil, false, nil
}

type colorObj struct {
	get func() *pptx.RGB
	set func(pptx.RGB)
}

func (*colorObj) TypeName() string { return "ColorFormat" }

func (o *colorObj) GetAttr(name string) (Value, bool, error) {
	if name == "rgb" {
		return rgbValue(o.get()), true, nil
	}
	return nil, false, nil
}

func (o *colorObj) SetAttr(name string, v Value) error {
	if name != "rgb" {
		return readOnly("ColorFormat", name)
	}
	c, err := rgbArg(v)
	if err != nil {
		return err
	}
	o.set(c)
	return nil
}

type lineObj struct{ l *pptx.Line }

func (*lineObj) TypeName() string { return "LineFormat" }

func (o *lineObj) GetAttr(name string) (Value, bool, error) {
	l := o.l
	switch name {
	case "color":
		return &colorObj{get: func() *pptx.RGB { return l.Color }, set: o.setColor}, true, nil
	case "width":
		return Length(l.Width), true, nil
	case "dash_style":
		for _, m := range dashStyles.Members {
			if m.Value == l.Dash {
				return m, true, nil
			}
		}
		return None, true, nil
	case "fill":
		return &fillObj{
			get: func() pptx.Fill {
				switch {
				case l.NoLine:
					return pptx.Fill{Kind: pptx.FillNone}
				case l.Color != nil:
					return pptx.Fill{Kind: pptx.FillSolid, Color: *l.Color}
				}
				return pptx.Fill{}
			},
			set: func(f pptx.Fill) {
				if f.Kind == pptx.FillNone {
					l.NoLine = true
					return
				}
				o.setColor(f.Color)
			},
		}, true, nil
	}
	return nil, false, nil
}

func (o *lineObj) setColor(c pptx.RGB) {
	o.l.Color = &c
	o.l.NoLine = false
}

func (o *lineObj) SetAttr(name string, v Value) error {
	switch name {
	case "width":
		e, err := emuArg(v, name)
		if err != nil {
			return err
		}
		o.l.Width = e
		return nil
	case "dash_style":
		if !given(v) {
			o.l.Dash = ""
			return nil
		}
		m, err := memberArg(v, dashStyles, name)
		if err != nil {
			return err
		}
		o.l.Dash = m.Value.(string)
		return nil
	}
	return readOnly("LineFormat", name)
}

type textFrameObj struct{ tf *pptx.TextFrame }

func (*textFrameObj) TypeName() string { return "TextFrame" }

func (o *textFrameObj) GetAttr(name string) (Value, bool, error) {
	tf := o.tf
	switch name {
	case "text":
		return tf.Text(), true, nil
	case "paragraphs":
		tf.FirstParagraph()
		out := make(Tuple, len(tf.Paragraphs))
		for i, p := range tf.Paragraphs {
			out[i] = &paragraphObj{p: p}
		}
		return out, true, nil
	case "add_paragraph":
		return method(name, func(a Args) (Value, error) {
			if _, err := bindArgs(name, a); err != nil {
				return nil, err
			}
			tf.FirstParagraph()
			return &paragraphObj{p: tf.AddParagraph()}, nil
		}), true, nil
	case "clear":
		return method(name, func(a Args) (Value, error) {
			tf.Clear()
			return None, nil
		}), true, nil
	case "word_wrap":
		return boolValue(tf.WordWrap), true, nil
	case "auto_size":
		return memberFor(autoSizes, tf.AutoSize), true, nil
	case "vertical_anchor":
		return memberFor(anchors, tf.Anchor), true, nil
	case "margin_left", "margin_right", "margin_top", "margin_bottom":
		if m := *o.margin(name); m != nil {
			return Length(*m), true, nil
		}
		return Length(defaultMargin(name)), true, nil
	}
	return nil, false, nil
}

func (o *textFrameObj) SetAttr(name string, v Value) error {
	tf := o.tf
	switch name {
	case "text":
		s, err := toString(v, name)
		if err != nil {
			return err
		}
		tf.SetText(s)
		return nil
	case "word_wrap":
		b, err := optBool(v, name)
		if err != nil {
			return err
		}
		tf.WordWrap = b
		return nil
	case "auto_size":
		if !given(v) {
			tf.AutoSize = ""
			return nil
		}
		m, err := memberArg(v, autoSizes, name)
		if err != nil {
			return err
		}
		tf.AutoSize = m.Value.(pptx.AutoSize)
		return nil
	case "vertical_anchor":
		if !given(v) {
			tf.Anchor = ""
			return nil
		}
		m, err := memberArg(v, anchors, name)
		if err != nil {
			return err
		}
		tf.Anchor = m.Value.(pptx.Anchor)
		return nil
	case "margin_left", "margin_right", "margin_top", "margin_bottom":
		e, err := emuArg(v, name)
		if err != nil {
			return err
		}
		*o.margin(name) = &e
		return nil
	}
	return readOnly("TextFrame", name)
}

func (o *textFrameObj) margin(name string) **pptx.EMU {
	switch name {
	case "margin_left":
		return &o.tf.MarginLeft
	case "margin_right":
		return &o.tf.MarginRight
	case "margin_top":
		return &o.tf.MarginTop
	}
	return &o.tf.MarginBottom
}

func defaultMargin(name string) pptx.EMU {
	if name == "margin_left" || name == "margin_right" {
		return 91440
	}
	return 45720
}

// memberFor finds the member of e whose value is v, or None.
func memberFor[T comparable](e *Enum, v T) Value {
	for _, m := range e.Members {
		if x, ok := m.Value.(T); ok && x == v {
			return m
		}
	}
	return None
}

type paragraphObj struct{ p *pptx.Paragraph }

func (*paragraphObj) TypeName() string { return "_Paragraph" }

func (o *paragraphObj) GetAttr(name string) (Value, bool, error) {
	p := o.p
	switch name {
	case "text":
		return p.Text(), true, nil
	case "runs":
		out := make(Tuple, len(p.Runs))
		for i, r := range p.Runs {
			out[i] = &runObj{r: r}
		}
		return out, true, nil
	case "add_run":
		return method(name, func(a Args) (Value, error) {
			if _, err := bindArgs(name, a); err != nil {
				return nil, err
			}
			return &runObj{r: p.AddRun()}, nil
		}), true, nil
	case "alignment":
		return memberFor(alignments, p.Alignment), true, nil
	case "level":
		return int64(p.Level), true, nil
	case "font":
		return &fontObj{f: &p.Font}, true, nil
	}
	return nil, false, nil
}

func (o *paragraphObj) SetAttr(name string, v Value) error {
	switch name {
	case "text":
		s, err := toString(v, name)
		if err != nil {
			return err
		}
		o.p.SetText(s)
		return nil
	case "alignment":
		if !given(v) {
			o.p.Alignment = pptx.AlignUnset
			return nil
		}
		m, err := memberArg(v, alignments, name)
		if err != nil {
			return err
		}
		o.p.Alignment = m.Value.(pptx.Alignment)
		return nil
	case "level":
		n, err := toInt(v, name)
		if err != nil {
			return err
		}
		if n < 0 || n > 8 {
			return valueErrorf("level must be in range 0-8, got %d", n)
		}
		o.p.Level = int(n)
		return nil
	}
	return readOnly("_Paragraph", name)
}

type runObj struct{ r *pptx.Run }

func (*runObj) TypeName() string { return "_Run" }

func (o *runObj) GetAttr(name string) (Value, bool, error) {
	switch name {
	case "text":
		return o.r.Text, true, nil
	case "font":
		return &fontObj{f: &o.r.Font}, true, nil
	}
	return nil, false, nil
}

func (o *runObj) SetAttr(name string, v Value) error {
	if name != "text" {
		return readOnly("_Run", name)
	}
	s, err := toString(v, name)
	if err != nil {
		return err
	}
	o.r.Text = s
	return nil
}

type fontObj struct{ f *pptx.Font }

func (*fontObj) TypeName() string { return "Font" }

func (o *fontObj) GetAttr(name string) (Value, bool, error) {
	f := o.f
	switch name {
	case "size":
		if f.Size == 0 {
			return None, true, nil
		}
		return Length(pptx.Points(f.Size)), true, nil
	case "bold":
		return boolValue(f.Bold), true, nil
	case "italic":
		return boolValue(f.Italic), true, nil
	case "underline":
		return boolValue(f.Underline), true, nil
	case "name":
		if f.Name == "" {
			return None, true, nil
		}
		return f.Name, true, nil
	case "color":
		return &colorObj{get: func() *pptx.RGB { return f.Color }, set: func(c pptx.RGB) { f.Color = &c }}, true, nil
	}
	return nil, false, nil
}

func (o *fontObj) SetAttr(name string, v Value) error {
	f := o.f
	switch name {
	case "size":
		if !given(v) {
			f.Size = 0
			return nil
		}
		e, err := emuArg(v, name)
		if err != nil {
			return err
		}
		if e <= 0 {
			return valueErrorf("font size must be positive")
		}
		f.Size = e.Points()
		return nil
	case "bold", "italic", "underline":
		b, err := optBool(v, name)
		if err != nil {
			return err
		}
		switch name {
		case "bold":
			f.Bold = b
		case "italic":
			f.Italic = b
		default:
			f.Underline = b
		}
		return nil
	case "name":
		if !given(v) {
			f.Name = ""
			return nil
		}
		s, err := toString(v, name)
		if err != nil {
			return err
		}
		f.Name = s
		return nil
	}
	return readOnly("Font", name)
}

type tableObj struct{ t *pptx.Table }

func (*tableObj) TypeName() string { return "Table" }

func (o *tableObj) GetAttr(name string) (Value, bool, error) {
	t := o.t
	switch name {
	case "cell":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "row_idx", "col_idx")
			if err != nil {
				return nil, err
			}
			r, err := toInt(v[0], "row_idx")
			if err != nil {
				return nil, err
			}
			c, err := toInt(v[1], "col_idx")
			if err != nil {
				return nil, err
			}
			cell, err := t.Cell(int(r), int(c))
			if err != nil {
				return nil, indexErrorf("%v", err)
			}
			return &cellObj{c: cell}, nil
		}), true, nil
	case "rows":
		return &rowsObj{t: t}, true, nil
	case "columns":
		return &columnsObj{t: t}, true, nil
	case "first_row":
		return t.FirstRow, true, nil
	case "horz_banding":
		return t.BandRow, true, nil
	}
	return nil, false, nil
}

func (o *tableObj) SetAttr(name string, v Value) error {
	switch name {
	case "first_row":
		o.t.FirstRow = truthy(v)
	case "horz_banding":
		o.t.BandRow = truthy(v)
	default:
		return readOnly("Table", name)
	}
	return nil
}

type rowsObj struct{ t *pptx.Table }

func (*rowsObj) TypeName() string { return "_RowCollection" }

func (o *rowsObj) GetIndex(k Value) (Value, error) {
	i, err := seqIndex(k, o.t.Rows, "row")
	if err != nil {
		return nil, err
	}
	return &rowObj{t: o.t, i: i}, nil
}

func (o *rowsObj) Items() []Value {
	out := make([]Value, o.t.Rows)
	for i := range out {
		out[i] = &rowObj{t: o.t, i: i}
	}
	return out
}

type rowObj struct {
	t *pptx.Table
	i int
}

func (*rowObj) TypeName() string { return "_Row" }

func (o *rowObj) GetAttr(name string) (Value, bool, error) {
	switch name {
	case "height":
		return Length(o.t.RowHeights[o.i]), true, nil
	case "cells":
		out := make(Tuple, o.t.Cols)
		for c := range out {
			out[c] = &cellObj{c: o.t.Cells[o.i][c]}
		}
		return out, true, nil
	}
	return nil, false, nil
}

func (o *rowObj) SetAttr(name string, v Value) error {
	if name != "height" {
		return readOnly("_Row", name)
	}
	e, err := emuArg(v, name)
	if err != nil {
		return err
	}
	o.t.RowHeights[o.i] = e
	return nil
}

type columnsObj struct{ t *pptx.Table }

func (*columnsObj) TypeName() string { return "_ColumnCollection" }

func (o *columnsObj) GetIndex(k Value) (Value, error) {
	i, err := seqIndex(k, o.t.Cols, "column")
	if err != nil {
		return nil, err
	}
	return &columnObj{t: o.t, i: i}, nil
}

func (o *columnsObj) Items() []Value {
	out := make([]Value, o.t.Cols)
	for i := range out {
		out[i] = &columnObj{t: o.t, i: i}
	}
	return out
}

type columnObj struct {
	t *pptx.Table
	i int
}

func (*columnObj) TypeName() string { return "_Column" }

func (o *columnObj) GetAttr(name string) (Value, bool, error) {
	if name == "width" {
		return Length(o.t.ColWidths[o.i]), true, nil
	}
	return nil, false, nil
}

func (o *columnObj) SetAttr(name string, v Value) error {
	if name != "width" {
		return readOnly("_Column", name)
	}
	e, err := emuArg(v, name)
	if err != nil {
		return err
	}
	o.t.ColWidths[o.i] = e
	return nil
}

type cellObj struct{ c *pptx.Cell }

func (*cellObj) TypeName() string { return "_Cell" }

func (o *cellObj) GetAttr(name string) (Value, bool, error) {
	c := o.c
	switch name {
	case "text":
		return c.Text.Text(), true, nil
	case "text_frame":
		return &textFrameObj{tf: c.Text}, true, nil
	case "fill":
		return &fillObj{get: func() pptx.Fill { return c.Fill }, set: func(f pptx.Fill) { c.Fill = f }}, true, nil
	case "vertical_anchor":
		return memberFor(anchors, c.Text.Anchor), true, nil
	}
	return nil, false, nil
}

func (o *cellObj) SetAttr(name string, v Value) error {
	switch name {
	case "text":
		s, err := toString(v, name)
		if err != nil {
			return err
		}
		o.c.Text.SetText(s)
		return nil
	case "vertical_anchor":
		return (&textFrameObj{tf: o.c.Text}).SetAttr(name, v)
	}
	return readOnly("_Cell", name)
}

type chartObj struct{ c *pptx.Chart }

func (*chartObj) TypeName() string { return "Chart" }

func (o *chartObj) GetAttr(name string) (Value, bool, error) {
	switch name {
	case "has_legend":
		return o.c.HasLegend, true, nil
	case "has_title":
		return o.c.Title != "", true, nil
	case "chart_title":
		return &chartTitleObj{c: o.c}, true, nil
	}
	return nil, false, nil
}

func (o *chartObj) SetAttr(name string, v Value) error {
	switch name {
	case "has_legend":
		o.c.HasLegend = truthy(v)
	case "has_title":
		if !truthy(v) {
			o.c.Title = ""
		}
	default:
		return readOnly("Chart", name)
	}
	return nil
}

// chartTitleObj exposes the title as chart_title.text_frame.text.
type chartTitleObj struct{ c *pptx.Chart }

func (*chartTitleObj) TypeName() string { return "ChartTitle" }

func (o *chartTitleObj) GetAttr(name string) (Value, bool, error) {
	switch name {
	case "text_frame":
		return o, true, nil
	case "has_text_frame":
		return true, true, nil
	case "text":
		return o.c.Title, true, nil
	}
	return nil, false, nil
}

func (o *chartTitleObj) SetAttr(name string, v Value) error {
	if name != "text" {
		return readOnly("ChartTitle", name)
	}
	s, err := toString(v, name)
	if err != nil {
		return err
	}
	o.c.Title = s
	return nil
}

type chartDataObj struct {
	categories []string
	series     []pptx.Series
}

func newChartData(_ *Interp, a Args) (Value, error) {
	if _, err := bindArgs("CategoryChartData", a, "number_format?"); err != nil {
		return nil, err
	}
	return &chartDataObj{}, nil
}

func (*chartDataObj) TypeName() string { return "CategoryChartData" }

func (o *chartDataObj) data() pptx.ChartData {
	return pptx.ChartData{Categories: o.categories, Series: o.series}
}

func (o *chartDataObj) GetAttr(name string) (Value, bool, error) {
	switch name {
	case "categories":
		return stringList(o.categories), true, nil
	case "add_series":
		return method(name, func(a Args) (Value, error) {
			v, err := bindArgs(name, a, "name", "values?", "number_format?")
			if err != nil {
				return nil, err
			}
			s := pptx.Series{Name: str(v[0])}
			if given(v[1]) {
				items, err := materialize(v[1])
				if err != nil {
					return nil, err
				}
				for _, it := range items {
					f, err := toFloat(it, "series value")
					if err != nil {
						return nil, err
					}
					s.Values = append(s.Values, f)
				}
			}
			o.series = append(o.series, s)
			return None, nil
		}), true, nil
	}
	return nil, false, nil
}

func (o *chartDataObj) SetAttr(name string, v Value) error {
	if name != "categories" {
		return readOnly("CategoryChartData", name)
	}
	items, err := materialize(v)
	if err != nil {
		return err
	}
	o.categories = o.categories[:0]
	for _, it := range items {
		o.categories = append(o.categories, str(it))
	}
	return nil
}
