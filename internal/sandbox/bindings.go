package sandbox

import (
	"io"
	"math"

	"screendeck/internal/pptx"
)

// maxShapes bounds the shapes a single script may create.
const (
	maxShapes = 5000
	maxSlides = 200
)

// bindings holds the stateless builder symbols. Per-run symbols such as
// SOURCE_IMAGE are added by newNamespace.
var bindings = map[string]Value{
	"Presentation":      &Builtin{Name: "Presentation", Fn: newPresentation},
	"Inches":            lengthCtor("Inches", float64(pptx.EMUPerInch)),
	"Pt":                lengthCtor("Pt", float64(pptx.EMUPerPoint)),
	"Cm":                lengthCtor("Cm", float64(pptx.EMUPerCm)),
	"Mm":                lengthCtor("Mm", 36000),
	"Emu":               lengthCtor("Emu", 1),
	"RGBColor":          rgbColorType,
	"CategoryChartData": &Builtin{Name: "CategoryChartData", Fn: newChartData},
	"ChartData":         &Builtin{Name: "ChartData", Fn: newChartData},
}

func init() {
	for name, e := range enums {
		bindings[name] = e
	}
}

// BoundNames lists every symbol a script may use without defining it.
func BoundNames() []string {
	out := make([]string, 0, len(bindings)+len(SafeBuiltins)+1)
	for n := range bindings {
		out = append(out, n)
	}
	out = append(out, "SOURCE_IMAGE")
	return append(out, SafeBuiltins...)
}

// newNamespace builds the globals for one run.
func newNamespace(src *sourceImage) map[string]Value {
	ns := make(map[string]Value, len(bindings)+len(SafeBuiltins)+1)
	for name, v := range bindings {
		ns[name] = v
	}
	for name, b := range builtinTable() {
		ns[name] = b
	}
	if src == nil {
		src = &sourceImage{}
	}
	ns["SOURCE_IMAGE"] = src
	return ns
}

// sourceImage stands for the uploaded screenshot in add_picture calls.
type sourceImage struct {
	data          []byte
	ext           string
	width, height int
}

func (*sourceImage) TypeName() string { return "SourceImage" }

// RGBColor is a color value as produced by RGBColor(r, g, b).
type RGBColor pptx.RGB

func (RGBColor) TypeName() string { return "RGBColor" }
func (c RGBColor) String() string { return pptx.RGB(c).Hex() }

var rgbColorType = &Builtin{
	Name: "RGBColor",
	Fn: func(_ *Interp, a Args) (Value, error) {
		v, err := bindArgs("RGBColor", a, "r", "g", "b")
		if err != nil {
			return nil, err
		}
		var c [3]uint8
		for i, x := range v {
			n, err := toInt(x, "RGBColor component")
			if err != nil {
				return nil, err
			}
			if n < 0 || n > 255 {
				return nil, valueErrorf("RGBColor() takes three integer values 0-255")
			}
			c[i] = uint8(n)
		}
		return RGBColor{R: c[0], G: c[1], B: c[2]}, nil
	},
	Attrs: map[string]Value{
		"from_string": &Builtin{Name: "from_string", Fn: func(_ *Interp, a Args) (Value, error) {
			v, err := bindArgs("from_string", a, "rgb_hex_str")
			if err != nil {
				return nil, err
			}
			s, err := toString(v[0], "rgb_hex_str")
			if err != nil {
				return nil, err
			}
			c, err := pptx.ParseRGB(s)
			if err != nil {
				return nil, valueErrorf("invalid RGB hex string %s", quote(s))
			}
			return RGBColor(c), nil
		}},
	},
}

func lengthCtor(name string, per float64) *Builtin {
	return &Builtin{Name: name, Fn: func(_ *Interp, a Args) (Value, error) {
		v, err := bindArgs(name, a, "value")
		if err != nil {
			return nil, err
		}
		f, err := toFloat(v[0], name+"() argument")
		if err != nil {
			return nil, err
		}
		emu := math.Round(f * per)
		if math.IsNaN(emu) || math.Abs(emu) > math.MaxInt32*100 {
			return nil, valueErrorf("%s() value out of range", name)
		}
		return Length(emu), nil
	}}
}

func emuArg(v Value, what string) (pptx.EMU, error) {
	if i, ok := asInt(v); ok {
		return pptx.EMU(i), nil
	}
	if f, ok := v.(float64); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return pptx.EMU(math.Round(f)), nil
	}
	return 0, typeErrorf("%s must be a length, not %s", what, typeName(v))
}

func emuArgs(v []Value, names ...string) ([]pptx.EMU, error) {
	out := make([]pptx.EMU, len(names))
	for i, n := range names {
		e, err := emuArg(v[i], n)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func rgbArg(v Value) (pptx.RGB, error) {
	c, ok := v.(RGBColor)
	if !ok {
		return pptx.RGB{}, typeErrorf("assigned value must be type RGBColor; got %s", typeName(v))
	}
	return pptx.RGB(c), nil
}

func memberArg(v Value, e *Enum, what string) (*EnumMember, error) {
	m, ok := v.(*EnumMember)
	if !ok || m.Enum != e.Name {
		return nil, typeErrorf("%s must be a member of %s, not %s", what, e.Name, repr(v))
	}
	return m, nil
}

func optBool(v Value, what string) (*bool, error) {
	if !given(v) {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, typeErrorf("%s must be True, False or None", what)
	}
	return &b, nil
}

func boolValue(b *bool) Value {
	if b == nil {
		return None
	}
	return *b
}

func rgbValue(c *pptx.RGB) Value {
	if c == nil {
		return None
	}
	return RGBColor(*c)
}

func readOnly(typ, name string) error {
	return rtErr("AttributeError", "'%s' attribute '%s' is read-only", typ, name)
}

func noAttr(typ, name string) error {
	return rtErr("AttributeError", "'%s' object has no attribute '%s'", typ, name)
}

func newPresentation(_ *Interp, a Args) (Value, error) {
	v, err := bindArgs("Presentation", a, "pptx?")
	if err != nil {
		return nil, err
	}
	if given(v[0]) {
		return nil, valueErrorf("Presentation() cannot open files; call it with no arguments")
	}
	return &presentationObj{p: pptx.New()}, nil
}

type presentationObj struct{ p *pptx.Presentation }

func (*presentationObj) TypeName() string { return "Presentation" }

// WriteTo serializes the document built so far.
func (o *presentationObj) WriteTo(w io.Writer) (int64, error) { return o.p.WriteTo(w) }

func (o *presentationObj) Document() *pptx.Presentation { return o.p }

func (o *presentationObj) GetAttr(name string) (Value, bool, error) {
	switch name {
	case "slides":
		return &slidesObj{p: o.p}, true, nil
	case "slide_layouts":
		return layoutsObj{}, true, nil
	case "slide_width":
		return Length(o.p.Width), true, nil
	case "slide_height":
		return Length(o.p.Height), true, nil
	case "core_properties":
		return &corePropsObj{p: o.p}, true, nil
	case "save":
		return &Builtin{Name: "save", Fn: func(*Interp, Args) (Value, error) {
			return nil, rtErr("PermissionError", "save() is not available; return the presentation from create_slide()")
		}}, true, nil
	}
	return nil, false, nil
}

func (o *presentationObj) SetAttr(name string, v Value) error {
	switch name {
	case "slide_width", "slide_height":
		e, err := emuArg(v, name)
		if err != nil {
			return err
		}
		if e <= 0 {
			return valueErrorf("%s must be positive", name)
		}
		if name == "slide_width" {
			o.p.Width = e
		} else {
			o.p.Height = e
		}
		return nil
	}
	return readOnly("Presentation", name)
}

type corePropsObj struct{ p *pptx.Presentation }

func (*corePropsObj) TypeName() string { return "CoreProperties" }

func (o *corePropsObj) GetAttr(name string) (Value, bool, error) {
	if name == "title" {
		return o.p.Title, true, nil
	}
	return nil, false, nil
}

func (o *corePropsObj) SetAttr(name string, v Value) error {
	if name != "title" {
		return readOnly("CoreProperties", name)
	}
	s, err := toString(v, "title")
	if err != nil {
		return err
	}
	o.p.Title = s
	return nil
}

var layoutNames = map[int]string{
	pptx.LayoutTitle:           "Title Slide",
	pptx.LayoutTitleAndContent: "Title and Content",
	pptx.LayoutTitleOnly:       "Title Only",
	pptx.LayoutBlank:           "Blank",
}

type layoutObj struct{ index int }

func (layoutObj) TypeName() string { return "SlideLayout" }

func (o layoutObj) GetAttr(name string) (Value, bool, error) {
	if name == "name" {
		if n, ok := layoutNames[o.index]; ok {
			return n, true, nil
		}
		return layoutNames[pptx.LayoutBlank], true, nil
	}
	return nil, false, nil
}

type layoutsObj struct{}

func (layoutsObj) TypeName() string { return "SlideLayouts" }

func (layoutsObj) GetIndex(k Value) (Value, error) {
	i, err := seqIndex(k, pptx.LayoutCount, "slide layout")
	if err != nil {
		return nil, err
	}
	return layoutObj{index: i}, nil
}

func (layoutsObj) Items() []Value {
	out := make([]Value, pptx.LayoutCount)
	for i := range out {
		out[i] = layoutObj{index: i}
	}
	return out
}

type slidesObj struct{ p *pptx.Presentation }

func (*slidesObj) TypeName() string { return "Slides" }

func (o *slidesObj) GetAttr(name string) (Value, bool, error) {
	if name != "add_slide" {
		return nil, false, nil
	}
	return &Builtin{Name: "add_slide", Fn: func(_ *Interp, a Args) (Value, error) {
		v, err := bindArgs("add_slide", a, "slide_layout")
		if err != nil {
			return nil, err
		}
		idx := 0
		switch l := v[0].(type) {
		case layoutObj:
			idx = l.index
		default:
			n, err := toInt(v[0], "slide_layout")
			if err != nil {
				return nil, err
			}
			idx = int(n)
		}
		if len(o.p.Slides) >= maxSlides {
			return nil, rtErr("MemoryError", "too many slides (limit %d)", maxSlides)
		}
		s, err := o.p.AddSlide(idx)
		if err != nil {
			return nil, valueErrorf("%v", err)
		}
		return &slideObj{p: o.p, s: s, index: len(o.p.Slides) - 1}, nil
	}}, true, nil
}

func (o *slidesObj) GetIndex(k Value) (Value, error) {
	i, err := seqIndex(k, len(o.p.Slides), "slide")
	if err != nil {
		return nil, err
	}
	return &slideObj{p: o.p, s: o.p.Slides[i], index: i}, nil
}

func (o *slidesObj) Items() []Value {
	out := make([]Value, len(o.p.Slides))
	for i, s := range o.p.Slides {
		out[i] = &slideObj{p: o.p, s: s, index: i}
	}
	return out
}

type slideObj struct {
	p     *pptx.Presentation
	s     *pptx.Slide
	index int
}

func (*slideObj) TypeName() string { return "Slide" }

func (o *slideObj) GetAttr(name string) (Value, bool, error) {
	switch name {
	case "shapes":
		return &shapesObj{p: o.p, s: o.s}, true, nil
	case "placeholders":
		return &placeholdersObj{p: o.p, s: o.s}, true, nil
	case "background":
		return &backgroundObj{s: o.s}, true, nil
	case "slide_layout":
		return layoutObj{index: o.s.Layout}, true, nil
	case "slide_id":
		return int64(256 + o.index), true, nil
	}
	return nil, false, nil
}

type backgroundObj struct{ s *pptx.Slide }

func (*backgroundObj) TypeName() string { return "_Background" }

func (o *backgroundObj) GetAttr(name string) (Value, bool, error) {
	if name != "fill" {
		return nil, false, nil
	}
	s := o.s
	return &fillObj{
		get: func() pptx.Fill {
			if s.Background == nil {
				return pptx.Fill{}
			}
			return pptx.Fill{Kind: pptx.FillSolid, Color: *s.Background}
		},
		set: func(f pptx.Fill) {
			if f.Kind != pptx.FillSolid {
				s.Background = nil
				return
			}
			c := f.Color
			s.Background = &c
		},
	}, true, nil
}

type placeholdersObj struct {
	p *pptx.Presentation
	s *pptx.Slide
}

func (*placeholdersObj) TypeName() string { return "SlidePlaceholders" }

// GetIndex looks placeholders up by idx, not by position.
func (o *placeholdersObj) GetIndex(k Value) (Value, error) {
	idx, err := toInt(k, "placeholder idx")
	if err != nil {
		return nil, err
	}
	sh := o.s.Placeholder(int(idx))
	if sh == nil {
		return nil, keyErrorf("no placeholder on this slide with idx == %d", idx)
	}
	return &shapeObj{p: o.p, sh: sh}, nil
}

func (o *placeholdersObj) Items() []Value {
	phs := o.s.Placeholders()
	out := make([]Value, len(phs))
	for i, sh := range phs {
		out[i] = &shapeObj{p: o.p, sh: sh}
	}
	return out
}

type shapesObj struct {
	p *pptx.Presentation
	s *pptx.Slide
}

func (*shapesObj) TypeName() string { return "SlideShapes" }

func (o *shapesObj) GetIndex(k Value) (Value, error) {
	i, err := seqIndex(k, len(o.s.Shapes), "shape")
	if err != nil {
		return nil, err
	}
	return &shapeObj{p: o.p, sh: o.s.Shapes[i]}, nil
}

func (o *shapesObj) Items() []Value {
	out := make([]Value, len(o.s.Shapes))
	for i, sh := range o.s.Shapes {
		out[i] = &shapeObj{p: o.p, sh: sh}
	}
	return out
}

func (o *shapesObj) GetAttr(name string) (Value, bool, error) {
	var fn func(a Args) (Value, error)
	switch name {
	case "title":
		if t := o.s.Title(); t != nil {
			return &shapeObj{p: o.p, sh: t}, true, nil
		}
		return None, true, nil
	case "add_shape":
		fn = o.addShape
	case "add_textbox":
		fn = o.addTextbox
	case "add_connector":
		fn = o.addConnector
	case "add_picture":
		fn = o.addPicture
	case "add_table":
		fn = o.addTable
	case "add_chart":
		fn = o.addChart
	default:
		return nil, false, nil
	}
	return method(name, func(a Args) (Value, error) {
		if o.p.ShapeCount() >= maxShapes {
			return nil, rtErr("MemoryError", "too many shapes (limit %d)", maxShapes)
		}
		return fn(a)
	}), true, nil
}

func (o *shapesObj) wrap(sh *pptx.Shape) Value { return &shapeObj{p: o.p, sh: sh} }

func (o *shapesObj) addShape(a Args) (Value, error) {
	v, err := bindArgs("add_shape", a, "autoshape_type_id", "left", "top", "width", "height")
	if err != nil {
		return nil, err
	}
	box, err := emuArgs(v[1:], "left", "top", "width", "height")
	if err != nil {
		return nil, err
	}
	if m, ok := v[0].(*EnumMember); ok && m.Enum == connectors.Name {
		return o.wrap(o.s.AddConnector(m.Value.(string), box[0], box[1], box[0]+box[2], box[1]+box[3])), nil
	}
	m, err := memberArg(v[0], autoShapes, "autoshape_type_id")
	if err != nil {
		return nil, err
	}
	return o.wrap(o.s.AddShape(m.Value.(string), box[0], box[1], box[2], box[3])), nil
}

func (o *shapesObj) addTextbox(a Args) (Value, error) {
	v, err := bindArgs("add_textbox", a, "left", "top", "width", "height")
	if err != nil {
		return nil, err
	}
	box, err := emuArgs(v, "left", "top", "width", "height")
	if err != nil {
		return nil, err
	}
	return o.wrap(o.s.AddTextbox(box[0], box[1], box[2], box[3])), nil
}

func (o *shapesObj) addConnector(a Args) (Value, error) {
	v, err := bindArgs("add_connector", a, "connector_type", "begin_x", "begin_y", "end_x", "end_y")
	if err != nil {
		return nil, err
	}
	m, err := memberArg(v[0], connectors, "connector_type")
	if err != nil {
		return nil, err
	}
	pts, err := emuArgs(v[1:], "begin_x", "begin_y", "end_x", "end_y")
	if err != nil {
		return nil, err
	}
	return o.wrap(o.s.AddConnector(m.Value.(string), pts[0], pts[1], pts[2], pts[3])), nil
}

func (o *shapesObj) addPicture(a Args) (Value, error) {
	v, err := bindArgs("add_picture", a, "image_file", "left", "top", "width?", "height?")
	if err != nil {
		return nil, err
	}
	src, ok := v[0].(*sourceImage)
	if !ok {
		return nil, typeErrorf("add_picture() only accepts SOURCE_IMAGE, not %s", typeName(v[0]))
	}
	if len(src.data) == 0 {
		return nil, valueErrorf("no source image is available")
	}
	pos, err := emuArgs(v[1:3], "left", "top")
	if err != nil {
		return nil, err
	}
	var size [2]pptx.EMU
	for i, x := range v[3:] {
		if !given(x) {
			continue
		}
		if size[i], err = emuArg(x, "size"); err != nil {
			return nil, err
		}
	}
	return o.wrap(o.s.AddPicture(src.data, src.ext, src.width, src.height, pos[0], pos[1], size[0], size[1])), nil
}

func (o *shapesObj) addTable(a Args) (Value, error) {
	v, err := bindArgs("add_table", a, "rows", "cols", "left", "top", "width", "height")
	if err != nil {
		return nil, err
	}
	rows, err := toInt(v[0], "rows")
	if err != nil {
		return nil, err
	}
	cols, err := toInt(v[1], "cols")
	if err != nil {
		return nil, err
	}
	if rows*cols > maxShapes {
		return nil, valueErrorf("table of %dx%d cells is too large", rows, cols)
	}
	box, err := emuArgs(v[2:], "left", "top", "width", "height")
	if err != nil {
		return nil, err
	}
	sh, err := o.s.AddTable(int(rows), int(cols), box[0], box[1], box[2], box[3])
	if err != nil {
		return nil, valueErrorf("%v", err)
	}
	return o.wrap(sh), nil
}

func (o *shapesObj) addChart(a Args) (Value, error) {
	v, err := bindArgs("add_chart", a, "chart_type", "x", "y", "cx", "cy", "chart_data")
	if err != nil {
		return nil, err
	}
	m, err := memberArg(v[0], chartTypes, "chart_type")
	if err != nil {
		return nil, err
	}
	box, err := emuArgs(v[1:5], "x", "y", "cx", "cy")
	if err != nil {
		return nil, err
	}
	d, ok := v[5].(*chartDataObj)
	if !ok {
		return nil, typeErrorf("chart_data must be CategoryChartData, not %s", typeName(v[5]))
	}
	sh, err := o.s.AddChart(m.Value.(pptx.ChartKind), box[0], box[1], box[2], box[3], d.data())
	if err != nil {
		return nil, valueErrorf("%v", err)
	}
	return o.wrap(sh), nil
}
