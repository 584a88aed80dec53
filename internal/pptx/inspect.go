package pptx

import (
	"bytes"
	"errors"
	"fmt"

	goppt "github.com/VantageDataChat/GoPPT"
)

var ErrNotPackage = errors.New("pptx: not a presentation package")

type SlideSummary struct {
	Shapes int
	Texts  []string
}

type Summary struct {
	Slides []SlideSummary
}

func (s Summary) SlideCount() int { return len(s.Slides) }

func (s Summary) ShapeCount() int {
	n := 0
	for _, sl := range s.Slides {
		n += sl.Shapes
	}
	return n
}

// Inspect reads a serialized package back with the GoPPT reader and lists
// the shapes and run texts of every slide. Charts live in their own part
// and are not read back as slide shapes.
func Inspect(data []byte) (sum Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			sum, err = Summary{}, fmt.Errorf("%w: reader panicked: %v", ErrNotPackage, r)
		}
	}()

	doc, err := goppt.ReadFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrNotPackage, err)
	}
	defer doc.Close()

	for _, s := range doc.Slides() {
		ss := SlideSummary{Shapes: s.GetShapeCount()}
		for _, sh := range s.GetShapes() {
			ss.Texts = shapeTexts(ss.Texts, sh)
		}
		sum.Slides = append(sum.Slides, ss)
	}
	return sum, nil
}

func shapeTexts(out []string, sh goppt.Shape) []string {
	switch s := sh.(type) {
	case *goppt.PlaceholderShape:
		return paragraphTexts(out, s.GetParagraphs())
	case *goppt.RichTextShape:
		return paragraphTexts(out, s.GetParagraphs())
	case *goppt.AutoShape:
		if ps := s.GetParagraphs(); len(ps) > 0 {
			return paragraphTexts(out, ps)
		}
		if t := s.GetText(); t != "" {
			return append(out, t)
		}
	case *goppt.TableShape:
		for _, row := range s.GetRows() {
			for _, cell := range row {
				if cell != nil {
					out = paragraphTexts(out, cell.GetParagraphs())
				}
			}
		}
	case *goppt.GroupShape:
		for _, child := range s.GetShapes() {
			out = shapeTexts(out, child)
		}
	}
	return out
}

func paragraphTexts(out []string, paras []*goppt.Paragraph) []string {
	for _, p := range paras {
		for _, el := range p.GetElements() {
			if tr, ok := el.(*goppt.TextRun); ok && tr.GetText() != "" {
				out = append(out, tr.GetText())
			}
		}
	}
	return out
}
