// Package layout turns a screenshot into positioned text elements by optical
// character recognition, without any model call.
package layout

import (
	"context"
	"image"
	"strings"

	"screendeck/internal/pptx"
)

// Token is one recognized word in pixel space.
type Token struct {
	Text       string
	BBox       image.Rectangle
	Confidence float64
}

// Recognizer runs OCR over a preprocessed image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]Token, error)
}

// Element is a recognized word in slide space. Positions are inches and
// FontSize is points.
type Element struct {
	Text     string  `json:"text"`
	Left     float64 `json:"left"`
	Top      float64 `json:"top"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	FontSize float64 `json:"font_size"`
}

const (
	DefaultScale         = 100
	DefaultFontScale     = 1.3
	DefaultMinConfidence = 50
)

type Params struct {
	// Scale is pixels per inch.
	Scale         float64
	FontScale     float64
	MinConfidence float64
	Threshold     int
}

func (p Params) withDefaults() Params {
	if p.Scale <= 0 {
		p.Scale = DefaultScale
	}
	if p.FontScale <= 0 {
		p.FontScale = DefaultFontScale
	}
	if p.MinConfidence <= 0 {
		p.MinConfidence = DefaultMinConfidence
	}
	if p.Threshold <= 0 {
		p.Threshold = DefaultThreshold
	}
	return p
}

type Extractor struct {
	rec    Recognizer
	params Params
}

func NewExtractor(rec Recognizer, params Params) *Extractor {
	return &Extractor{rec: rec, params: params.withDefaults()}
}

func (e *Extractor) Params() Params { return e.params }

// Extract preprocesses img, recognizes it and converts tokens to elements in
// recognition order. Zero elements is a valid result.
func (e *Extractor) Extract(ctx context.Context, img image.Image) ([]Element, error) {
	tokens, err := e.rec.Recognize(ctx, Preprocess(img, e.params.Threshold))
	if err != nil {
		return nil, err
	}
	return e.Elements(tokens), nil
}

// Elements filters and converts tokens.
func (e *Extractor) Elements(tokens []Token) []Element {
	out := make([]Element, 0, len(tokens))
	for _, t := range tokens {
		if t.Confidence < e.params.MinConfidence || strings.TrimSpace(t.Text) == "" {
			continue
		}
		s := e.params.Scale
		out = append(out, Element{
			Text:     t.Text,
			Left:     float64(t.BBox.Min.X) / s,
			Top:      float64(t.BBox.Min.Y) / s,
			Width:    float64(t.BBox.Dx()) / s,
			Height:   float64(t.BBox.Dy()) / s,
			FontSize: float64(t.BBox.Dy()) * e.params.FontScale,
		})
	}
	return out
}

// BuildDeck places each element in its own textbox on one blank slide.
func BuildDeck(elements []Element) *pptx.Presentation {
	p := pptx.New()
	slide, _ := p.AddSlide(pptx.LayoutBlank)
	for _, el := range elements {
		box := slide.AddTextbox(pptx.Inches(el.Left), pptx.Inches(el.Top), pptx.Inches(el.Width), pptx.Inches(el.Height))
		run := box.Text.FirstParagraph().AddRun()
		run.Text = el.Text
		if el.FontSize > 0 {
			run.Font.Size = el.FontSize
		}
	}
	return p
}
