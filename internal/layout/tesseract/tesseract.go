//go:build tesseract

package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"screendeck/internal/layout"
)

// Recognizer reads words with their bounding boxes. A tesseract client is
// not safe for concurrent use, so calls are serialized.
type Recognizer struct {
	mu        sync.Mutex
	languages []string
}

func New(languages string) *Recognizer {
	var langs []string
	for _, l := range strings.FieldsFunc(languages, func(r rune) bool { return r == '+' || r == ',' }) {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Recognizer{languages: langs}
}

func (r *Recognizer) Recognize(ctx context.Context, img image.Image) ([]layout.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(r.languages...); err != nil {
		return nil, err
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, err
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, err
	}
	out := make([]layout.Token, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, layout.Token{Text: b.Word, BBox: b.Box, Confidence: b.Confidence})
	}
	return out, nil
}
