package emit

import (
	"bytes"
	"fmt"
	"image/png"

	goppt "github.com/VantageDataChat/GoPPT"
)

const DefaultPreviewWidth = 1280

// readDeck opens a serialized package with the GoPPT reader.
func readDeck(data []byte) (pres *goppt.Presentation, err error) {
	defer func() {
		if r := recover(); r != nil {
			pres, err = nil, fmt.Errorf("emit: reader panicked: %v", r)
		}
	}()
	pres, err = goppt.ReadFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("emit: read deck: %w", err)
	}
	return pres, nil
}

// verify reads a package back and returns its slide count.
func verify(data []byte) (int, error) {
	pres, err := readDeck(data)
	if err != nil {
		return 0, err
	}
	defer pres.Close()
	n := pres.GetSlideCount()
	if n == 0 {
		return 0, fmt.Errorf("emit: deck has no slides")
	}
	return n, nil
}

// Preview renders one slide of a stored deck to PNG.
func Preview(data []byte, slide, width int) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("emit: render panicked: %v", r)
		}
	}()

	pres, err := readDeck(data)
	if err != nil {
		return nil, err
	}
	defer pres.Close()

	if n := len(pres.Slides()); slide < 0 || slide >= n {
		return nil, fmt.Errorf("emit: slide %d out of range (deck has %d)", slide, n)
	}
	opts := goppt.DefaultRenderOptions()
	opts.Width = DefaultPreviewWidth
	if width > 0 {
		opts.Width = width
	}
	img, err := pres.SlideToImage(slide, opts)
	if err != nil {
		return nil, fmt.Errorf("emit: render slide %d: %w", slide, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("emit: encode slide %d: %w", slide, err)
	}
	return buf.Bytes(), nil
}
