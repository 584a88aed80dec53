//go:build tesseract

package app

import (
	"screendeck/internal/layout"
	"screendeck/internal/layout/tesseract"
)

func newRecognizer(languages string) layout.Recognizer {
	return tesseract.New(languages)
}
