//go:build !tesseract

package app

import "screendeck/internal/layout"

// Built without the tesseract tag, the OCR endpoint reports it is unavailable.
func newRecognizer(string) layout.Recognizer { return nil }
