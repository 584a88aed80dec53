//go:build !tesseract

package app

import (
	"testing"

	"screendeck/internal/tester"
)

func TestRecognizerUnavailableWithoutTag(t *testing.T) {
	tester.True(t, newRecognizer("eng") == nil)
}
