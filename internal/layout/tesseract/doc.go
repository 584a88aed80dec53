// Package tesseract implements layout.Recognizer with the tesseract engine.
// It is compiled only with the tesseract build tag, which needs cgo and
// libtesseract.
package tesseract
