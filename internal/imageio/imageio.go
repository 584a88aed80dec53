// Package imageio decodes inbound image payloads: base64 strings with or
// without a data URI prefix.
package imageio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"sync"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"

	"screendeck/internal/apperr"
)

// ErrDecode reports a payload that is not valid base64.
var ErrDecode = errors.New("imageio: malformed base64 payload")

// DefaultMaxBytes bounds decoded payloads when no limit is configured.
const DefaultMaxBytes = 20 << 20

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// Validate reports whether payload looks like a decodable image string.
func Validate(payload string) bool {
	if strings.TrimSpace(payload) == "" {
		return false
	}
	_, err := Extract(payload)
	return err == nil
}

// Extract strips a data URI prefix if present and decodes the base64 body.
func Extract(payload string) ([]byte, error) {
	body := strings.TrimSpace(payload)
	if strings.HasPrefix(body, "data:") {
		comma := strings.IndexByte(body, ',')
		if comma < 0 {
			return nil, apperr.Wrap(apperr.Input, ErrDecode, "invalid image format")
		}
		body = body[comma+1:]
	}
	body = stripWhitespace(body)
	if body == "" {
		return nil, apperr.Wrap(apperr.Input, ErrDecode, "invalid image format")
	}
	for _, enc := range encodings {
		if out, err := enc.DecodeString(body); err == nil {
			return out, nil
		}
	}
	return nil, apperr.Wrap(apperr.Input, ErrDecode, "invalid image format")
}

// MIMEFromDataURI returns the declared media type of a data URI, or "".
func MIMEFromDataURI(payload string) string {
	body := strings.TrimSpace(payload)
	if !strings.HasPrefix(body, "data:") {
		return ""
	}
	head, _, ok := strings.Cut(body[len("data:"):], ",")
	if !ok {
		return ""
	}
	mime, _, _ := strings.Cut(head, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}

// Decode checks that b is a loadable raster image.
func Decode(b []byte) (image.Image, string, error) {
	if len(b) == 0 {
		return nil, "", apperr.New(apperr.Input, "invalid image data")
	}
	img, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, "", apperr.Wrap(apperr.Input, err, "invalid image data")
	}
	b0 := img.Bounds()
	if b0.Dx() <= 0 || b0.Dy() <= 0 {
		return nil, "", apperr.New(apperr.Input, "invalid image data")
	}
	return img, format, nil
}

// Payload is a decoded and verified inbound image.
type Payload struct {
	Bytes  []byte
	MIME   string
	Format string
	Image  image.Image
}

// Load runs Extract, the size check and Decode in order.
func Load(payload string, maxBytes int) (*Payload, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, apperr.New(apperr.Input, "no image provided")
	}
	raw, err := Extract(payload)
	if err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(raw) > maxBytes {
		return nil, apperr.New(apperr.Input, "image exceeds %d bytes", maxBytes)
	}
	img, format, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	mime := MIMEFromDataURI(payload)
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/" + format
	}
	return &Payload{Bytes: raw, MIME: mime, Format: format, Image: img}, nil
}

// TempImage is a PNG copy of a payload on disk. Close removes it and is safe
// to call more than once.
type TempImage struct {
	path string
	once sync.Once
	err  error
}

// WriteTemp re-encodes img as PNG into a fresh temporary file.
func WriteTemp(img image.Image) (*TempImage, error) {
	f, err := os.CreateTemp("", "screendeck-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("encode temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("close temp image: %w", err)
	}
	return &TempImage{path: f.Name()}, nil
}

func (t *TempImage) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

// Bytes returns the PNG bytes of the temporary copy.
func (t *TempImage) Bytes() ([]byte, error) {
	if t == nil {
		return nil, errors.New("imageio: temp image is nil")
	}
	return os.ReadFile(t.path)
}

func (t *TempImage) Close() error {
	if t == nil {
		return nil
	}
	t.once.Do(func() {
		if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.err = err
		}
	})
	return t.err
}

func stripWhitespace(s string) string {
	if !strings.ContainsAny(s, " \t\r\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '\r', '\n':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
