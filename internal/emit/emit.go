// Package emit turns finished documents into named attachments and, when
// persistence is on, stores them.
package emit

import (
	"bytes"
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"screendeck/internal/apperr"
	docrepo "screendeck/internal/gateway/repository/document"
	"screendeck/internal/logging"
	"screendeck/internal/pptx"
)

type Format string

const (
	FormatPPTX Format = "pptx"
	FormatPPTM Format = "pptm"
	// FormatBAS is the raw macro source, returned when no automation host
	// is configured.
	FormatBAS Format = "bas"
)

func (f Format) ContentType() string {
	switch f {
	case FormatPPTX:
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case FormatPPTM:
		return "application/vnd.ms-powerpoint.presentation.macroEnabled.12"
	case FormatBAS:
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

// Package reports whether the format is an OOXML package.
func (f Format) Package() bool {
	return f == FormatPPTX || f == FormatPPTM
}

type Output struct {
	Name        string
	ContentType string
	Format      Format
	Data        []byte
	// URL is a direct download link when the store can presign one.
	URL    string
	Stored bool
	Slides int
}

const DefaultOwner = "output"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Sanitize maps a caller-supplied name onto [A-Za-z0-9_-].
func Sanitize(username string) string {
	s := unsafeChars.ReplaceAllString(username, "_")
	if s == "" {
		return DefaultOwner
	}
	return s
}

// FileName is <sanitized>_YYYYMMDD_HHMMSS[_<tag>].<ext>. The tag keeps two
// documents made in the same second apart.
func FileName(username string, f Format, at time.Time, tag string) string {
	name := Sanitize(username) + "_" + at.Format("20060102_150405")
	if tag = unsafeChars.ReplaceAllString(tag, ""); tag != "" {
		name += "_" + tag
	}
	return name + "." + string(f)
}

// NewTag returns a short random file name tag.
func NewTag() string { return uuid.NewString()[:8] }

type Emitter struct {
	store docrepo.Store
	now   func() time.Time
	tag   func() string
}

type Option func(*Emitter)

// WithStore enables persistence. A nil store leaves it off.
func WithStore(s docrepo.Store) Option {
	return func(e *Emitter) { e.store = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTags swaps the file name tag source.
func WithTags(tag func() string) Option {
	return func(e *Emitter) {
		if tag != nil {
			e.tag = tag
		}
	}
}

func New(opts ...Option) *Emitter {
	e := &Emitter{now: time.Now, tag: NewTag}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Emitter) Persistent() bool { return e.store != nil }

// Emit serializes doc as a pptx attachment.
func (e *Emitter) Emit(ctx context.Context, doc pptx.Serializer, username string) (Output, error) {
	if doc == nil {
		return Output{}, apperr.New(apperr.Internal, "no document to emit")
	}
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return Output{}, apperr.Wrap(apperr.Internal, err, "failed to serialize presentation")
	}
	return e.EmitBytes(ctx, FormatPPTX, buf.Bytes(), username)
}

// EmitBytes names and optionally stores an already serialized document.
// Packages are verified before anything is returned.
func (e *Emitter) EmitBytes(ctx context.Context, f Format, data []byte, username string) (Output, error) {
	out := Output{
		Name:        FileName(username, f, e.now(), e.tag()),
		ContentType: f.ContentType(),
		Format:      f,
		Data:        data,
	}
	if len(data) == 0 {
		return Output{}, apperr.New(apperr.Internal, "empty %s document", f)
	}
	if f.Package() {
		n, err := verify(data)
		if err != nil {
			return Output{}, apperr.Wrap(apperr.Internal, err, "generated document is not a valid presentation")
		}
		out.Slides = n
	}

	log := logging.From(ctx).WithFields(logrus.Fields{
		"component": "emit",
		"file":      out.Name,
		"bytes":     len(data),
	})
	if e.store == nil {
		log.Debug("document emitted")
		return out, nil
	}
	owner := Sanitize(username)
	if err := e.store.Put(ctx, owner, out.Name, data); err != nil {
		return Output{}, apperr.Wrap(apperr.Host, err, "failed to store document")
	}
	out.Stored = true
	if u, err := e.store.GetURL(ctx, owner, out.Name); err != nil {
		log.WithError(err).Warn("presign failed")
	} else {
		out.URL = u
	}
	log.Info("document stored")
	return out, nil
}
