// Package convert runs one screenshot through the fixed pipeline:
// ingestion, OCR or generation, validation and execution, emission.
package convert

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"screendeck/internal/apperr"
	"screendeck/internal/automation"
	"screendeck/internal/codegen"
	"screendeck/internal/emit"
	"screendeck/internal/gateway/repository/history"
	"screendeck/internal/imageio"
	"screendeck/internal/layout"
	"screendeck/internal/logging"
	"screendeck/internal/metrics"
	"screendeck/internal/sandbox"
)

type Mode string

const (
	ModeScript Mode = "script"
	ModeMacro  Mode = "macro"
	ModeOCR    Mode = "ocr"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeScript, nil
	case ModeScript, ModeMacro, ModeOCR:
		return m, nil
	}
	return "", apperr.New(apperr.Input, "unsupported mode: %s", s)
}

type Request struct {
	Image    string `json:"image"`
	Username string `json:"username,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Provider string `json:"provider,omitempty"`
	// Refine nil uses the pipeline default.
	Refine *bool `json:"refine,omitempty"`
	// Observe, if set, receives stage events synchronously.
	Observe Observer `json:"-"`
}

type Pipeline struct {
	gen     *codegen.Generator
	box     *sandbox.Sandbox
	emitter *emit.Emitter

	ocr     *layout.Extractor
	newHost func() automation.Host
	history history.Store
	metrics *metrics.Metrics
	slots   *semaphore.Weighted

	maxImageBytes int
	refineDefault bool
}

type Option func(*Pipeline)

// WithOCR enables ModeOCR.
func WithOCR(x *layout.Extractor) Option { return func(p *Pipeline) { p.ocr = x } }

// WithAutomation runs macros on hosts from newHost. Without it macro mode
// returns the macro source.
func WithAutomation(newHost func() automation.Host) Option {
	return func(p *Pipeline) { p.newHost = newHost }
}

func WithHistory(h history.Store) Option { return func(p *Pipeline) { p.history = h } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

func WithMaxImageBytes(n int) Option { return func(p *Pipeline) { p.maxImageBytes = n } }

func WithRefineDefault(on bool) Option { return func(p *Pipeline) { p.refineDefault = on } }

// WithConcurrency bounds simultaneous conversions. n <= 0 is unbounded.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

func New(gen *codegen.Generator, box *sandbox.Sandbox, emitter *emit.Emitter, opts ...Option) *Pipeline {
	p := &Pipeline{
		gen:           gen,
		box:           box,
		emitter:       emitter,
		maxImageBytes: imageio.DefaultMaxBytes,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Emitter exposes the emitter so callers can check persistence.
func (p *Pipeline) Emitter() *emit.Emitter { return p.emitter }

// Convert runs req to completion. A caller that goes away does not stop the
// run; its result is discarded.
func (p *Pipeline) Convert(ctx context.Context, req Request) (out emit.Output, err error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	run := &run{p: p, observe: req.Observe}

	mode, err := ParseMode(req.Mode)
	rec := history.Record{Username: req.Username, Mode: string(mode), Provider: req.Provider}
	if err != nil {
		rec.Mode = req.Mode
	}
	log := logging.From(ctx).WithFields(logrus.Fields{"component": "convert", "mode": rec.Mode})

	defer func() {
		elapsed := time.Since(start)
		rec.Duration = elapsed
		if err != nil {
			rec.Status = history.StatusFailed
			rec.ErrorKind = apperr.KindOf(err).String()
			log.WithField("kind", rec.ErrorKind).WithError(err).Warn("conversion failed")
			run.emit(Event{Type: EventError, Error: apperr.PublicMessage(err)})
		} else {
			rec.Status = history.StatusSucceeded
			rec.Filename = out.Name
			rec.Bytes = len(out.Data)
			log.WithFields(logrus.Fields{"file": out.Name, "elapsed_ms": elapsed.Milliseconds()}).Info("conversion finished")
		}
		p.metrics.ObserveConversion(rec.Mode, elapsed, rec.Bytes, err)
		if p.history != nil {
			if herr := p.history.Record(ctx, rec); herr != nil {
				log.WithError(herr).Warn("history record failed")
			}
		}
	}()
	if err != nil {
		return emit.Output{}, err
	}

	if p.slots != nil {
		if err := p.slots.Acquire(ctx, 1); err != nil {
			return emit.Output{}, apperr.Wrap(apperr.Internal, err, "conversion slot unavailable")
		}
		defer p.slots.Release(1)
	}

	var payload *imageio.Payload
	if err := run.stage(StageIngest, func() error {
		var lerr error
		payload, lerr = imageio.Load(req.Image, p.maxImageBytes)
		return lerr
	}); err != nil {
		return emit.Output{}, err
	}

	tmp, err := imageio.WriteTemp(payload.Image)
	if err != nil {
		return emit.Output{}, apperr.Wrap(apperr.Internal, err, "failed to stage image")
	}
	defer func() {
		if cerr := tmp.Close(); cerr != nil {
			log.WithError(cerr).Warn("temp image cleanup failed")
		}
	}()

	switch mode {
	case ModeOCR:
		out, err = run.ocr(ctx, payload, req.Username)
	default:
		var png []byte
		if png, err = tmp.Bytes(); err != nil {
			return emit.Output{}, apperr.Wrap(apperr.Internal, err, "failed to read staged image")
		}
		refine := p.refineDefault
		if req.Refine != nil {
			refine = *req.Refine
		}
		out, err = run.generated(ctx, codegen.Input{
			Image:    png,
			MIME:     "image/png",
			Provider: req.Provider,
			Mode:     codegen.Mode(mode),
			Refine:   refine,
		}, req.Username, &rec)
	}
	if err != nil {
		return emit.Output{}, err
	}
	run.emit(Event{Type: EventDone, Name: out.Name, ContentType: out.ContentType, Size: len(out.Data), URL: out.URL})
	return out, nil
}
