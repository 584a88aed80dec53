// Package sandbox validates and runs generated builder scripts in a
// restricted interpreter. Scripts see only the builder bindings and a small
// set of builtins; there is no filesystem, network or module access.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/sirupsen/logrus"

	"screendeck/internal/apperr"
	"screendeck/internal/logging"
	"screendeck/internal/pptx"
)

// EntryPoint is the function every script must define.
const EntryPoint = "create_slide"

const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxSteps = 200000
)

type Config struct {
	Timeout  time.Duration
	MaxSteps int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	return c
}

// Options carry per-run inputs.
type Options struct {
	// Image is bound as SOURCE_IMAGE. PNG, JPEG and GIF are accepted.
	Image []byte
	// Machine, if set, is advanced to Validated and Executed.
	Machine *Machine
}

// Report is the outcome of static checking.
type Report struct {
	Rewrites []Rewrite
	Repairs  []Repair
}

type Result struct {
	Report
	Document     pptx.Serializer
	Presentation *pptx.Presentation
	Output       []string
	Steps        int
}

// Sandbox is safe for concurrent use; every run gets a fresh namespace.
type Sandbox struct {
	cfg Config
}

func New(cfg Config) *Sandbox {
	return &Sandbox{cfg: cfg.withDefaults()}
}

// Check parses, rewrites and validates code without running it.
func (s *Sandbox) Check(code string) (Report, error) {
	_, rep, err := prepare(code)
	return rep, err
}

func prepare(code string) (*Module, Report, error) {
	mod, err := Parse(code)
	if err != nil {
		return nil, Report{}, apperr.Wrap(apperr.Validation, err, "invalid script: %s", apperr.Truncate(err.Error()))
	}
	rep := Report{Rewrites: rewriteModule(mod)}
	if rep.Repairs, err = validate(mod); err != nil {
		return nil, rep, apperr.Wrap(apperr.Validation, err, "%s", apperr.Truncate(err.Error()))
	}
	return mod, rep, nil
}

// Run validates code and, if it passes, executes it and calls create_slide.
func (s *Sandbox) Run(ctx context.Context, code string, opts Options) (*Result, error) {
	m := opts.Machine
	if m == nil {
		m = NewMachine(nil)
	}
	log := logging.From(ctx).WithField("component", "sandbox")
	res, err := s.run(ctx, code, opts, m, log)
	if err != nil {
		m.Fail(err.Error())
		log.WithField("kind", apperr.KindOf(err).String()).WithError(err).Warn("script rejected")
		return nil, err
	}
	return res, nil
}

func (s *Sandbox) run(ctx context.Context, code string, opts Options, m *Machine, log *logrus.Entry) (*Result, error) {
	mod, rep, err := prepare(code)
	if err != nil {
		return nil, err
	}
	for _, r := range rep.Rewrites {
		log.WithField("rewrite", r.String()).Debug("script rewritten")
	}
	for _, r := range rep.Repairs {
		log.WithField("repair", r.String()).Debug("binding supplied")
	}
	if err := advance(m, StageValidated); err != nil {
		return nil, err
	}
	src, err := newSourceImage(opts.Image)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	in := newInterp(ctx, newNamespace(src), s.cfg.MaxSteps)
	start := time.Now()
	ret, err := execute(in, mod)
	log.WithFields(logrus.Fields{"steps": in.Steps(), "elapsed": time.Since(start).String()}).Debug("script finished")
	if err != nil {
		return nil, err
	}
	doc, ok := ret.(pptx.Serializer)
	if !ok {
		return nil, apperr.New(apperr.Validation, "%s() did not return a presentation", EntryPoint)
	}
	if err := advance(m, StageExecuted); err != nil {
		return nil, err
	}
	res := &Result{Report: rep, Document: doc, Output: in.Output(), Steps: in.Steps()}
	if p, ok := ret.(*presentationObj); ok {
		res.Presentation = p.Document()
	}
	return res, nil
}

func advance(m *Machine, to Stage) error {
	// A caller that never marked extraction hands over a Pending machine.
	if to == StageValidated && m.Stage() == StagePending {
		if err := m.Advance(StageExtracted); err != nil {
			return apperr.Wrap(apperr.Internal, err, "stage transition failed")
		}
	}
	if err := m.Advance(to); err != nil {
		return apperr.Wrap(apperr.Internal, err, "stage transition failed")
	}
	return nil
}

// execute runs the module body, then the entry point. Go panics inside the
// interpreter surface as execution errors.
func execute(in *Interp, mod *Module) (ret Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			ret, err = nil, execError(fmt.Errorf("internal fault: %v", r))
		}
	}()
	if err := in.execModule(mod); err != nil {
		return nil, execError(err)
	}
	fn, ok := in.globals[EntryPoint].(*Function)
	if !ok {
		return nil, apperr.New(apperr.Validation, "%s() not defined", EntryPoint)
	}
	for i, p := range fn.Def.Params {
		if fn.Defaults[i] == nil {
			return nil, apperr.New(apperr.Validation, "%s() requires arguments (%s)", EntryPoint, p.Name)
		}
	}
	v, err := in.callFunction(fn, Args{})
	if err != nil {
		return nil, execError(err)
	}
	return v, nil
}

func execError(err error) error {
	return apperr.Wrap(apperr.Execution, err, "%s", apperr.Truncate("Execution error: "+err.Error()))
}

func newSourceImage(data []byte) (*sourceImage, error) {
	if len(data) == 0 {
		return nil, nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.Input, err, "invalid image data")
	}
	switch format {
	case "png", "jpeg", "gif":
	default:
		return nil, apperr.Wrap(apperr.Input, errors.New(format), "unsupported source image format %s", format)
	}
	ext := format
	if ext == "jpeg" {
		ext = "jpg"
	}
	return &sourceImage{data: data, ext: ext, width: cfg.Width, height: cfg.Height}, nil
}
