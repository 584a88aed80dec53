// Package codegen asks a multimodal model for slide-building code and
// extracts it from the response.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"screendeck/internal/apperr"
	"screendeck/internal/codeblock"
	"screendeck/internal/llm"
	"screendeck/internal/logging"
)

type Mode string

const (
	// ModeScript produces a builder script for the sandbox.
	ModeScript Mode = "script"
	// ModeMacro produces a VBA procedure for an automation host.
	ModeMacro Mode = "macro"
)

// ParseMode accepts "script" (also the empty string) and "macro".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeScript:
		return ModeScript, nil
	case ModeMacro:
		return ModeMacro, nil
	}
	return "", apperr.New(apperr.Input, "unsupported mode: %s", s)
}

func (m Mode) lang() codeblock.Lang {
	if m == ModeMacro {
		return codeblock.VB
	}
	return codeblock.Python
}

func (m Mode) system() string {
	if m == ModeMacro {
		return macroPrompt
	}
	return scriptPrompt
}

var (
	ScriptSampling = llm.Sampling{Temperature: 0.1, MaxTokens: 4000, TopP: 0.9}
	MacroSampling  = llm.Sampling{Temperature: 0.0, MaxTokens: 5000}
)

// Script is the extracted code plus how it was obtained.
type Script struct {
	Raw      string
	Code     string
	Refined  bool
	Attempts int
	Provider string
	Mode     Mode
	Cached   bool

	key string
}

type Input struct {
	Image    []byte
	MIME     string
	Provider string
	Mode     Mode
	Refine   bool
}

// Checker statically checks refined code before it replaces the original.
type Checker func(mode Mode, code string) error

type Generator struct {
	models   *llm.Registry
	sampling map[Mode]llm.Sampling
	check    Checker
	cache    *ScriptCache
}

type Option func(*Generator)

// WithSampling overrides the sampling used for mode.
func WithSampling(mode Mode, s llm.Sampling) Option {
	return func(g *Generator) { g.sampling[mode] = s }
}

// WithChecker rejects refinements that fail check.
func WithChecker(check Checker) Option {
	return func(g *Generator) { g.check = check }
}

// WithCache serves repeated screenshots from c.
func WithCache(c *ScriptCache) Option {
	return func(g *Generator) { g.cache = c }
}

func New(models *llm.Registry, opts ...Option) *Generator {
	g := &Generator{
		models:   models,
		sampling: map[Mode]llm.Sampling{ModeScript: ScriptSampling, ModeMacro: MacroSampling},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns the code for in. Generation and Extraction failures are
// classified with apperr.
func (g *Generator) Generate(ctx context.Context, in Input) (*Script, error) {
	if in.Mode == "" {
		in.Mode = ModeScript
	}
	if len(in.Image) == 0 {
		return nil, apperr.New(apperr.Input, "no image provided")
	}
	model, err := g.models.Get(in.Provider)
	if err != nil {
		return nil, err
	}
	provider := g.models.Resolve(in.Provider)
	if g.cache == nil {
		return g.generate(ctx, model, provider, in)
	}
	key := CacheKey(in.Image, provider, in.Mode, in.Refine)
	s, err := g.cache.Do(key, func() (Script, error) {
		out, err := g.generate(ctx, model, provider, in)
		if err != nil {
			return Script{}, err
		}
		out.key = key
		return *out, nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Discard drops s from the cache. Callers use it when the code failed to
// run, so the next request for the same screenshot regenerates.
func (g *Generator) Discard(s *Script) {
	if g.cache == nil || s == nil || s.key == "" {
		return
	}
	g.cache.Remove(s.key)
}

func (g *Generator) generate(ctx context.Context, model llm.Model, provider string, in Input) (*Script, error) {
	log := logging.From(ctx).WithFields(logrus.Fields{
		"component": "codegen",
		"provider":  provider,
		"mode":      string(in.Mode),
	})
	req := llm.Request{
		System:    in.Mode.system(),
		User:      userPrompt,
		Image:     in.Image,
		ImageMIME: in.MIME,
		Sampling:  g.sampling[in.Mode],
	}

	out := &Script{Provider: provider, Mode: in.Mode}
	var (
		raw  string
		code string
		err  error
	)
	for attempt := 1; attempt <= 2; attempt++ {
		phase := "generate"
		if attempt == 2 {
			phase = "retry"
			req.User = userPrompt + strictAmendment(in.Mode)
		}
		out.Attempts = attempt
		raw, err = model.Complete(llm.WithPhase(ctx, phase), req)
		if err != nil && !errors.Is(err, llm.ErrEmptyResponse) {
			// Transport retries already happened in the middleware chain.
			break
		}
		if err == nil && strings.TrimSpace(raw) != "" {
			code, err = codeblock.Extract(raw, in.Mode.lang())
			if err == nil {
				break
			}
		}
		if attempt == 1 {
			log.WithError(err).Info("generation yielded no code, retrying with strict format")
		}
	}
	out.Raw = raw
	switch {
	case errors.Is(err, codeblock.ErrNotFound) && strings.TrimSpace(raw) != "":
		return nil, apperr.Wrap(apperr.Extraction, err, "no valid code generated")
	case err != nil && !errors.Is(err, llm.ErrEmptyResponse) && !errors.Is(err, codeblock.ErrNotFound):
		return nil, apperr.Wrap(apperr.Generation, err, "AI analysis failed: %s", providerMessage(err))
	case code == "":
		return nil, apperr.New(apperr.Generation, "AI analysis failed: empty response")
	}
	out.Code = code

	if in.Refine {
		g.refine(ctx, model, req, out, log)
	}
	return out, nil
}

// refine replaces out.Code only when the second pass yields usable code.
// Failures are logged and otherwise ignored.
func (g *Generator) refine(ctx context.Context, model llm.Model, base llm.Request, out *Script, log *logrus.Entry) {
	req := base
	req.User = refinePrompt(out.Mode, out.Code)
	raw, err := model.Complete(llm.WithPhase(ctx, "refine"), req)
	if err != nil {
		log.WithError(err).Info("refinement skipped: provider error")
		return
	}
	code, err := codeblock.Extract(raw, out.Mode.lang())
	if err != nil {
		log.Info("refinement skipped: no fenced block")
		return
	}
	if g.check != nil {
		if err := g.check(out.Mode, code); err != nil {
			log.WithError(err).Info("refinement skipped: refined code rejected")
			return
		}
	}
	out.Code = code
	out.Refined = true
}

// providerMessage keeps provider errors short enough to return to clients.
func providerMessage(err error) string {
	if errors.Is(err, llm.ErrTimeout) {
		return "provider timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}
	return apperr.Truncate(fmt.Sprint(err))
}
