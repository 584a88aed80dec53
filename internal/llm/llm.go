// Package llm abstracts the multimodal providers that turn a screenshot and
// a prompt into text.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

type Model interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	Close() error
}

// Sampling parameters. Zero values leave the provider default in place,
// except Temperature, which is always sent.
type Sampling struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
}

type Request struct {
	System    string
	User      string
	Image     []byte
	ImageMIME string
	Sampling  Sampling
}

func (r Request) mime() string {
	if r.ImageMIME == "" {
		return "image/png"
	}
	return r.ImageMIME
}

type ctxKeyPhase struct{}

// WithPhase tags ctx with the generation phase ("generate", "retry", "refine").
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// PhaseFrom returns the phase stored in ctx, or "generate".
func PhaseFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyPhase{}).(string); ok && v != "" {
		return v
	}
	return "generate"
}
