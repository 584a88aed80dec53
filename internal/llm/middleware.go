package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"screendeck/internal/logging"
)

// Middleware decorates a Model with a cross-cutting concern
// (timeouts, rate limiting, retries, logging, metrics).
type Middleware func(Model) Model

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Model, mws ...Middleware) Model {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Timeout --------

// ErrTimeout reports a provider call that exceeded its bound.
var ErrTimeout = errors.New("llm: provider call timed out")

// Timeout bounds each call. d <= 0 disables the bound.
func Timeout(d time.Duration) Middleware {
	return func(next Model) Model {
		if d <= 0 {
			return next
		}
		return &timed{next: next, d: d}
	}
}

type timed struct {
	next Model
	d    time.Duration
}

func (t *timed) Name() string { return t.next.Name() }
func (t *timed) Close() error { return t.next.Close() }
func (t *timed) Complete(ctx context.Context, req Request) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	out, err := t.next.Complete(cctx, req)
	if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", fmt.Errorf("%w after %s: %v", ErrTimeout, t.d, err)
	}
	return out, err
}

// -------- Rate Limiting --------

// RateLimit throttles calls to rps with the given burst.
// If rps <= 0, the limiter is disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Model) Model {
		if rps <= 0 {
			return next
		}
		if burst <= 0 {
			burst = 1
		}
		return &rateLimited{next: next, rl: rate.NewLimiter(rate.Limit(rps), burst)}
	}
}

type rateLimited struct {
	next Model
	rl   *rate.Limiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error { return c.next.Close() }
func (c *rateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}
	return c.next.Complete(ctx, req)
}

// -------- Retry with exponential backoff --------

// Retry retries failed calls up to maxAttempts with exponential backoff
// starting at baseDelay. Empty responses are not retried here; the
// generator owns that policy.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Model) Model {
		if maxAttempts == 1 {
			return next
		}
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Model
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }
func (r *retrying) Complete(ctx context.Context, req Request) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		out, err := r.next.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		last = err
		if i == r.max-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.base * time.Duration(1<<i)):
		}
	}
	return "", last
}

// -------- Logging --------

// Logging logs request size, latency and errors through the request logger.
// A nil entry uses the process logger.
func Logging(base *logrus.Entry) Middleware {
	return func(next Model) Model {
		return &logged{next: next, base: base}
	}
}

type logged struct {
	next Model
	base *logrus.Entry
}

func (l *logged) Name() string { return l.next.Name() }
func (l *logged) Close() error { return l.next.Close() }
func (l *logged) Complete(ctx context.Context, req Request) (string, error) {
	entry := logging.From(ctx)
	if l.base != nil {
		entry = entry.WithFields(l.base.Data)
	}
	entry = entry.WithFields(logrus.Fields{
		"provider": l.next.Name(),
		"phase":    PhaseFrom(ctx),
	})
	entry.WithFields(logrus.Fields{
		"prompt_bytes": len(req.System) + len(req.User),
		"image_bytes":  len(req.Image),
	}).Debug("LLM request")
	start := time.Now()
	out, err := l.next.Complete(ctx, req)
	entry = entry.WithField("elapsed_ms", time.Since(start).Milliseconds())
	if err != nil {
		entry.WithError(err).Warn("LLM error")
		return out, err
	}
	entry.WithField("response_bytes", len(out)).Debug("LLM response")
	return out, nil
}

// -------- Metrics --------

// CallObserver receives one observation per provider call.
type CallObserver interface {
	ObserveCall(provider, phase string, elapsed time.Duration, err error)
}

// Instrument reports each call to obs. A nil obs disables it.
func Instrument(obs CallObserver) Middleware {
	return func(next Model) Model {
		if obs == nil {
			return next
		}
		return &instrumented{next: next, obs: obs}
	}
}

type instrumented struct {
	next Model
	obs  CallObserver
}

func (m *instrumented) Name() string { return m.next.Name() }
func (m *instrumented) Close() error { return m.next.Close() }
func (m *instrumented) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := m.next.Complete(ctx, req)
	m.obs.ObserveCall(m.next.Name(), PhaseFrom(ctx), time.Since(start), err)
	return out, err
}
