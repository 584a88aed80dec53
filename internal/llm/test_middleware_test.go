package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendeck/internal/logging"
	"screendeck/internal/tester"
)

// tagging appends its tag to the response so the wrap order is visible.
func tagging(tag string) Middleware {
	return func(next Model) Model { return &tagged{next: next, tag: tag} }
}

type tagged struct {
	next Model
	tag  string
}

func (t *tagged) Name() string { return t.next.Name() }
func (t *tagged) Close() error { return t.next.Close() }
func (t *tagged) Complete(ctx context.Context, req Request) (string, error) {
	out, err := t.next.Complete(ctx, req)
	return out + t.tag, err
}

func TestWrapOrder(t *testing.T) {
	m := Wrap(FakeText("f", "x"), tagging("A"), tagging("B"))
	out, err := m.Complete(context.Background(), Request{})
	tester.NoErr(t, err)
	// A(B(inner)): B runs closest to the model.
	tester.Eq(t, out, "xBA")
}

type blocking struct{}

func (blocking) Name() string { return "blocking" }
func (blocking) Close() error { return nil }
func (blocking) Complete(ctx context.Context, _ Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestTimeoutBoundsCall(t *testing.T) {
	m := Wrap(blocking{}, Timeout(20*time.Millisecond))
	start := time.Now()
	_, err := m.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTimeoutPassesCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Wrap(blocking{}, Timeout(time.Second)).Complete(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestRateLimitSpacing(t *testing.T) {
	// rps=20, burst=1: the second call waits about 50ms.
	m := Wrap(FakeText("f", "ok"), RateLimit(20, 1))
	ctx := context.Background()
	_, err := m.Complete(ctx, Request{})
	tester.NoErr(t, err)
	start := time.Now()
	_, err = m.Complete(ctx, Request{})
	tester.NoErr(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRateLimitDisabled(t *testing.T) {
	inner := FakeText("f", "ok")
	tester.True(t, Wrap(inner, RateLimit(0, 0)) == Model(inner))
}

func TestRetryStopsOnSuccess(t *testing.T) {
	f := NewFakeModel("f", FakeReply{Err: errors.New("boom")}, FakeReply{Text: "ok"})
	out, err := Wrap(f, Retry(3, time.Millisecond)).Complete(context.Background(), Request{})
	tester.NoErr(t, err)
	tester.Eq(t, out, "ok")
	tester.Eq(t, f.Calls(), 2)
}

func TestRetryReturnsLastError(t *testing.T) {
	f := NewFakeModel("f", FakeReply{Err: errors.New("boom")})
	_, err := Wrap(f, Retry(2, time.Millisecond)).Complete(context.Background(), Request{})
	tester.ErrContains(t, err, "boom")
	tester.Eq(t, f.Calls(), 2)
}

func TestLoggingCarriesRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logging.Setup("debug", "json", &buf)
	t.Cleanup(func() { logging.Setup("info", "json", nil) })

	ctx := logging.WithFields(context.Background(), logrus.Fields{"request_id": "req-7"})
	ctx = WithPhase(ctx, "refine")
	m := Wrap(NewFakeModel("f", FakeReply{Err: errors.New("quota")}), Logging(nil))
	_, err := m.Complete(ctx, Request{User: "hello"})
	require.Error(t, err)

	var warned map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["level"] == "warning" {
			warned = entry
		}
	}
	require.NotNil(t, warned)
	assert.Equal(t, "req-7", warned["request_id"])
	assert.Equal(t, "refine", warned["phase"])
	assert.Equal(t, "quota", warned["error"])
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) ObserveCall(provider, phase string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, provider+"/"+phase+"/"+boolString(err != nil))
}

func boolString(b bool) string {
	if b {
		return "err"
	}
	return "ok"
}

func TestInstrumentObservesEachCall(t *testing.T) {
	obs := &recordingObserver{}
	m := Wrap(NewFakeModel("f", FakeReply{Text: "a"}, FakeReply{Err: errors.New("x")}), Instrument(obs))
	_, _ = m.Complete(context.Background(), Request{})
	_, _ = m.Complete(WithPhase(context.Background(), "retry"), Request{})
	tester.Eq(t, obs.calls, []string{"f/generate/ok", "f/retry/err"})
}
