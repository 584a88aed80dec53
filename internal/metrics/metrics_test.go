package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendeck/internal/apperr"
	"screendeck/internal/llm"
)

var _ llm.CallObserver = (*Metrics)(nil)

func TestObserveConversion(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("test", reg)
	require.NoError(t, err)

	m.ObserveConversion("script", time.Second, 100, nil)
	m.ObserveConversion("script", time.Second, 0, apperr.New(apperr.Validation, "bad"))
	m.ObserveConversion("ocr", time.Second, 50, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.conversions.WithLabelValues("script", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conversions.WithLabelValues("script", "validation")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.documentBytes))
}

func TestObserveCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("test", reg)
	require.NoError(t, err)

	m.ObserveCall("gemini", "generate", time.Millisecond, nil)
	m.ObserveCall("gemini", "retry", time.Millisecond, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("gemini", "generate", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmCalls.WithLabelValues("gemini", "retry", "internal")))
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New("test", reg)
	require.NoError(t, err)
	b, err := New("test", reg)
	require.NoError(t, err)

	a.ObserveStage("generate", time.Second)
	b.ObserveStage("generate", time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(a.stageDuration))
	assert.Same(t, a.conversions, b.conversions)
}

func TestWatchCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("test", reg)
	require.NoError(t, err)
	require.NoError(t, m.WatchCache("test", "script", func() (uint64, uint64) { return 3, 4 }))

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[f.GetName()] = c.GetValue()
			}
		}
	}
	assert.Equal(t, 3.0, values["test_cache_hits_total"])
	assert.Equal(t, 4.0, values["test_cache_misses_total"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveConversion("script", time.Second, 1, nil)
	m.ObserveCall("x", "y", time.Second, nil)
	m.ObserveStage("s", time.Second)
	assert.NoError(t, m.WatchCache("", "c", func() (uint64, uint64) { return 0, 0 }))
}
