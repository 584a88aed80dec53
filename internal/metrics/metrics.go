// Package metrics exports conversion and provider metrics to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"screendeck/internal/apperr"
)

const DefaultNamespace = "screendeck"

type Metrics struct {
	conversions   *prometheus.CounterVec
	convDuration  *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	llmCalls      *prometheus.CounterVec
	llmDuration   *prometheus.HistogramVec
	documentBytes prometheus.Counter

	reg prometheus.Registerer
}

// New registers all collectors on reg, reusing ones already registered
// under the same name. A nil reg uses the default registerer.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{reg: reg}
	var err error
	if m.conversions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversions_total",
		Help:      "Conversion attempts by mode and outcome.",
	}, []string{"mode", "outcome"})); err != nil {
		return nil, err
	}
	if m.convDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "conversion_duration_seconds",
		Help:      "End-to-end conversion latency.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"mode"})); err != nil {
		return nil, err
	}
	if m.stageDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Latency of individual pipeline stages.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	if m.llmCalls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_calls_total",
		Help:      "Provider calls by provider, phase and outcome.",
	}, []string{"provider", "phase", "outcome"})); err != nil {
		return nil, err
	}
	if m.llmDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_call_duration_seconds",
		Help:      "Provider call latency.",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 90},
	}, []string{"provider", "phase"})); err != nil {
		return nil, err
	}
	if m.documentBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "document_bytes_total",
		Help:      "Cumulative size of emitted documents.",
	})); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// Outcome is "ok" for nil, otherwise the error kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

func (m *Metrics) ObserveConversion(mode string, elapsed time.Duration, size int, err error) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(mode, Outcome(err)).Inc()
	m.convDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if err == nil && size > 0 {
		m.documentBytes.Add(float64(size))
	}
}

func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveCall implements llm.CallObserver.
func (m *Metrics) ObserveCall(provider, phase string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(provider, phase, Outcome(err)).Inc()
	m.llmDuration.WithLabelValues(provider, phase).Observe(elapsed.Seconds())
}

// WatchCache exports hit and miss counters read from stats on scrape.
func (m *Metrics) WatchCache(namespace, cache string, stats func() (hits, misses uint64)) error {
	if m == nil || stats == nil {
		return nil
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	labels := prometheus.Labels{"cache": cache}
	hits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "cache_hits_total",
		Help:        "Cache hits.",
		ConstLabels: labels,
	}, func() float64 { h, _ := stats(); return float64(h) })
	misses := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "cache_misses_total",
		Help:        "Cache misses.",
		ConstLabels: labels,
	}, func() float64 { _, ms := stats(); return float64(ms) })
	if _, err := register[prometheus.Collector](m.reg, hits); err != nil {
		return err
	}
	_, err := register[prometheus.Collector](m.reg, misses)
	return err
}
