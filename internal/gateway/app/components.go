package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"screendeck/internal/automation"
	"screendeck/internal/codegen"
	"screendeck/internal/convert"
	"screendeck/internal/emit"
	"screendeck/internal/gateway/config"
	docrepo "screendeck/internal/gateway/repository/document"
	"screendeck/internal/gateway/repository/history"
	"screendeck/internal/layout"
	"screendeck/internal/llm"
	"screendeck/internal/logging"
	"screendeck/internal/metrics"
	"screendeck/internal/sandbox"
)

// Components is everything a conversion needs, shared by the gateway and the
// CLI.
type Components struct {
	Pipeline  *convert.Pipeline
	Registry  *llm.Registry
	Sandbox   *sandbox.Sandbox
	Documents docrepo.Store
	History   history.Store
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	OCR       bool

	stores *stores
}

func (c *Components) Close() error {
	var errs []error
	if c.Registry != nil {
		errs = append(errs, c.Registry.Close())
	}
	if c.stores != nil {
		c.stores.close()
	}
	return errors.Join(errs...)
}

func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(metrics.DefaultNamespace, reg)
	if err != nil {
		return nil, err
	}

	models, err := buildRegistry(ctx, cfg.LLM, m)
	if err != nil {
		return nil, err
	}
	st, err := initStores(ctx, cfg)
	if err != nil {
		_ = models.Close()
		return nil, err
	}

	box := sandbox.New(sandbox.Config{Timeout: cfg.Sandbox.Timeout, MaxSteps: cfg.Sandbox.MaxSteps})
	genOpts := []codegen.Option{
		codegen.WithSampling(codegen.ModeScript, llm.Sampling{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			TopP:        cfg.LLM.TopP,
		}),
		codegen.WithChecker(func(mode codegen.Mode, code string) error {
			if mode != codegen.ModeScript {
				return nil
			}
			_, err := box.Check(code)
			return err
		}),
	}
	cache, err := codegen.NewScriptCache(cfg.ScriptCacheSize)
	if err != nil {
		st.close()
		_ = models.Close()
		return nil, err
	}
	if cache != nil {
		genOpts = append(genOpts, codegen.WithCache(cache))
		if err := m.WatchCache(metrics.DefaultNamespace, "script", func() (uint64, uint64) {
			h, ms := cache.Stats()
			return uint64(h), uint64(ms)
		}); err != nil {
			st.close()
			_ = models.Close()
			return nil, err
		}
	}
	if st.cache != nil {
		dc := st.cache
		if err := m.WatchCache(metrics.DefaultNamespace, "document", func() (uint64, uint64) {
			s := dc.Stats()
			return s.Hits, s.Misses
		}); err != nil {
			st.close()
			_ = models.Close()
			return nil, err
		}
	}

	var emitOpts []emit.Option
	if st.documents != nil {
		emitOpts = append(emitOpts, emit.WithStore(st.documents))
	}

	opts := []convert.Option{
		convert.WithHistory(st.history),
		convert.WithMetrics(m),
		convert.WithMaxImageBytes(cfg.MaxImageBytes),
		convert.WithRefineDefault(cfg.RefineDefault),
		convert.WithConcurrency(cfg.MaxConcurrent),
	}
	ocr := false
	if cfg.OCR.Enabled {
		if rec := newRecognizer(cfg.OCR.Languages); rec != nil {
			opts = append(opts, convert.WithOCR(layout.NewExtractor(rec, layout.Params{
				Scale:         cfg.OCR.Scale,
				FontScale:     cfg.OCR.FontScale,
				MinConfidence: cfg.OCR.MinConfidence,
				Threshold:     cfg.OCR.Threshold,
			})))
			ocr = true
		}
	}
	if u := strings.TrimSpace(cfg.AutomationHostURL); u != "" {
		client := &http.Client{Timeout: 5 * time.Minute}
		opts = append(opts, convert.WithAutomation(automation.NewHTTPHostFactory(u, client)))
	}

	return &Components{
		Pipeline:  convert.New(codegen.New(models, genOpts...), box, emit.New(emitOpts...), opts...),
		Registry:  models,
		Sandbox:   box,
		Documents: st.documents,
		History:   st.history,
		Metrics:   m,
		Gatherer:  reg,
		OCR:       ocr,
		stores:    st,
	}, nil
}

// buildRegistry opens the default provider, which must succeed, and every
// other provider with credentials.
func buildRegistry(ctx context.Context, cfg config.LLMConfig, obs llm.CallObserver) (*llm.Registry, error) {
	log := logging.Component("llm")
	reg := llm.NewRegistry(cfg.Provider)
	mws := middlewares(cfg, obs, log)

	for _, name := range llm.Providers {
		isDefault := name == cfg.Provider
		if !isDefault && !configured(cfg, name) {
			continue
		}
		pc := llm.ProviderConfig{Provider: name, APIKey: cfg.APIKey(name), BaseURL: cfg.BaseURL(name)}
		if isDefault {
			pc.Model = cfg.Model
		}
		model, err := llm.Open(ctx, pc)
		if err != nil {
			if isDefault {
				_ = reg.Close()
				return nil, fmt.Errorf("default provider %s: %w", name, err)
			}
			log.WithError(err).WithField("provider", name).Warn("provider skipped")
			continue
		}
		reg.Register(name, llm.Wrap(model, mws...))
	}
	if _, err := reg.Get(""); err != nil {
		return nil, fmt.Errorf("unknown default provider %q", cfg.Provider)
	}
	return reg, nil
}

// retryDelay is the first backoff step of the provider retry.
var retryDelay = 500 * time.Millisecond

// middlewares builds the per-provider call chain. LLM_RETRIES counts
// retries, so a failing call is attempted Retries+1 times.
func middlewares(cfg config.LLMConfig, obs llm.CallObserver, log *logrus.Entry) []llm.Middleware {
	return []llm.Middleware{
		llm.Instrument(obs),
		llm.Logging(log),
		llm.Retry(cfg.Retries+1, retryDelay),
		llm.RateLimit(cfg.RPS, cfg.Burst),
		llm.Timeout(cfg.Timeout),
	}
}

func configured(cfg config.LLMConfig, provider string) bool {
	switch provider {
	case "fake":
		return false
	case "ollama":
		return cfg.OllamaHost != ""
	}
	return cfg.APIKey(provider) != ""
}
