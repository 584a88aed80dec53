package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"screendeck/internal/apperr"
)

// Providers lists the names Open understands.
var Providers = []string{"gemini", "openai", "groq", "anthropic", "ollama", "mistral", "fake"}

// Open constructs the provider named by cfg.Provider.
func Open(ctx context.Context, cfg ProviderConfig) (Model, error) {
	switch normalize(cfg.Provider) {
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: gemini API key is not set")
		}
		return NewGeminiModel(ctx, cfg.APIKey, cfg.Model)
	case "fake":
		return NewFakeModel("fake"), nil
	default:
		return NewLangChainModel(cfg)
	}
}

// Registry maps provider names to ready models. Requests pick a provider by
// name; an empty name selects the default.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
	def    string
}

func NewRegistry(defaultProvider string) *Registry {
	return &Registry{models: map[string]Model{}, def: normalize(defaultProvider)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds or replaces the model for name.
func (r *Registry) Register(name string, m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[normalize(name)] = m
}

// Get resolves name. Unknown names are Input errors.
func (r *Registry) Get(name string) (Model, error) {
	key := normalize(name)
	if key == "" {
		key = r.def
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[key]
	if !ok {
		return nil, apperr.New(apperr.Input, "unknown provider: %s", key)
	}
	return m, nil
}

// Resolve returns the registered name that Get would use for name.
func (r *Registry) Resolve(name string) string {
	if key := normalize(name); key != "" {
		return key
	}
	return r.def
}

func (r *Registry) Default() string { return r.def }

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.models))
	for n := range r.models {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, m := range r.models {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
