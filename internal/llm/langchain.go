package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"screendeck/internal/logging"
)

const (
	DefaultOllamaHost = "http://127.0.0.1:11434"
	GroqBaseURL       = "https://api.groq.com/openai/v1"
)

var defaultModels = map[string]string{
	"openai":    "gpt-4o",
	"groq":      "meta-llama/llama-4-scout-17b-16e-instruct",
	"anthropic": "claude-3-5-sonnet-latest",
	"ollama":    "llava",
	"mistral":   "pixtral-12b-latest",
}

// LangChainModel adapts a langchaingo model to Model.
type LangChainModel struct {
	provider string
	model    string
	llm      llms.Model
	// dataURL selects the image part encoding the provider accepts.
	dataURL bool
}

func (m *LangChainModel) Name() string { return m.provider + ":" + m.model }
func (m *LangChainModel) Close() error { return nil }

func (m *LangChainModel) Complete(ctx context.Context, req Request) (string, error) {
	var msgs []llms.MessageContent
	if req.System != "" {
		msgs = append(msgs, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.System)},
		})
	}
	var parts []llms.ContentPart
	if len(req.Image) > 0 {
		if m.dataURL {
			parts = append(parts, llms.ImageURLPart("data:"+req.mime()+";base64,"+base64.StdEncoding.EncodeToString(req.Image)))
		} else {
			parts = append(parts, llms.BinaryPart(req.mime(), req.Image))
		}
	}
	parts = append(parts, llms.TextPart(req.User))
	msgs = append(msgs, llms.MessageContent{Role: llms.ChatMessageTypeHuman, Parts: parts})

	opts := []llms.CallOption{llms.WithTemperature(req.Sampling.Temperature)}
	if req.Sampling.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.Sampling.MaxTokens))
	}
	if req.Sampling.TopP > 0 {
		opts = append(opts, llms.WithTopP(req.Sampling.TopP))
	}

	completion, err := m.llm.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", err
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := completion.Choices[0].Content
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// ProviderConfig holds what a provider constructor needs.
type ProviderConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewLangChainModel builds the langchaingo client for cfg.Provider.
func NewLangChainModel(cfg ProviderConfig) (*LangChainModel, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	model := cfg.Model
	if model == "" {
		model = defaultModels[provider]
	}
	var (
		lm      llms.Model
		err     error
		dataURL bool
	)
	switch provider {
	case "openai", "groq":
		lm, err = newOpenAI(cfg, provider, model)
		dataURL = true
	case "mistral":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: mistral API key is not set")
		}
		lm, err = mistral.New(mistral.WithModel(model), mistral.WithAPIKey(cfg.APIKey))
		dataURL = true
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: anthropic API key is not set")
		}
		lm, err = anthropic.New(anthropic.WithModel(model), anthropic.WithToken(cfg.APIKey))
	case "ollama":
		host := cfg.BaseURL
		if host == "" {
			host = DefaultOllamaHost
		}
		lm, err = ollama.New(ollama.WithModel(model), ollama.WithServerURL(host))
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("llm: create %s client: %w", provider, err)
	}
	return &LangChainModel{provider: provider, model: model, llm: lm, dataURL: dataURL}, nil
}

func newOpenAI(cfg ProviderConfig, provider, model string) (llms.Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: %s API key is not set", provider)
	}
	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(cfg.APIKey),
		openai.WithHTTPClient(&http.Client{Transport: &headerTransport{}}),
	}
	base := cfg.BaseURL
	if base == "" && provider == "groq" {
		base = GroqBaseURL
	}
	if base != "" {
		opts = append(opts, openai.WithBaseURL(base))
	}
	return openai.New(opts...)
}

// headerTransport tags outgoing calls so proxies can correlate them with
// gateway requests.
type headerTransport struct {
	base http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Header.Get("X-Title") == "" {
		req.Header.Set("X-Title", "screendeck")
	}
	if id, ok := logging.From(req.Context()).Data["request_id"].(string); ok && req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", id)
	}
	return base.RoundTrip(req)
}
