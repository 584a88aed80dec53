package llm

import (
	"context"
	"strings"

	genai "google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiModel is a thin wrapper around the official genai client.
type GeminiModel struct {
	cli   *genai.Client
	model string
}

func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &GeminiModel{cli: cli, model: model}, nil
}

func (g *GeminiModel) Name() string { return "gemini:" + g.model }
func (g *GeminiModel) Close() error { return nil }

// Complete sends the image inline followed by the user text.
func (g *GeminiModel) Complete(ctx context.Context, req Request) (string, error) {
	parts := []*genai.Part{}
	if len(req.Image) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: req.mime(), Data: req.Image}})
	}
	parts = append(parts, &genai.Part{Text: req.User})

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: parts}},
		geminiConfig(req),
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func geminiConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Sampling.Temperature)),
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Sampling.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(req.Sampling.TopP))
	}
	if req.Sampling.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Sampling.MaxTokens)
	}
	return cfg
}
