package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	LLM           LLMConfig
	RefineDefault bool
	Sandbox       SandboxConfig
	OCR           OCRConfig
	Documents     DocumentConfig
	Artifact      ArtifactConfig

	DatabaseURL       string
	AutomationHostURL string
	ScriptCacheSize   int
	MaxImageBytes     int
	MaxConcurrent     int
}

type LLMConfig struct {
	Provider string
	Model    string

	GeminiAPIKey    string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GroqAPIKey      string
	AnthropicAPIKey string
	MistralAPIKey   string
	OllamaHost      string

	Timeout     time.Duration
	RPS         float64
	Burst       int
	Retries     int
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// APIKey returns the credential configured for provider.
func (c LLMConfig) APIKey(provider string) string {
	switch provider {
	case "gemini":
		return c.GeminiAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "groq":
		return c.GroqAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "mistral":
		return c.MistralAPIKey
	}
	return ""
}

// BaseURL returns the endpoint override for provider, if any.
func (c LLMConfig) BaseURL(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIBaseURL
	case "ollama":
		return c.OllamaHost
	}
	return ""
}

type SandboxConfig struct {
	Timeout  time.Duration
	MaxSteps int
}

type OCRConfig struct {
	Enabled       bool
	Languages     string
	Scale         float64
	FontScale     float64
	MinConfidence float64
	Threshold     int
}

type DocumentConfig struct {
	Persist   bool
	Store     string
	OutputDir string
}

type ArtifactConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether enough is configured to open a bucket.
func (a ArtifactConfig) CanUseS3() bool {
	return a.Endpoint != "" && a.AccessKey != "" && a.SecretKey != "" && a.Bucket != ""
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Malformed values are reported
// together.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := &env{get: getenv}

	env := e.str("APP_ENV", "local")
	cfg := &Config{
		Port:      NormalizePort(e.str("PORT", "8081")),
		Env:       env,
		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "json"),
		LLM: LLMConfig{
			Provider:        strings.ToLower(e.str("LLM_PROVIDER", "gemini")),
			Model:           e.str("LLM_MODEL", ""),
			GeminiAPIKey:    e.str("GEMINI_API_KEY", ""),
			OpenAIAPIKey:    e.str("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   e.str("OPENAI_BASE_URL", ""),
			GroqAPIKey:      e.str("GROQ_API_KEY", ""),
			AnthropicAPIKey: e.str("ANTHROPIC_API_KEY", ""),
			MistralAPIKey:   e.str("MISTRAL_API_KEY", ""),
			OllamaHost:      e.str("OLLAMA_HOST", ""),
			Timeout:         e.duration("LLM_TIMEOUT", 90*time.Second),
			RPS:             e.float("LLM_RPS", 0),
			Burst:           e.int("LLM_BURST", 1),
			Retries:         e.int("LLM_RETRIES", 1),
			Temperature:     e.float("LLM_TEMPERATURE", 0.1),
			MaxTokens:       e.int("LLM_MAX_TOKENS", 4000),
			TopP:            e.float("LLM_TOP_P", 0.9),
		},
		RefineDefault: e.bool("REFINE_DEFAULT", false),
		Sandbox: SandboxConfig{
			Timeout:  e.duration("SANDBOX_TIMEOUT", 5*time.Second),
			MaxSteps: e.int("SANDBOX_MAX_STEPS", 200000),
		},
		OCR: OCRConfig{
			Enabled:       e.bool("OCR_ENABLED", true),
			Languages:     e.str("OCR_LANGUAGES", "eng"),
			Scale:         e.float("OCR_SCALE", 100),
			FontScale:     e.float("OCR_FONT_SCALE", 1.3),
			MinConfidence: e.float("OCR_MIN_CONFIDENCE", 50),
			Threshold:     e.int("OCR_THRESHOLD", 150),
		},
		Documents: DocumentConfig{
			Persist:   e.bool("PERSIST_DOCUMENTS", false),
			Store:     strings.ToLower(e.str("DOCUMENT_STORE", "memory")),
			OutputDir: e.str("OUTPUT_DIR", "output"),
		},
		Artifact: ArtifactConfig{
			Endpoint:  e.str("ARTIFACT_S3_ENDPOINT", ""),
			Region:    e.str("ARTIFACT_S3_REGION", "us-east-1"),
			AccessKey: firstNonEmpty(e.str("ARTIFACT_S3_ACCESS_KEY", ""), e.str("MINIO_ROOT_USER", "")),
			SecretKey: firstNonEmpty(e.str("ARTIFACT_S3_SECRET_KEY", ""), e.str("MINIO_ROOT_PASSWORD", "")),
			Bucket:    e.str("ARTIFACT_S3_BUCKET", "screendeck-documents"),
			UseSSL:    e.bool("ARTIFACT_S3_USE_SSL", !strings.EqualFold(env, "local")),
		},
		DatabaseURL:       e.str("DATABASE_URL", ""),
		AutomationHostURL: e.str("AUTOMATION_HOST_URL", ""),
		ScriptCacheSize:   e.int("SCRIPT_CACHE_SIZE", 256),
		MaxImageBytes:     e.int("MAX_IMAGE_BYTES", 20<<20),
		MaxConcurrent:     e.int("MAX_CONCURRENT_CONVERSIONS", 0),
	}

	switch cfg.Documents.Store {
	case "memory", "file", "s3", "postgres":
	default:
		e.errs = append(e.errs, fmt.Errorf("DOCUMENT_STORE: unknown store %q", cfg.Documents.Store))
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NormalizePort prefixes a bare port with a colon.
func NormalizePort(p string) string {
	if strings.HasPrefix(p, ":") {
		return p
	}
	return ":" + p
}

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (e *env) float(key string, def float64) float64 {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (e *env) bool(key string, def bool) bool {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

// duration accepts Go durations ("90s") or bare seconds ("90").
func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(e.get(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
