package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getenv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(getenv(nil))
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 0.1, cfg.LLM.Temperature)
	assert.Equal(t, 4000, cfg.LLM.MaxTokens)
	assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 200000, cfg.Sandbox.MaxSteps)
	assert.Equal(t, 150, cfg.OCR.Threshold)
	assert.Equal(t, "memory", cfg.Documents.Store)
	assert.False(t, cfg.Documents.Persist)
	assert.False(t, cfg.Artifact.UseSSL, "local env disables ssl by default")
	assert.Equal(t, 20<<20, cfg.MaxImageBytes)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(getenv(map[string]string{
		"PORT":              ":9000",
		"APP_ENV":           "prod",
		"LLM_PROVIDER":      "OpenAI",
		"OPENAI_API_KEY":    "sk-test",
		"LLM_TIMEOUT":       "30",
		"SANDBOX_TIMEOUT":   "1500ms",
		"PERSIST_DOCUMENTS": "true",
		"DOCUMENT_STORE":    "file",
		"MINIO_ROOT_USER":   "minio",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey("openai"))
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Sandbox.Timeout)
	assert.True(t, cfg.Documents.Persist)
	assert.Equal(t, "minio", cfg.Artifact.AccessKey)
	assert.True(t, cfg.Artifact.UseSSL)
	assert.False(t, cfg.Artifact.CanUseS3())
}

func TestFromEnvCollectsErrors(t *testing.T) {
	_, err := FromEnv(getenv(map[string]string{
		"LLM_MAX_TOKENS": "many",
		"REFINE_DEFAULT": "sometimes",
		"DOCUMENT_STORE": "tape",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_MAX_TOKENS")
	assert.Contains(t, err.Error(), "REFINE_DEFAULT")
	assert.Contains(t, err.Error(), `unknown store "tape"`)
}
