package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OLLAMA_BASE_URL", "LLM_MODEL", "EMBED_MODEL", "INDEX_BACKEND",
		"WEAVIATE_HOST", "WEAVIATE_URL", "PG_CONN", "SERVER_ADDR", "DEBUG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, "llama3", cfg.LLM.EmbedModel)
	assert.Equal(t, "Document", cfg.Index.Class)
	assert.Equal(t, "text", cfg.Index.TextKey)
	assert.Equal(t, 8080, cfg.Index.HTTPPort)
	assert.Equal(t, 50051, cfg.Index.GRPCPort)
	assert.Equal(t, 4, cfg.Index.TopK)
	assert.Equal(t, 1, cfg.Retrieval.Concurrency)
	assert.False(t, cfg.Decomposition.Strict)
	assert.Equal(t, StrategyHiRes, cfg.Ingest.Strategy)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
debug: true
llm:
  model: mistral
  timeout: 30s
index:
  backend: pgvector
  top_k: 6
retrieval:
  concurrency: 3
decomposition:
  strict: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, "llama3", cfg.LLM.EmbedModel)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, BackendPgvector, cfg.Index.Backend)
	assert.Equal(t, 6, cfg.Index.TopK)
	assert.Equal(t, 3, cfg.Retrieval.Concurrency)
	assert.True(t, cfg.Decomposition.Strict)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")
	t.Setenv("WEAVIATE_HOST", "weaviate")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://ollama:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "weaviate:8080", cfg.Index.HTTPAddr())
	assert.Equal(t, "weaviate:50051", cfg.Index.GRPCAddr())
}

func TestLoad_WeaviateURLWinsOverHost(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEAVIATE_HOST", "ignored")
	t.Setenv("WEAVIATE_URL", "https://vectors.internal:9090")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https", cfg.Index.Scheme)
	assert.Equal(t, "vectors.internal:9090", cfg.Index.HTTPAddr())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("DEBUG", "sometimes")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Index.Backend = "faiss" }},
		{"unknown strategy", func(c *Config) { c.Ingest.Strategy = "ocr" }},
		{"zero top_k", func(c *Config) { c.Index.TopK = 0 }},
		{"zero concurrency", func(c *Config) { c.Retrieval.Concurrency = 0 }},
		{"missing class", func(c *Config) { c.Index.Class = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestOpenAIBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:11434/v1", LLMConfig{BaseURL: "http://localhost:11434"}.OpenAIBaseURL())
	assert.Equal(t, "http://localhost:11434/v1", LLMConfig{BaseURL: "http://localhost:11434/"}.OpenAIBaseURL())
	assert.Equal(t, "http://host/v1", LLMConfig{BaseURL: "http://host/v1"}.OpenAIBaseURL())
}
