package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// Force a missing path so only defaults and env apply.
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, cfg)

	cfg, err = getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "nomic-embed-text:latest", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.VectorDim)
	assert.Equal(t, "grants_index.json", cfg.Index.Path)
	assert.Equal(t, "grants.json", cfg.Index.GrantsFile)
	assert.Equal(t, 1000, cfg.Processor.ChunkSize)
	assert.Equal(t, 200, cfg.Processor.ChunkOverlap)
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.Equal(t, "grant_chunks", cfg.Database.TableName)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
llm:
  model: mistral
  max_tokens: 1024
embedding:
  vector_dim: 384
search:
  top_k: 5
server:
  port: "9090"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, 1024, cfg.LLM.MaxTokens)
	assert.Equal(t, 384, cfg.Embedding.VectorDim)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, "9090", cfg.Server.Port)

	// Unset fields still get defaults.
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, 1000, cfg.Processor.ChunkSize)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not a map"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://ollama.internal:11434")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/grants")
	t.Setenv("PORT", "3000")

	cfg, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://ollama.internal:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "http://ollama.internal:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, "postgres://user:pass@db:5432/grants", cfg.Database.URL)
	assert.Equal(t, "3000", cfg.Server.Port)
}

func TestValidatePassesOnDefaults(t *testing.T) {
	cfg, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Empty(t, cfg.Validate())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg, err := getDefaultConfig()
	require.NoError(t, err)

	cfg.LLM.BaseURL = ""
	cfg.LLM.MaxTokens = 10000
	cfg.LLM.Temperature = 3.5
	cfg.Search.TopK = -1
	cfg.Processor.ChunkOverlap = cfg.Processor.ChunkSize

	errs := cfg.Validate()
	require.NotEmpty(t, errs)

	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	assert.True(t, fields["llm.base_url"])
	assert.True(t, fields["llm.max_tokens"])
	assert.True(t, fields["llm.temperature"])
	assert.True(t, fields["search.top_k"])
	assert.True(t, fields["processor.chunk_overlap"])
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidationError{Field: "search.top_k", Message: "top_k must be positive"}
	assert.Equal(t, "search.top_k: top_k must be positive", err.Error())
}
