package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  model: "mistral"
  max_tokens: 1000
  temperature: 0.5

embedding:
  model: "nomic-embed-text:latest"
  vector_dim: 768
  rate_limit: 5

database:
  url: "postgres://localhost:5432/test"
  chunk_table: "test_chunks"
  message_table: "test_messages"
  batch_size: 50

source:
  url_template: "https://docs.example.com/%s"
  timeout_secs: 15

ingest:
  chunk_size: 500
  chunk_overlap: 100

retrieval:
  top_k: 6

quota:
  free_limit: 3
  paid_limit: 100

server:
  addr: ":9090"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "mistral", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, 768, config.Embedding.VectorDim)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_chunks", config.Database.ChunkTable)
	assert.Equal(t, "https://docs.example.com/%s", config.Source.URLTemplate)
	assert.Equal(t, 500, config.Ingest.ChunkSize)
	assert.Equal(t, 6, config.Retrieval.TopK)
	assert.Equal(t, 3, config.Quota.FreeLimit)
	assert.Equal(t, ":9090", config.Server.Addr)

	// Fields absent from the file get defaults
	assert.Equal(t, 10, config.Server.LockWaitSecs)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  model: mistral\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, 2000, config.LLM.MaxTokens)
	assert.Equal(t, "nomic-embed-text:latest", config.Embedding.Model)
	assert.Equal(t, 768, config.Embedding.VectorDim)
	assert.Equal(t, "chunks", config.Database.ChunkTable)
	assert.Equal(t, "chat_messages", config.Database.MessageTable)
	assert.Equal(t, 1000, config.Ingest.ChunkSize)
	assert.Equal(t, 200, config.Ingest.ChunkOverlap)
	assert.Equal(t, 4, config.Retrieval.TopK)
	assert.Equal(t, 3, config.Quota.FreeLimit)
	assert.Equal(t, 100, config.Quota.PaidLimit)
	assert.Equal(t, ":8080", config.Server.Addr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
llm:
  base_url: "http://file:11434"
database:
  url: "postgres://file:5432/db"
`), 0644))

	t.Setenv("OLLAMA_BASE_URL", "http://env:11434")
	t.Setenv("DATABASE_URL", "postgres://env:5432/db")
	t.Setenv("LISTEN_ADDR", ":7070")

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://env:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env:5432/db", config.Database.URL)
	assert.Equal(t, ":7070", config.Server.Addr)
}

func validConfig() Config {
	config := Config{}
	applyDefaults(&config)
	return config
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*Config)
		expectedErrs int
		errorFields  []string
	}{
		{
			name:         "valid config",
			mutate:       func(c *Config) {},
			expectedErrs: 0,
		},
		{
			name:         "missing base URL",
			mutate:       func(c *Config) { c.LLM.BaseURL = "" },
			expectedErrs: 1,
			errorFields:  []string{"llm.base_url"},
		},
		{
			name:         "max_tokens out of range",
			mutate:       func(c *Config) { c.LLM.MaxTokens = 5000 },
			expectedErrs: 1,
			errorFields:  []string{"llm.max_tokens"},
		},
		{
			name:         "temperature out of range",
			mutate:       func(c *Config) { c.LLM.Temperature = 2.5 },
			expectedErrs: 1,
			errorFields:  []string{"llm.temperature"},
		},
		{
			name:         "vector_dim not positive",
			mutate:       func(c *Config) { c.Embedding.VectorDim = -1 },
			expectedErrs: 1,
			errorFields:  []string{"embedding.vector_dim"},
		},
		{
			name:         "overlap not below chunk size",
			mutate:       func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize },
			expectedErrs: 1,
			errorFields:  []string{"ingest.chunk_overlap"},
		},
		{
			name:         "top_k not positive",
			mutate:       func(c *Config) { c.Retrieval.TopK = 0 },
			expectedErrs: 1,
			errorFields:  []string{"retrieval.top_k"},
		},
		{
			name: "paid limit below free limit",
			mutate: func(c *Config) {
				c.Quota.FreeLimit = 10
				c.Quota.PaidLimit = 5
			},
			expectedErrs: 1,
			errorFields:  []string{"quota.paid_limit"},
		},
		{
			name: "multiple errors",
			mutate: func(c *Config) {
				c.LLM.BaseURL = ""
				c.Retrieval.TopK = 0
			},
			expectedErrs: 2,
			errorFields:  []string{"llm.base_url", "retrieval.top_k"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			errs := config.Validate()
			assert.Len(t, errs, tt.expectedErrs)

			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				fields = append(fields, e.Field)
				assert.NotEmpty(t, e.Error())
			}
			for _, field := range tt.errorFields {
				assert.Contains(t, fields, field)
			}
		})
	}
}
