package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/pe-report-extractor/internal/llm"
	"github.com/garyjia/pe-report-extractor/internal/structuring"
	"github.com/garyjia/pe-report-extractor/internal/template"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsWithEnvKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, 600*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, int64(50<<20), cfg.Extraction.MaxFileSize)
	assert.Equal(t, "gsk-test", cfg.Providers.Groq.APIKey)
	assert.Equal(t, llm.DefaultGroqBaseURL, cfg.Providers.Groq.BaseURL)
	assert.Equal(t, CacheMemory, cfg.Structuring.Cache.Backend)
	require.Len(t, cfg.Structuring.Models, len(llm.DefaultModels()))
	assert.Equal(t, llm.DefaultModels()[0].Name, cfg.Structuring.Models[0].Name)

	ec := cfg.Structuring.EngineConfig()
	assert.Equal(t, 3, ec.Rounds)
	assert.Equal(t, 2*time.Second, ec.BaseDelay)
	assert.Less(t, ec.MaxBackoff(), cfg.Extraction.Timeout,
		"persistent rate limiting must surface before the request timeout")
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PDFX_SERVER_PORT", "9100")

	path := writeConfig(t, `
server:
  port: 8080
extraction:
  timeout: 90s
  max_files: 4
structuring:
  models:
    - name: gpt-4o-mini
      provider: openai
      max_tokens: 4096
  prompt_variant: full
  cache:
    backend: sqlite
    ttl: 2h
  templates:
    "2":
      marker_keys: [fund_nav]
      min_data_points: 5
notify:
  lark:
    chat_id: oc_123
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 4, cfg.Extraction.MaxFiles)
	assert.Equal(t, CacheSQLite, cfg.Structuring.Cache.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Structuring.Cache.TTL)
	assert.Equal(t, "full", cfg.Structuring.PromptVariant)
	assert.Equal(t, "oc_123", cfg.Notify.Lark.ChatID)

	require.Len(t, cfg.Structuring.Models, 1)
	assert.Equal(t, llm.ProviderOpenAI, cfg.Structuring.Models[0].Provider)
	assert.Equal(t, 4096, cfg.Structuring.Models[0].MaxTokens)

	rules, err := cfg.Structuring.Rules()
	require.NoError(t, err)
	require.Contains(t, rules, template.ID(2))
	assert.Equal(t, []string{"fund_nav"}, rules[template.ID(2)].MarkerKeys)
	assert.Equal(t, 5, rules[template.ID(2)].MinDataPoints)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_RequiresProviderKey(t *testing.T) {
	for _, k := range []string{"GROQ_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}

	_, err := Load("")
	assert.ErrorContains(t, err, "no structuring model has a configured provider key")
}

func TestValidate(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"origin scheme", func(c *Config) { c.Server.AllowedOrigins = []string{"localhost:3000"} }, "server.allowed_origins"},
		{"no database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"no rounds", func(c *Config) { c.Structuring.Rounds = 0 }, "structuring.rounds"},
		{"delay order", func(c *Config) { c.Structuring.MaxDelay = time.Millisecond }, "structuring.base_delay"},
		{"backoff exceeds timeout", func(c *Config) {
			c.Structuring.RateLimitRetries = 20
			c.Structuring.MaxDelay = time.Minute
		}, "extraction.timeout"},
		{"temperature", func(c *Config) { c.Structuring.Temperature = 3 }, "structuring.temperature"},
		{"variant", func(c *Config) { c.Structuring.PromptVariant = "verbose" }, "structuring.prompt_variant"},
		{"cache backend", func(c *Config) { c.Structuring.Cache.Backend = "redis" }, "structuring.cache.backend"},
		{"template key", func(c *Config) { c.Structuring.Templates = map[string]structuring.Rules{"9": {}} }, "structuring.templates"},
		{"no models", func(c *Config) { c.Structuring.Models = nil }, "structuring.models"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}

	assert.NoError(t, base.Validate())
}
