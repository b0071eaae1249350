package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/support-crew/gateway/internal/pipeline"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"GATEWAY_PORT", "OPENAI_API_KEY", "OPENAI_MODEL_NAME", "LLM_ENGINE", "DOCS_URL", "MAX_CONCURRENT_RUNS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "gpt-4-turbo", cfg.OpenAIModel)
	assert.Equal(t, "agents", cfg.Engine)
	assert.Equal(t, DefaultDocsURL, cfg.DocsURL)
	assert.Equal(t, 8, cfg.MaxConcurrentRuns)
	assert.Empty(t, cfg.OpenAIKey)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_MODEL_NAME", "gpt-4o")
	t.Setenv("LLM_ENGINE", "ollama")
	t.Setenv("OLLAMA_MODEL", "mistral")
	t.Setenv("LLM_MAX_TOKENS", "512")

	cfg := Load()
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, 512, cfg.LLMMaxTokens)
	assert.Equal(t, "mistral", cfg.Model("ollama"))
	assert.Equal(t, "gpt-4o", cfg.Model("agents"))
}

func TestGenerators(t *testing.T) {
	cfg := Config{OpenAIModel: "gpt-4-turbo", OllamaURL: "http://localhost:11434", LLMPoolSize: 1}
	router := cfg.Generators()
	assert.Equal(t, []string{"agents", "ollama", "openai"}, router.Engines())

	gen, name, err := router.Route("bogus")
	require.NoError(t, err)
	assert.Equal(t, "agents", name)
	assert.IsType(t, &pipeline.AgentGenerator{}, gen)
}

func TestTools(t *testing.T) {
	assert.Empty(t, Config{}.Tools())

	tools := Config{DocsURL: "https://example.com/docs", LLMPoolSize: 1}.Tools()
	require.Contains(t, tools, pipeline.DocsToolName)
	assert.Equal(t, pipeline.DocsToolName, tools[pipeline.DocsToolName].Name())
}
