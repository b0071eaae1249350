// Package config reads process configuration from the environment once at startup.
package config

import (
	"github.com/hubenschmidt/support-crew/gateway/internal/env"
	"github.com/hubenschmidt/support-crew/gateway/internal/pipeline"
)

// DefaultDocsURL is the reference page the resolution agent may read.
const DefaultDocsURL = "https://crustdata.notion.site/Crustdata-Dataset-API-Detailed-Examples-b83bd0f1ec09452bb0c2cac811bba88c"

// Config is the gateway's process configuration.
type Config struct {
	Port              string
	OpenAIKey         string
	OpenAIModel       string
	OpenAIBaseURL     string
	Engine            string
	LLMMaxTokens      int
	LLMPoolSize       int
	OllamaURL         string
	OllamaModel       string
	DocsURL           string
	DocsMaxChars      int
	MaxConcurrentRuns int
	TraceDatabaseURL  string
}

// Load reads the environment. Call after any .env file has been loaded.
func Load() Config {
	return Config{
		Port:              env.Str("GATEWAY_PORT", "8000"),
		OpenAIKey:         env.Str("OPENAI_API_KEY", ""),
		OpenAIModel:       env.Str("OPENAI_MODEL_NAME", "gpt-4-turbo"),
		OpenAIBaseURL:     env.Str("OPENAI_BASE_URL", ""),
		Engine:            env.Str("LLM_ENGINE", "agents"),
		LLMMaxTokens:      env.Int("LLM_MAX_TOKENS", 2048),
		LLMPoolSize:       env.Int("LLM_POOL_SIZE", 10),
		OllamaURL:         env.Str("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:       env.Str("OLLAMA_MODEL", "llama3.2:3b"),
		DocsURL:           env.Str("DOCS_URL", DefaultDocsURL),
		DocsMaxChars:      env.Int("DOCS_MAX_CHARS", 20000),
		MaxConcurrentRuns: env.Int("MAX_CONCURRENT_RUNS", 8),
		TraceDatabaseURL:  env.Str("TRACE_DATABASE_URL", ""),
	}
}

// Generators builds every generation backend. A missing API key does not
// fail here; the OpenAI-backed engines report it when invoked.
func (c Config) Generators() *pipeline.GeneratorRouter {
	provider := pipeline.NewOpenAIAgentProvider(c.OpenAIKey, c.OpenAIBaseURL)
	return pipeline.NewGeneratorRouter(map[string]pipeline.Generator{
		"agents": pipeline.NewAgentGenerator(provider, c.OpenAIKey, c.OpenAIModel, c.LLMMaxTokens),
		"openai": pipeline.NewOpenAIGenerator(c.OpenAIKey, c.OpenAIBaseURL, c.OpenAIModel, c.LLMMaxTokens, c.LLMPoolSize),
		"ollama": pipeline.NewOllamaGenerator(c.OllamaURL, c.OllamaModel, c.LLMMaxTokens, c.LLMPoolSize),
	}, "agents")
}

// Tools builds the tools tasks may request by name. An empty DocsURL disables the docs tool.
func (c Config) Tools() map[string]pipeline.Tool {
	tools := map[string]pipeline.Tool{}
	if c.DocsURL != "" {
		tools[pipeline.DocsToolName] = pipeline.NewDocsRetriever(c.DocsURL, c.DocsMaxChars, c.LLMPoolSize)
	}
	return tools
}

// Model returns the model name the given engine runs.
func (c Config) Model(engine string) string {
	if engine == "ollama" {
		return c.OllamaModel
	}
	return c.OpenAIModel
}
