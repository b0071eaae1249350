package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// ListOllamaModels queries Ollama /api/tags and returns installed chat model names.
func ListOllamaModels(ctx context.Context, ollamaURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", ollamaURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags status %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		if !strings.Contains(m.Name, "embed") {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

// ListOpenAIModels returns the chat-capable model IDs visible to apiKey, sorted.
func ListOpenAIModels(ctx context.Context, apiKey, baseURL string) ([]string, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key not set")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(5 * time.Second),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list openai models: %w", err)
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		if isChatModel(m.ID) {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func isChatModel(id string) bool {
	if strings.Contains(id, "embedding") || strings.Contains(id, "whisper") ||
		strings.Contains(id, "tts") || strings.Contains(id, "dall-e") {
		return false
	}
	return strings.HasPrefix(id, "gpt-") || strings.HasPrefix(id, "o1") ||
		strings.HasPrefix(id, "o3") || strings.HasPrefix(id, "o4")
}

// Catalog is the model listing for every configured engine. An engine that
// could not be queried reports its error instead of models.
type Catalog struct {
	Engine  string              `json:"engine"`
	Model   string              `json:"model"`
	Engines []string            `json:"engines"`
	Models  map[string][]string `json:"models"`
	Errors  map[string]string   `json:"errors,omitempty"`
}

// Sources tells Collect where each engine lists its models.
type Sources struct {
	OllamaURL     string
	OpenAIKey     string
	OpenAIBaseURL string
}

// Collect queries each engine. agents and openai share the OpenAI listing,
// which is fetched once.
func Collect(ctx context.Context, src Sources, engines []string) (map[string][]string, map[string]string) {
	found := make(map[string][]string, len(engines))
	failed := make(map[string]string)

	var openaiIDs []string
	var openaiErr error
	openaiDone := false

	for _, e := range engines {
		var ids []string
		var err error
		switch e {
		case "ollama":
			ids, err = ListOllamaModels(ctx, src.OllamaURL)
		case "openai", "agents":
			if !openaiDone {
				openaiIDs, openaiErr = ListOpenAIModels(ctx, src.OpenAIKey, src.OpenAIBaseURL)
				openaiDone = true
			}
			ids, err = openaiIDs, openaiErr
		default:
			err = fmt.Errorf("unknown engine %q", e)
		}
		if err != nil {
			failed[e] = err.Error()
			continue
		}
		found[e] = ids
	}
	return found, failed
}
