package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIGenerator calls the chat completions endpoint directly, without the agent
// runtime. The reference document is fetched up front and passed as system context.
type OpenAIGenerator struct {
	apiKey    string
	model     string
	maxTokens int
	client    openai.Client
}

// NewOpenAIGenerator creates a chat completions client. baseURL may be empty for
// the default OpenAI endpoint. The SDK's own retries are disabled.
func NewOpenAIGenerator(apiKey, baseURL, model string, maxTokens, poolSize int) *OpenAIGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(NewPooledHTTPClient(poolSize, 10*time.Minute)),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIGenerator{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		client:    openai.NewClient(opts...),
	}
}

// Generate runs one chat completion for the stage.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if g.apiKey == "" {
		return nil, ErrMissingCredential
	}
	start := time.Now()

	docContext, err := toolContext(ctx, req.Tools)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: toOpenAIMessages(chatMessages(req, docContext)),
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(g.maxTokens))
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, &MissingFieldError{Stage: req.Stage, Field: "choices"}
	}

	return &Result{
		Text:      completion.Choices[0].Message.Content,
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
