package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hubenschmidt/support-crew/gateway/internal/metrics"
)

// Message roles used in conversational history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversational context handed to a backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single generation call for one stage.
type Request struct {
	Stage        Stage
	Agent        string
	Instructions string
	Prompt       string
	History      []Message
	Tools        []Tool
}

// Result holds a stage's generated text with timing.
type Result struct {
	Text      string  `json:"text"`
	LatencyMs float64 `json:"latency_ms"`
}

// Generator turns a rendered prompt into text. Implementations must not retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Tool is a read-only capability a stage may consult.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context) (string, error)
}

// GeneratorRouter dispatches to the correct generation backend based on engine name.
type GeneratorRouter struct {
	*Router[Generator]
}

// NewGeneratorRouter creates a router with registered backends and a fallback default.
func NewGeneratorRouter(backends map[string]Generator, fallback string) *GeneratorRouter {
	return &GeneratorRouter{Router: NewRouter(backends, fallback)}
}

// toolContext invokes every tool up front for backends without native tool calling
// and joins the output into one context block.
func toolContext(ctx context.Context, tools []Tool) (string, error) {
	if len(tools) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(tools))
	for _, t := range tools {
		out, err := t.Invoke(ctx)
		if err != nil {
			metrics.ToolCalls.WithLabelValues(t.Name(), "error").Inc()
			return "", fmt.Errorf("tool %s: %w", t.Name(), err)
		}
		metrics.ToolCalls.WithLabelValues(t.Name(), "ok").Inc()
		parts = append(parts, out)
	}
	return strings.Join(parts, "\n---\n"), nil
}

// chatMessages lays out instructions, tool context, history and the prompt
// in the order chat-style backends expect.
func chatMessages(req Request, docContext string) []Message {
	msgs := make([]Message, 0, len(req.History)+3)
	if req.Instructions != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: req.Instructions})
	}
	if docContext != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: "Relevant context from reference documentation:\n" + docContext})
	}
	msgs = append(msgs, req.History...)
	return append(msgs, Message{Role: RoleUser, Content: req.Prompt})
}

// --- Ollama backend ---

// OllamaGenerator requests non-streamed chat completions from Ollama.
type OllamaGenerator struct {
	url       string
	model     string
	maxTokens int
	client    *http.Client
}

// NewOllamaGenerator creates an Ollama HTTP client.
func NewOllamaGenerator(url, model string, maxTokens, poolSize int) *OllamaGenerator {
	return &OllamaGenerator{
		url:       url,
		model:     model,
		maxTokens: maxTokens,
		client:    NewPooledHTTPClient(poolSize, 10*time.Minute),
	}
}

// Generate sends the stage prompt to Ollama and waits for the complete answer.
func (c *OllamaGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	docContext, err := toolContext(ctx, req.Tools)
	if err != nil {
		return nil, err
	}

	resp, err := c.postChatRequest(ctx, chatMessages(req, docContext))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode, body)
	}

	var out ollamaResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Message == nil {
		return nil, &MissingFieldError{Stage: req.Stage, Field: "message"}
	}

	return &Result{
		Text:      out.Message.Content,
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}, nil
}

func (c *OllamaGenerator) postChatRequest(ctx context.Context, messages []Message) (*http.Response, error) {
	reqBody := ollamaRequest{
		Model:    c.model,
		Stream:   false,
		Options:  ollamaOptions{NumPredict: c.maxTokens},
		Messages: messages,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/api/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}

	return resp, nil
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []Message     `json:"messages"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict"`
}

type ollamaResponse struct {
	Message *Message `json:"message"`
	Done    bool     `json:"done"`
}
