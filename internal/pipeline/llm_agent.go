package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/hubenschmidt/support-crew/gateway/internal/metrics"
)

// agentMaxTurns bounds the agent loop. Stage 1 needs one turn for the docs
// tool call and one for the answer; the rest is headroom.
const agentMaxTurns = 6

// AgentGenerator runs each stage as an agent on the openai-agents-go runtime,
// exposing stage tools as function tools the model may call.
type AgentGenerator struct {
	provider  agents.ModelProvider
	apiKey    string
	model     string
	maxTokens int
}

// NewOpenAIAgentProvider builds a chat-completions model provider. baseURL may be
// empty for the default OpenAI endpoint.
func NewOpenAIAgentProvider(apiKey, baseURL string) agents.ModelProvider {
	params := agents.OpenAIProviderParams{
		APIKey:       param.NewOpt(apiKey),
		UseResponses: param.NewOpt(false),
	}
	if baseURL != "" {
		params.BaseURL = param.NewOpt(baseURL)
	}
	return agents.NewOpenAIProvider(params)
}

// NewAgentGenerator creates an agent-backed generator for the given model.
func NewAgentGenerator(provider agents.ModelProvider, apiKey, model string, maxTokens int) *AgentGenerator {
	return &AgentGenerator{
		provider:  provider,
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Generate runs the stage's agent to completion and returns its final output.
func (a *AgentGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if a.apiKey == "" {
		return nil, ErrMissingCredential
	}

	name := req.Agent
	if name == "" {
		name = string(req.Stage)
	}
	settings := modelsettings.ModelSettings{}
	if a.maxTokens > 0 {
		settings.MaxTokens = param.NewOpt(int64(a.maxTokens))
	}
	agent := agents.New(name).
		WithInstructions(req.Instructions).
		WithModel(a.model).
		WithModelSettings(settings)

	tools := newAgentTools(req.Tools)
	if len(tools.defs) > 0 {
		agent = agent.WithTools(tools.defs...)
	}

	runner := agents.Runner{Config: agents.RunConfig{
		ModelProvider:   a.provider,
		MaxTurns:        agentMaxTurns,
		TracingDisabled: true,
	}}

	start := time.Now()

	result, err := runner.Run(ctx, agent, FormatInput(req.History, req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("agent run: %w", err)
	}
	if toolErr := tools.firstError(); toolErr != nil {
		return nil, toolErr
	}

	text, err := finalText(req.Stage, result)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:      text,
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}, nil
}

// finalText extracts the plain-text final output of an agent run.
func finalText(stage Stage, result *agents.RunResult) (string, error) {
	if result == nil || result.FinalOutput == nil {
		return "", &MissingFieldError{Stage: stage, Field: "final_output"}
	}
	switch out := result.FinalOutput.(type) {
	case string:
		return out, nil
	case fmt.Stringer:
		return out.String(), nil
	default:
		return fmt.Sprintf("%v", out), nil
	}
}

// FormatInput prepends prior turns to the current prompt so the agent sees the
// earlier exchange as conversational context.
func FormatInput(history []Message, current string) string {
	if len(history) == 0 {
		return current
	}
	var b strings.Builder
	for _, m := range history {
		label := "User"
		if m.Role == RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", label, m.Content)
	}
	fmt.Fprintf(&b, "User: %s", current)
	return b.String()
}

// agentTools adapts stage tools to SDK function tools and remembers the first
// failure, since the SDK reports tool errors back to the model instead of
// aborting the run.
type agentTools struct {
	defs []agents.Tool

	mu  sync.Mutex
	err error
}

func newAgentTools(tools []Tool) *agentTools {
	at := &agentTools{}
	for _, t := range tools {
		at.defs = append(at.defs, at.wrap(t))
	}
	return at
}

func (at *agentTools) wrap(t Tool) agents.FunctionTool {
	return agents.FunctionTool{
		Name:        t.Name(),
		Description: t.Description(),
		ParamsJSONSchema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"required":             []string{},
			"additionalProperties": false,
		},
		OnInvokeTool: func(ctx context.Context, _ string) (any, error) {
			out, err := t.Invoke(ctx)
			if err != nil {
				metrics.ToolCalls.WithLabelValues(t.Name(), "error").Inc()
				at.record(fmt.Errorf("tool %s: %w", t.Name(), err))
				return nil, err
			}
			metrics.ToolCalls.WithLabelValues(t.Name(), "ok").Inc()
			return out, nil
		},
	}
}

func (at *agentTools) record(err error) {
	at.mu.Lock()
	defer at.mu.Unlock()
	if at.err == nil {
		at.err = err
	}
}

func (at *agentTools) firstError() error {
	at.mu.Lock()
	defer at.mu.Unlock()
	return at.err
}
