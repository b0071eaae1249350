package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hubenschmidt/support-crew/gateway/internal/metrics"
	"github.com/hubenschmidt/support-crew/gateway/internal/prompts"
	"github.com/hubenschmidt/support-crew/gateway/internal/trace"
)

// Stage is one of the two sequential generation steps.
type Stage string

const (
	StageResolution    Stage = prompts.Resolution
	StageQualityReview Stage = prompts.QualityReview
)

// TaskResult is the text a stage produced.
type TaskResult struct {
	Stage     Stage   `json:"stage"`
	Text      string  `json:"-"`
	LatencyMs float64 `json:"latency_ms"`
}

// FinalResponse is what a run hands to the presenter. Text is the quality
// review output; the resolution draft is not exposed.
type FinalResponse struct {
	RunID   string       `json:"run_id"`
	Text    string       `json:"text"`
	Stages  []TaskResult `json:"stages"`
	TotalMs float64      `json:"total_ms"`
}

// Config holds pipeline configuration.
type Config struct {
	Templates *prompts.Set
	Generator Generator
	// Tools are looked up by the names a task lists. A task tool with no
	// entry here is skipped.
	Tools  map[string]Tool
	Tracer *trace.Tracer
}

// Runner executes the resolution → quality review workflow. Safe for
// concurrent use; each Run is strictly sequential.
type Runner struct {
	cfg Config
}

// New creates a runner.
func New(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// Event reports run progress. It never carries generated text.
type Event struct {
	Type      string  `json:"type"`
	RunID     string  `json:"run_id,omitempty"`
	Stage     Stage   `json:"stage,omitempty"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

// EventCallback is invoked for each progress event.
type EventCallback func(Event)

// Run validates the inquiry, drafts a response, then reviews it. Stage two
// starts only after stage one returned text. Any failure ends the run with
// no partial output.
func (r *Runner) Run(ctx context.Context, inq Inquiry, onEvent EventCallback) (*FinalResponse, error) {
	if err := inq.Validate(); err != nil {
		metrics.RunsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	start := time.Now()
	runID := uuid.NewString()
	r.cfg.Tracer.StartRun(runID, start)

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	onEvent(Event{Type: "run_started", RunID: runID})
	slog.Info("run started", "run_id", runID)

	draft, draftPrompt, err := r.runStage(ctx, runID, StageResolution, inq.resolutionValues(), nil, onEvent)
	if err != nil {
		return nil, r.fail(runID, start, err)
	}

	// The reviewer's template does not reference the draft; it sees it as the
	// preceding exchange in its conversation.
	history := []Message{
		{Role: RoleUser, Content: draftPrompt},
		{Role: RoleAssistant, Content: draft.Text},
	}
	final, _, err := r.runStage(ctx, runID, StageQualityReview, inq.reviewValues(), history, onEvent)
	if err != nil {
		return nil, r.fail(runID, start, err)
	}

	total := time.Since(start)
	metrics.E2EDuration.Observe(total.Seconds())
	metrics.RunsTotal.WithLabelValues("ok").Inc()
	r.cfg.Tracer.EndRun(runID, float64(total.Milliseconds()), "ok", "")

	slog.Info("run done", "run_id", runID, "total_ms", total.Milliseconds(),
		"resolution_ms", draft.LatencyMs, "quality_review_ms", final.LatencyMs)
	onEvent(Event{Type: "run_done", RunID: runID, LatencyMs: float64(total.Milliseconds())})

	return &FinalResponse{
		RunID:   runID,
		Text:    final.Text,
		Stages:  []TaskResult{stripText(draft), stripText(final)},
		TotalMs: float64(total.Milliseconds()),
	}, nil
}

// runStage renders the stage's persona and task, then calls the generator.
// It returns the stage result and the rendered task prompt.
func (r *Runner) runStage(ctx context.Context, runID string, stage Stage, values map[string]string, history []Message, onEvent EventCallback) (TaskResult, string, error) {
	prompt, err := r.cfg.Templates.Render(string(stage), values)
	if err != nil {
		return TaskResult{}, "", &GenerationError{Stage: stage, Err: err}
	}
	instructions, err := r.cfg.Templates.Instructions(string(stage), values)
	if err != nil {
		return TaskResult{}, "", &GenerationError{Stage: stage, Err: err}
	}

	req := Request{
		Stage:        stage,
		Instructions: instructions,
		Prompt:       prompt,
		History:      history,
		Tools:        r.stageTools(stage),
	}
	if p, ok := r.cfg.Templates.Persona(string(stage)); ok {
		req.Agent = p.Name
	}

	onEvent(Event{Type: "stage_started", RunID: runID, Stage: stage})
	stageStart := time.Now()

	res, err := r.cfg.Generator.Generate(ctx, req)
	latency := time.Since(stageStart)
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(latency.Seconds())

	if err == nil && (res == nil || strings.TrimSpace(res.Text) == "") {
		err = &MissingFieldError{Stage: stage, Field: "text"}
	}
	if err != nil {
		err = classify(stage, err)
		metrics.Errors.WithLabelValues(string(stage), outcome(err)).Inc()
		r.cfg.Tracer.RecordSpan(runID, string(stage), stageStart, float64(latency.Milliseconds()), 0, outcome(err), err.Error())
		onEvent(Event{Type: "stage_failed", RunID: runID, Stage: stage, LatencyMs: float64(latency.Milliseconds())})
		return TaskResult{}, "", err
	}

	r.cfg.Tracer.RecordSpan(runID, string(stage), stageStart, float64(latency.Milliseconds()), len(res.Text), "ok", "")
	slog.Info("stage done", "run_id", runID, "stage", stage, "llm_ms", latency.Milliseconds(), "chars", len(res.Text))
	onEvent(Event{Type: "stage_done", RunID: runID, Stage: stage, LatencyMs: float64(latency.Milliseconds())})

	return TaskResult{Stage: stage, Text: res.Text, LatencyMs: float64(latency.Milliseconds())}, prompt, nil
}

func (r *Runner) stageTools(stage Stage) []Tool {
	task, ok := r.cfg.Templates.Task(string(stage))
	if !ok {
		return nil
	}
	var tools []Tool
	for _, name := range task.Tools {
		t, ok := r.cfg.Tools[name]
		if !ok {
			slog.Debug("stage tool not configured", "stage", stage, "tool", name)
			continue
		}
		tools = append(tools, t)
	}
	return tools
}

func (r *Runner) fail(runID string, start time.Time, err error) error {
	status := outcome(err)
	metrics.RunsTotal.WithLabelValues(status).Inc()
	r.cfg.Tracer.EndRun(runID, float64(time.Since(start).Milliseconds()), status, err.Error())
	slog.Error("run failed", "run_id", runID, "status", status, "error", err)
	return err
}

// classify keeps MissingFieldError as is and wraps everything else in a GenerationError.
func classify(stage Stage, err error) error {
	var mfe *MissingFieldError
	if errors.As(err, &mfe) {
		if mfe.Stage == "" {
			mfe.Stage = stage
		}
		return mfe
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge
	}
	return &GenerationError{Stage: stage, Err: err}
}

func outcome(err error) string {
	var mfe *MissingFieldError
	if errors.As(err, &mfe) {
		return "missing_field"
	}
	return "generation_error"
}

func stripText(tr TaskResult) TaskResult {
	tr.Text = ""
	return tr
}
