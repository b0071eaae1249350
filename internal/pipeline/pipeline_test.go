package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/support-crew/gateway/internal/metrics"
	"github.com/hubenschmidt/support-crew/gateway/internal/prompts"
)

// fakeGenerator answers per stage and records every request it receives.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []Request
	answers map[Stage]string
	errs    map[Stage]error
}

func (f *fakeGenerator) Generate(_ context.Context, req Request) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err := f.errs[req.Stage]; err != nil {
		return nil, err
	}
	return &Result{Text: f.answers[req.Stage]}, nil
}

func (f *fakeGenerator) stages() []Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Stage, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Stage)
	}
	return out
}

type stubTool struct{ name string }

func (s stubTool) Name() string                           { return s.name }
func (s stubTool) Description() string                    { return "stub" }
func (s stubTool) Invoke(context.Context) (string, error) { return "docs", nil }

func newTestRunner(t *testing.T, gen Generator) *Runner {
	t.Helper()
	set, err := prompts.Default()
	require.NoError(t, err)
	return New(Config{
		Templates: set,
		Generator: gen,
		Tools:     map[string]Tool{DocsToolName: stubTool{name: DocsToolName}},
	})
}

func acmeInquiry() Inquiry {
	return Inquiry{Customer: "Acme", Person: "Jo", Body: "How do I use the search endpoint?"}
}

func TestRunner_Run_Success(t *testing.T) {
	gen := &fakeGenerator{answers: map[Stage]string{
		StageResolution:    "draft answer",
		StageQualityReview: "  Final **answer**\n",
	}}
	runner := newTestRunner(t, gen)

	resp, err := runner.Run(context.Background(), acmeInquiry(), nil)
	require.NoError(t, err)

	assert.Equal(t, "  Final **answer**\n", resp.Text)
	assert.NotEmpty(t, resp.RunID)
	require.Len(t, resp.Stages, 2)
	assert.Equal(t, StageResolution, resp.Stages[0].Stage)
	assert.Empty(t, resp.Stages[0].Text)
	assert.Equal(t, []Stage{StageResolution, StageQualityReview}, gen.stages())
}

func TestRunner_Run_StageRequests(t *testing.T) {
	gen := &fakeGenerator{answers: map[Stage]string{
		StageResolution:    "draft answer",
		StageQualityReview: "final",
	}}
	runner := newTestRunner(t, gen)

	_, err := runner.Run(context.Background(), acmeInquiry(), nil)
	require.NoError(t, err)
	require.Len(t, gen.calls, 2)

	first := gen.calls[0]
	assert.Equal(t, "support_agent", first.Agent)
	assert.Contains(t, first.Prompt, "Acme")
	assert.Contains(t, first.Prompt, "Jo")
	assert.Contains(t, first.Prompt, "How do I use the search endpoint?")
	assert.Contains(t, first.Instructions, "Senior Support Representative")
	assert.Empty(t, first.History)
	require.Len(t, first.Tools, 1)
	assert.Equal(t, DocsToolName, first.Tools[0].Name())

	second := gen.calls[1]
	assert.Equal(t, "support_quality_assurance_agent", second.Agent)
	assert.Contains(t, second.Prompt, "Acme")
	assert.NotContains(t, second.Prompt, "How do I use the search endpoint?")
	assert.Empty(t, second.Tools)
	require.Len(t, second.History, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: first.Prompt}, second.History[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "draft answer"}, second.History[1])
}

func TestRunner_Run_ValidationSkipsGeneration(t *testing.T) {
	gen := &fakeGenerator{}
	runner := newTestRunner(t, gen)

	for _, inq := range []Inquiry{
		{Customer: "", Body: "help"},
		{Customer: "Acme", Body: ""},
	} {
		resp, err := runner.Run(context.Background(), inq, nil)
		assert.Nil(t, resp)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	}
	assert.Empty(t, gen.calls)
}

func TestRunner_Run_StageOneFailureStopsPipeline(t *testing.T) {
	cause := errors.New("quota exceeded")
	gen := &fakeGenerator{errs: map[Stage]error{StageResolution: cause}}
	runner := newTestRunner(t, gen)

	resp, err := runner.Run(context.Background(), acmeInquiry(), nil)
	assert.Nil(t, resp)

	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, StageResolution, ge.Stage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []Stage{StageResolution}, gen.stages())
}

func TestRunner_Run_StageTwoFailure(t *testing.T) {
	gen := &fakeGenerator{
		answers: map[Stage]string{StageResolution: "draft"},
		errs:    map[Stage]error{StageQualityReview: errors.New("connection reset")},
	}
	runner := newTestRunner(t, gen)

	resp, err := runner.Run(context.Background(), acmeInquiry(), nil)
	assert.Nil(t, resp)
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, StageQualityReview, ge.Stage)
}

func TestRunner_Run_MissingField(t *testing.T) {
	tests := []struct {
		name  string
		gen   *fakeGenerator
		stage Stage
		field string
	}{
		{
			name:  "empty draft",
			gen:   &fakeGenerator{answers: map[Stage]string{StageResolution: "   "}},
			stage: StageResolution,
			field: "text",
		},
		{
			name: "backend reported",
			gen: &fakeGenerator{
				answers: map[Stage]string{StageResolution: "draft"},
				errs:    map[Stage]error{StageQualityReview: &MissingFieldError{Field: "choices"}},
			},
			stage: StageQualityReview,
			field: "choices",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newTestRunner(t, tt.gen)
			_, err := runner.Run(context.Background(), acmeInquiry(), nil)

			var mfe *MissingFieldError
			require.ErrorAs(t, err, &mfe)
			assert.Equal(t, tt.stage, mfe.Stage)
			assert.Equal(t, tt.field, mfe.Field)
		})
	}
}

func TestRunner_Run_Events(t *testing.T) {
	gen := &fakeGenerator{answers: map[Stage]string{
		StageResolution:    "draft answer",
		StageQualityReview: "final",
	}}
	runner := newTestRunner(t, gen)

	var events []Event
	_, err := runner.Run(context.Background(), acmeInquiry(), func(ev Event) { events = append(events, ev) })
	require.NoError(t, err)

	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{
		"run_started",
		"stage_started", "stage_done",
		"stage_started", "stage_done",
		"run_done",
	}, types)
	assert.Equal(t, StageResolution, events[1].Stage)
	assert.Equal(t, StageQualityReview, events[3].Stage)
}

func TestRunner_Run_UnconfiguredToolIsSkipped(t *testing.T) {
	set, err := prompts.Default()
	require.NoError(t, err)
	gen := &fakeGenerator{answers: map[Stage]string{
		StageResolution:    "draft",
		StageQualityReview: "final",
	}}
	runner := New(Config{Templates: set, Generator: gen})

	_, err = runner.Run(context.Background(), acmeInquiry(), nil)
	require.NoError(t, err)
	assert.Empty(t, gen.calls[0].Tools)
}

func TestClassify(t *testing.T) {
	err := classify(StageQualityReview, &MissingFieldError{Field: "final_output"})
	var mfe *MissingFieldError
	require.ErrorAs(t, err, &mfe)
	assert.Equal(t, StageQualityReview, mfe.Stage)

	existing := &GenerationError{Stage: StageResolution, Err: errors.New("x")}
	assert.Same(t, existing, classify(StageResolution, existing))

	assert.Equal(t, "missing_field", outcome(mfe))
	assert.Equal(t, "generation_error", outcome(existing))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRunner_Run_BackendFailureCountedOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	set, err := prompts.Default()
	require.NoError(t, err)
	runner := New(Config{Templates: set, Generator: NewOllamaGenerator(srv.URL, "llama3", 0, 1)})

	failed := metrics.Errors.WithLabelValues(string(StageResolution), "generation_error")
	before := counterValue(t, failed)

	_, err = runner.Run(context.Background(), acmeInquiry(), nil)
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)

	assert.Equal(t, before+1, counterValue(t, failed))
	for _, label := range []string{"status", "http", "generation"} {
		assert.Zero(t, counterValue(t, metrics.Errors.WithLabelValues(string(StageResolution), label)), label)
	}
}
