package trace

import "time"

// Run represents one inquiry workflow execution (resolution then quality review).
// Inquiry text is never stored.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	SpanCount  int       `json:"span_count,omitempty"`
}

// Span represents one stage's generation call.
type Span struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	Stage       string    `json:"stage"`
	StartedAt   time.Time `json:"started_at"`
	DurationMs  float64   `json:"duration_ms"`
	OutputChars int       `json:"output_chars"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}
