package trace

import (
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxErrLen = 500

// Writer is the subset of Store the tracer writes through.
type Writer interface {
	CreateRun(id string, startedAt time.Time) error
	UpdateRun(id string, durationMs float64, status, errMsg string) error
	CreateSpan(sp Span) error
}

type traceMsg struct {
	kind string // "run_create", "run_update", "span"
	// run fields
	runID      string
	startedAt  time.Time
	durationMs float64
	status     string
	errMsg     string
	// span fields
	span Span
}

// Tracer writes trace data asynchronously via a buffered channel.
// All methods are nil-safe (no-op on nil receiver). Records sent after Close
// are dropped.
type Tracer struct {
	store Writer
	ch    chan traceMsg
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewTracer creates a tracer draining into store. Must call Close when done.
func NewTracer(store Writer) *Tracer {
	t := &Tracer{
		store: store,
		ch:    make(chan traceMsg, 64),
		done:  make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *Tracer) drain() {
	defer close(t.done)
	for msg := range t.ch {
		t.handle(msg)
	}
}

func (t *Tracer) handle(m traceMsg) {
	handlers := map[string]func() error{
		"run_create": func() error { return t.store.CreateRun(m.runID, m.startedAt) },
		"run_update": func() error { return t.store.UpdateRun(m.runID, m.durationMs, m.status, m.errMsg) },
		"span":       func() error { return t.store.CreateSpan(m.span) },
	}
	fn, ok := handlers[m.kind]
	if !ok {
		return
	}
	if err := fn(); err != nil {
		slog.Warn("trace write failed", "kind", m.kind, "error", err)
	}
}

// StartRun records the start of a run under the caller's run ID.
func (t *Tracer) StartRun(runID string, startedAt time.Time) {
	if t == nil {
		return
	}
	t.send(traceMsg{kind: "run_create", runID: runID, startedAt: startedAt})
}

// EndRun finalizes a run.
func (t *Tracer) EndRun(runID string, durationMs float64, status, errMsg string) {
	if t == nil {
		return
	}
	t.send(traceMsg{
		kind:       "run_update",
		runID:      runID,
		durationMs: durationMs,
		status:     status,
		errMsg:     truncate(errMsg, maxErrLen),
	})
}

// RecordSpan records a completed stage.
func (t *Tracer) RecordSpan(runID, stage string, startedAt time.Time, durationMs float64, outputChars int, status, errMsg string) {
	if t == nil {
		return
	}
	t.send(traceMsg{
		kind: "span",
		span: Span{
			ID:          uuid.NewString(),
			RunID:       runID,
			Stage:       stage,
			StartedAt:   startedAt,
			DurationMs:  durationMs,
			OutputChars: outputChars,
			Status:      status,
			Error:       truncate(errMsg, maxErrLen),
		},
	})
}

func (t *Tracer) send(m traceMsg) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		slog.Debug("trace dropped after close", "kind", m.kind)
		return
	}
	t.ch <- m
}

// Close drains pending writes and shuts down the background goroutine.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.ch)
	}
	t.mu.Unlock()
	<-t.done
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
