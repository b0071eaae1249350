package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/support-crew/gateway/internal/metrics"
	"github.com/hubenschmidt/support-crew/gateway/internal/pipeline"
	"github.com/hubenschmidt/support-crew/gateway/internal/present"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Runner executes one inquiry run.
type Runner interface {
	Run(ctx context.Context, inq pipeline.Inquiry, onEvent pipeline.EventCallback) (*pipeline.FinalResponse, error)
}

// HandlerConfig holds the shared runner for all sessions.
type HandlerConfig struct {
	Runner        Runner
	MaxConcurrent int
}

// Handler manages WebSocket inquiry sessions with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a WebSocket handler with a shared runner and concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 8
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
	}
}

// resultFrame carries the single presented outcome of a run.
type resultFrame struct {
	Type string       `json:"type"`
	View present.View `json:"view"`
}

type errorFrame struct {
	Type     string   `json:"type"`
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// ServeHTTP upgrades the connection and runs the session.
// Returns 503 if at max concurrent session capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		metrics.RunsRejected.WithLabelValues("capacity").Inc()
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.runSession(conn)
}

// runSession handles inquiries one at a time until the client disconnects.
// Each text frame is one JSON inquiry; a new one is read only after the
// previous run has produced its result frame.
func (h *Handler) runSession(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	send := newFrameSender(conn)
	slog.Info("session started", "remote", conn.RemoteAddr().String())

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			slog.Info("connection closed", "error", err)
			return
		}
		if msgType != websocket.TextMessage {
			send(errorFrame{Type: "error", Error: "expected a JSON text frame"})
			continue
		}

		inq, err := pipeline.DecodeInquiry(data)
		if err != nil {
			send(malformed(err))
			continue
		}

		resp, err := h.cfg.Runner.Run(ctx, inq, func(ev pipeline.Event) { send(ev) })
		send(resultFrame{Type: "result", View: present.Render(resp, err)})
	}
}

func malformed(err error) errorFrame {
	var mie *pipeline.MalformedInquiryError
	if errors.As(err, &mie) {
		return errorFrame{Type: "error", Error: "malformed inquiry", Problems: mie.Problems}
	}
	return errorFrame{Type: "error", Error: err.Error()}
}

func newFrameSender(conn *websocket.Conn) func(v any) {
	var mu sync.Mutex
	return func(v any) {
		mu.Lock()
		defer mu.Unlock()

		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return
		}
		if err = conn.WriteMessage(websocket.TextMessage, jsonBytes); err != nil {
			slog.Error("write frame", "error", err)
		}
	}
}
