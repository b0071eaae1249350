// Package web serves the inquiry form and the JSON inquiry API.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/hubenschmidt/support-crew/gateway/internal/metrics"
	"github.com/hubenschmidt/support-crew/gateway/internal/pipeline"
	"github.com/hubenschmidt/support-crew/gateway/internal/present"
)

//go:embed templates/index.html
var templateFS embed.FS

var page = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const maxBodyBytes = 64 << 10

// Runner executes one inquiry run.
type Runner interface {
	Run(ctx context.Context, inq pipeline.Inquiry, onEvent pipeline.EventCallback) (*pipeline.FinalResponse, error)
}

// Handler serves the form and API with admission control.
type Handler struct {
	runner Runner
	sem    chan struct{}
}

// NewHandler creates a handler that allows at most maxConcurrent runs in flight.
func NewHandler(runner Runner, maxConcurrent int) *Handler {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Handler{runner: runner, sem: make(chan struct{}, maxConcurrent)}
}

// Register wires the form and API routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /inquiries", h.handleForm)
	mux.HandleFunc("POST /api/inquiries", h.handleAPI)
}

type pageData struct {
	Inquiry pipeline.Inquiry
	View    *present.View
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, pageData{})
}

func (h *Handler) handleForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	inq := pipeline.NewInquiry(r.PostFormValue("customer"), r.PostFormValue("person"), r.PostFormValue("inquiry"))

	// The form page always renders; only the API reports failures through status codes.
	if view, ok := rejectInvalid(inq); !ok {
		renderPage(w, http.StatusOK, pageData{Inquiry: inq, View: &view})
		return
	}
	if !h.acquire() {
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}
	defer h.release()

	view := present.Render(h.runner.Run(r.Context(), inq, nil))
	renderPage(w, http.StatusOK, pageData{Inquiry: inq, View: &view})
}

func (h *Handler) handleAPI(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}
	inq, err := pipeline.DecodeInquiry(body)
	if err != nil {
		var mie *pipeline.MalformedInquiryError
		if errors.As(err, &mie) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed inquiry", "problems": mie.Problems})
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if view, ok := rejectInvalid(inq); !ok {
		writeJSON(w, view.Status(), view)
		return
	}
	if !h.acquire() {
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}
	defer h.release()

	view := present.Render(h.runner.Run(r.Context(), inq, nil))
	writeJSON(w, view.Status(), view)
}

// rejectInvalid answers incomplete inquiries before admission, so a full
// server still shows the validation warning.
func rejectInvalid(inq pipeline.Inquiry) (present.View, bool) {
	err := inq.Validate()
	if err == nil {
		return present.View{}, true
	}
	metrics.RunsRejected.WithLabelValues("validation").Inc()
	return present.Render(nil, err), false
}

func (h *Handler) acquire() bool {
	select {
	case h.sem <- struct{}{}:
		return true
	default:
		metrics.RunsRejected.WithLabelValues("capacity").Inc()
		return false
	}
}

func (h *Handler) release() { <-h.sem }

func renderPage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, data); err != nil {
		slog.Error("render page", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
