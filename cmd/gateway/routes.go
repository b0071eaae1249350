package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hubenschmidt/support-crew/gateway/internal/config"
	"github.com/hubenschmidt/support-crew/gateway/internal/models"
	"github.com/hubenschmidt/support-crew/gateway/internal/trace"
	"github.com/hubenschmidt/support-crew/gateway/internal/upstream"
	"github.com/hubenschmidt/support-crew/gateway/internal/web"
)

const (
	// defaultTraceRunLimit is how many trace runs are returned
	// when the caller omits the ?limit= query parameter.
	defaultTraceRunLimit = 20

	maxTraceRunLimit = 200
)

type deps struct {
	cfg        config.Config
	engine     string
	engines    []string
	prober     *upstream.Prober
	web        *web.Handler
	wsHandler  http.Handler
	traceStore *trace.Store
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	d.web.Register(mux)
	mux.Handle("/ws/inquiry", d.wsHandler)
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/models", d.handleModels)
	mux.HandleFunc("GET /api/services", d.handleServices)
	registerTraceRoutes(mux, d.traceStore)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (d deps) handleModels(w http.ResponseWriter, r *http.Request) {
	found, failed := models.Collect(r.Context(), models.Sources{
		OllamaURL:     d.cfg.OllamaURL,
		OpenAIKey:     d.cfg.OpenAIKey,
		OpenAIBaseURL: d.cfg.OpenAIBaseURL,
	}, d.engines)
	for engine, msg := range failed {
		slog.Warn("list models", "engine", engine, "error", msg)
	}

	writeJSON(w, http.StatusOK, models.Catalog{
		Engine:  d.engine,
		Model:   d.cfg.Model(d.engine),
		Engines: d.engines,
		Models:  found,
		Errors:  failed,
	})
}

func (d deps) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.prober.StatusAll(r.Context()))
}

func registerTraceRoutes(mux *http.ServeMux, store *trace.Store) {
	mux.HandleFunc("GET /api/traces/runs", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		limit := min(queryInt(r, "limit", defaultTraceRunLimit), maxTraceRunLimit)
		offset := queryInt(r, "offset", 0)
		runs, total, err := store.ListRuns(limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "total": total})
	})

	mux.HandleFunc("GET /api/traces/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		run, spans, err := store.GetRun(r.PathValue("id"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"run": run, "spans": spans})
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
