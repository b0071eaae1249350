package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hubenschmidt/support-crew/gateway/internal/config"
	"github.com/hubenschmidt/support-crew/gateway/internal/pipeline"
	"github.com/hubenschmidt/support-crew/gateway/internal/prompts"
	"github.com/hubenschmidt/support-crew/gateway/internal/trace"
	"github.com/hubenschmidt/support-crew/gateway/internal/upstream"
	"github.com/hubenschmidt/support-crew/gateway/internal/web"
	"github.com/hubenschmidt/support-crew/gateway/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env", "error", err)
	}
	cfg := config.Load()

	templates, err := prompts.Default()
	if err != nil {
		slog.Error("load prompt templates", "error", err)
		os.Exit(1)
	}

	var traceStore *trace.Store
	var tracer *trace.Tracer
	if cfg.TraceDatabaseURL != "" {
		traceStore, err = trace.Open(cfg.TraceDatabaseURL)
		if err != nil {
			slog.Warn("trace store disabled", "error", err)
		} else {
			tracer = trace.NewTracer(traceStore)
			slog.Info("tracing enabled")
		}
	}

	generators := cfg.Generators()
	gen, engine, err := generators.Route(cfg.Engine)
	if err != nil {
		slog.Error("select generation backend", "error", err)
		os.Exit(1)
	}
	if engine != cfg.Engine {
		slog.Warn("unknown llm engine, using default", "requested", cfg.Engine, "engine", engine)
	}
	if engine != "ollama" && cfg.OpenAIKey == "" {
		slog.Warn("OPENAI_API_KEY not set; runs will fail until it is provided", "engine", engine)
	}

	runner := pipeline.New(pipeline.Config{
		Templates: templates,
		Generator: gen,
		Tools:     cfg.Tools(),
		Tracer:    tracer,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		cfg:        cfg,
		engine:     engine,
		engines:    generators.Engines(),
		prober:     upstream.NewProber(dependencyRegistry(cfg, engine), 5*time.Second),
		web:        web.NewHandler(runner, cfg.MaxConcurrentRuns),
		wsHandler:  ws.NewHandler(ws.HandlerConfig{Runner: runner, MaxConcurrent: cfg.MaxConcurrentRuns}),
		traceStore: traceStore,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: mux}

	// ListenAndServe returns as soon as Shutdown begins; stopped closes once
	// in-flight runs have finished.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("shutdown incomplete", "error", err)
		}
	}()

	slog.Info("gateway starting", "addr", addr, "engine", engine, "model", cfg.Model(engine), "max_concurrent", cfg.MaxConcurrentRuns)

	if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-stopped

	tracer.Close()
	if traceStore != nil {
		traceStore.Close()
	}
	slog.Info("gateway stopped")
}

// dependencyRegistry lists the upstreams the selected engine and tools rely on.
func dependencyRegistry(cfg config.Config, engine string) *upstream.Registry {
	deps := map[string]upstream.Dependency{
		"docs": {Category: "tool", HealthURL: cfg.DocsURL},
	}
	if engine == "ollama" {
		deps["ollama"] = upstream.Dependency{Category: "llm", HealthURL: cfg.OllamaURL + "/api/tags"}
		return upstream.NewRegistry(deps)
	}

	openai := upstream.Dependency{Category: "llm"}
	if cfg.OpenAIKey != "" {
		base := cfg.OpenAIBaseURL
		if base == "" {
			base = "https://api.openai.com/v1/"
		}
		openai.HealthURL = strings.TrimSuffix(base, "/") + "/models"
		openai.Header = map[string]string{"Authorization": "Bearer " + cfg.OpenAIKey}
	}
	deps["openai"] = openai
	return upstream.NewRegistry(deps)
}
