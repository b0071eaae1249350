package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hubenschmidt/support-crew/gateway/internal/config"
	"github.com/hubenschmidt/support-crew/gateway/internal/pipeline"
	"github.com/hubenschmidt/support-crew/gateway/internal/present"
	"github.com/hubenschmidt/support-crew/gateway/internal/prompts"
)

func main() {
	customer := flag.String("customer", "", "customer name")
	person := flag.String("person", "", "contact person's name")
	inquiry := flag.String("inquiry", "", "inquiry text")
	inquiryFile := flag.String("inquiry-file", "", "read inquiry text from file (- for stdin)")
	engine := flag.String("engine", "", "generation engine: agents, openai, ollama (default $LLM_ENGINE)")
	asJSON := flag.Bool("json", false, "print the result view as JSON")
	verbose := flag.Bool("v", false, "log progress to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	godotenv.Load()
	cfg := config.Load()
	if *engine != "" {
		cfg.Engine = *engine
	}

	body := *inquiry
	if *inquiryFile != "" {
		text, err := readInquiry(*inquiryFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read inquiry:", err)
			os.Exit(1)
		}
		body = text
	}

	templates, err := prompts.Default()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load prompt templates:", err)
		os.Exit(1)
	}
	gen, _, err := cfg.Generators().Route(cfg.Engine)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	runner := pipeline.New(pipeline.Config{
		Templates: templates,
		Generator: gen,
		Tools:     cfg.Tools(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	view := present.Render(runner.Run(ctx, pipeline.NewInquiry(*customer, *person, body), progress(*verbose)))

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(view)
	} else {
		fmt.Println(formatView(view))
	}
	os.Exit(exitCode(view.Kind))
}

func readInquiry(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func progress(verbose bool) pipeline.EventCallback {
	if !verbose {
		return nil
	}
	return func(ev pipeline.Event) {
		fmt.Fprintln(os.Stderr, statusLine(ev))
	}
}

// exitCode is 0 on success, 2 when the input was rejected and 1 for run failures.
func exitCode(kind present.Kind) int {
	switch kind {
	case present.KindSuccess:
		return 0
	case present.KindWarning:
		return 2
	default:
		return 1
	}
}
