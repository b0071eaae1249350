package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"
)

func main() {
	gateway := flag.String("gateway", "ws://localhost:8000/ws/inquiry", "gateway WebSocket URL")
	concurrency := flag.Int("concurrency", 4, "number of concurrent submitters")
	duration := flag.Duration("duration", 2*time.Minute, "test duration")
	samplesPath := flag.String("samples", "", "YAML file with a list of inquiries (customer, person, inquiry)")
	timeout := flag.Duration("timeout", 5*time.Minute, "per-inquiry read timeout")
	flag.Parse()

	samples := defaultSamples
	if *samplesPath != "" {
		loaded, err := loadSamples(*samplesPath)
		if err != nil || len(loaded) == 0 {
			fmt.Fprintf(os.Stderr, "no samples loaded from %s (%v), using built-in inquiries\n", *samplesPath, err)
		} else {
			samples = loaded
		}
	}

	fmt.Printf("Load test: %d concurrent submitters for %s\n", *concurrency, *duration)
	fmt.Printf("Gateway: %s | Samples: %d\n\n", *gateway, len(samples))

	var mu sync.Mutex
	var results []runResult
	var wg sync.WaitGroup

	deadline := time.Now().Add(*duration)

	for range *concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for time.Now().Before(deadline) {
				r := submit(*gateway, samples[rand.Intn(len(samples))], *timeout)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	printSummary(results)
}

type sample struct {
	Customer string `yaml:"customer" json:"customer"`
	Person   string `yaml:"person" json:"person"`
	Inquiry  string `yaml:"inquiry" json:"inquiry"`
}

var defaultSamples = []sample{
	{Customer: "Acme", Person: "Jo", Inquiry: "How do I use the search endpoint to find companies by headcount?"},
	{Customer: "Globex", Person: "Sam", Inquiry: "What filters does the people search API support, with an example request?"},
	{Customer: "Initech", Person: "Pat", Inquiry: "How do I paginate through company screener results?"},
}

func loadSamples(path string) ([]sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []sample
	if err = yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type runResult struct {
	kind    string
	stageMs map[string]float64
	totalMs float64
	err     string
}

type frame struct {
	Type      string  `json:"type"`
	Stage     string  `json:"stage"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error"`
	View      struct {
		Kind string `json:"kind"`
	} `json:"view"`
}

func submit(gateway string, s sample, timeout time.Duration) runResult {
	start := time.Now()
	conn, _, err := websocket.DefaultDialer.Dial(gateway, nil)
	if err != nil {
		return runResult{err: fmt.Sprintf("dial: %v", err)}
	}
	defer conn.Close()

	payload, _ := json.Marshal(s)
	if err = conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return runResult{err: fmt.Sprintf("send inquiry: %v", err)}
	}

	res := runResult{stageMs: map[string]float64{}}
	conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		var f frame
		if err = conn.ReadJSON(&f); err != nil {
			return runResult{err: fmt.Sprintf("read: %v", err)}
		}
		switch f.Type {
		case "stage_done":
			res.stageMs[f.Stage] = f.LatencyMs
		case "error":
			return runResult{err: f.Error}
		case "result":
			res.kind = f.View.Kind
			res.totalMs = float64(time.Since(start).Milliseconds())
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return res
		}
	}
}

func printSummary(results []runResult) {
	kinds := map[string]int{}
	var transportErrs int
	var resolutionAll, reviewAll, e2eAll []float64

	for _, r := range results {
		if r.err != "" {
			transportErrs++
			continue
		}
		kinds[r.kind]++
		if r.kind != "success" {
			continue
		}
		resolutionAll = append(resolutionAll, r.stageMs["resolution"])
		reviewAll = append(reviewAll, r.stageMs["quality_review"])
		e2eAll = append(e2eAll, r.totalMs)
	}

	fmt.Printf("\n=== Load Test Results ===\n")
	fmt.Printf("Succeeded:        %d\n", kinds["success"])
	fmt.Printf("Missing field:    %d\n", kinds["missing_field"])
	fmt.Printf("Failed:           %d\n", kinds["failure"])
	fmt.Printf("Rejected input:   %d\n", kinds["warning"])
	fmt.Printf("Transport errors: %d\n", transportErrs)

	if len(e2eAll) == 0 {
		fmt.Println("No successful runs to report latency")
		return
	}

	fmt.Printf("\n%-15s %8s %8s %8s\n", "Stage", "p50", "p95", "p99")
	printRow("resolution", resolutionAll)
	printRow("quality_review", reviewAll)
	printRow("E2E", e2eAll)
}

func printRow(label string, data []float64) {
	fmt.Printf("%-15s %6.0fms %6.0fms %6.0fms\n", label, percentile(data, 50), percentile(data, 95), percentile(data, 99))
}

func percentile(data []float64, pct float64) float64 {
	sort.Float64s(data)
	idx := int(math.Ceil(pct/100*float64(len(data)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(data) {
		idx = len(data) - 1
	}
	return data[idx]
}
