// Package upstream reports reachability of the services inquiry runs depend on.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Status is the observed state of a dependency.
type Status string

const (
	StatusHealthy      Status = "healthy"
	StatusDegraded     Status = "degraded"
	StatusUnreachable  Status = "unreachable"
	StatusUnconfigured Status = "unconfigured"
)

// Info holds the current state of a dependency.
type Info struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	Category  string  `json:"category"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Detail    string  `json:"detail,omitempty"`
}

// Prober checks dependencies over HTTP.
type Prober struct {
	httpClient *http.Client
	registry   *Registry
}

// NewProber creates a prober with the given per-probe timeout.
func NewProber(registry *Registry, timeout time.Duration) *Prober {
	return &Prober{
		httpClient: &http.Client{Timeout: timeout},
		registry:   registry,
	}
}

// Status probes one dependency. A 2xx answer is healthy, any other answer is
// degraded, and no answer is unreachable.
func (p *Prober) Status(ctx context.Context, name string) (*Info, error) {
	dep, ok := p.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("dependency %q not in registry", name)
	}
	info := &Info{Name: name, Category: dep.Category, Status: StatusUnconfigured}
	if dep.HealthURL == "" {
		return info, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", dep.HealthURL, nil)
	if err != nil {
		info.Status = StatusUnreachable
		info.Detail = err.Error()
		return info, nil
	}
	for k, v := range dep.Header {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	info.LatencyMs = float64(time.Since(start).Milliseconds())
	if err != nil {
		info.Status = StatusUnreachable
		info.Detail = err.Error()
		return info, nil
	}
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		info.Status = StatusHealthy
		return info, nil
	}
	info.Status = StatusDegraded
	info.Detail = fmt.Sprintf("status %d", resp.StatusCode)
	return info, nil
}

// StatusAll probes every registered dependency concurrently, in name order.
func (p *Prober) StatusAll(ctx context.Context) []Info {
	names := p.registry.Names()
	results := make([]Info, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, _ := p.Status(ctx, name)
			results[i] = *info
		}()
	}
	wg.Wait()
	return results
}
