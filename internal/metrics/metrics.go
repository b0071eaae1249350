package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_runs_active",
		Help: "Currently running inquiry workflows",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_total",
		Help: "Inquiry workflows by outcome",
	}, []string{"outcome"})

	RunsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_rejected_total",
		Help: "Submissions refused before the pipeline started",
	}, []string{"reason"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Per-stage generation latency",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"stage"})

	E2EDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_e2e_duration_seconds",
		Help:    "End-to-end latency from submission to final response",
		Buckets: []float64{1, 2, 5, 10, 20, 40, 60, 120, 240},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})

	DocsFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docs_fetch_duration_seconds",
		Help:    "Reference document retrieval latency (fetch + extract)",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_tool_calls_total",
		Help: "Tool invocations requested by agents",
	}, []string{"tool", "status"})
)
