package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/disasterproject/fanout/internal/domain"
)

// Collector implements ports.MetricsCollector using Prometheus.
type Collector struct {
	runsSubmitted    *prometheus.CounterVec
	runsCompleted    *prometheus.CounterVec
	subtasksExecuted *prometheus.CounterVec
	llmCalls         *prometheus.CounterVec
	llmTokens        *prometheus.CounterVec
	llmCost          *prometheus.CounterVec

	activeRuns      prometheus.Gauge
	accountRequests *prometheus.GaugeVec
	accountTokens   *prometheus.GaugeVec
	accountCost     *prometheus.GaugeVec

	runDuration     *prometheus.HistogramVec
	subtaskDuration *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector() *Collector {
	return &Collector{
		runsSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_runs_submitted_total",
				Help: "Total number of orchestration runs submitted",
			},
			[]string{"strategy"},
		),
		runsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_runs_completed_total",
				Help: "Total number of orchestration runs completed",
			},
			[]string{"status"},
		),
		subtasksExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_subtasks_executed_total",
				Help: "Total number of subtasks executed",
			},
			[]string{"model", "status"},
		),
		llmCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_llm_calls_total",
				Help: "Total number of LLM API calls",
			},
			[]string{"model", "account"},
		),
		llmTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_llm_tokens_total",
				Help: "Total number of estimated LLM tokens used",
			},
			[]string{"model", "account"},
		),
		llmCost: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_llm_cost_usd_total",
				Help: "Total estimated LLM cost in USD",
			},
			[]string{"model", "account"},
		),
		activeRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fanout_active_runs",
				Help: "Number of currently active orchestration runs",
			},
		),
		accountRequests: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fanout_account_requests",
				Help: "Cumulative requests per worker account",
			},
			[]string{"account"},
		),
		accountTokens: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fanout_account_tokens",
				Help: "Cumulative estimated tokens per worker account",
			},
			[]string{"account"},
		),
		accountCost: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fanout_account_cost_usd",
				Help: "Cumulative estimated cost in USD per worker account",
			},
			[]string{"account"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fanout_run_duration_seconds",
				Help:    "Orchestration run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		subtaskDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fanout_subtask_duration_seconds",
				Help:    "Subtask execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"model", "status"},
		),
	}
}

// RecordRunSubmitted records a run submission.
func (c *Collector) RecordRunSubmitted(strategy string) {
	c.runsSubmitted.WithLabelValues(strategy).Inc()
}

// RecordRunCompleted records a run completion.
func (c *Collector) RecordRunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordSubTaskExecuted records a subtask execution.
func (c *Collector) RecordSubTaskExecuted(model, status string, duration time.Duration) {
	c.subtasksExecuted.WithLabelValues(model, status).Inc()
	c.subtaskDuration.WithLabelValues(model, status).Observe(duration.Seconds())
}

// RecordLLMUsage records one backend call's estimated tokens and cost.
func (c *Collector) RecordLLMUsage(model, account string, tokens int, cost float64) {
	c.llmCalls.WithLabelValues(model, account).Inc()
	c.llmTokens.WithLabelValues(model, account).Add(float64(tokens))
	c.llmCost.WithLabelValues(model, account).Add(cost)
}

// RecordPoolStats snapshots per-account cumulative usage.
func (c *Collector) RecordPoolStats(stats []domain.AccountStats) {
	for _, s := range stats {
		c.accountRequests.WithLabelValues(s.Name).Set(float64(s.Requests))
		c.accountTokens.WithLabelValues(s.Name).Set(float64(s.Tokens))
		c.accountCost.WithLabelValues(s.Name).Set(s.Cost)
	}
}

// SetActiveRuns sets the number of currently active runs.
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}
