package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/ports"
)

// UsageMonitor periodically snapshots pool usage, logs it and pushes it to
// the metrics collector so per-account gauges stay current between runs.
type UsageMonitor struct {
	pool     *Pool
	metrics  ports.MetricsCollector
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewUsageMonitor creates a monitor for the given pool.
func NewUsageMonitor(pool *Pool, metrics ports.MetricsCollector, interval time.Duration, logger *zap.Logger) *UsageMonitor {
	return &UsageMonitor{
		pool:     pool,
		metrics:  metrics,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the monitor loop. Calling Start on a running monitor is a
// no-op.
func (m *UsageMonitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go m.run()
}

// Stop stops the monitor loop.
func (m *UsageMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
}

func (m *UsageMonitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.snapshot()
		}
	}
}

func (m *UsageMonitor) snapshot() {
	stats := m.pool.Stats()
	m.metrics.RecordPoolStats(stats)

	var requests, tokens int64
	var cost float64
	for _, s := range stats {
		requests += s.Requests
		tokens += s.Tokens
		cost += s.Cost
	}

	m.logger.Info("worker pool usage",
		zap.Int("accounts", len(stats)),
		zap.Int64("requests", requests),
		zap.Int64("tokens", tokens),
		zap.Float64("cost_usd", cost))
}
