// Package monitoring provides performance metrics collection for dataset passes.
package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// PassMetrics represents performance metrics for a single streaming pass.
type PassMetrics struct {
	Operation     string        `json:"operation"`
	Duration      time.Duration `json:"duration"`
	RowsProcessed int64         `json:"rows_processed"`
	Chunks        int           `json:"chunks"`
	Tasks         int           `json:"tasks"`
	MemoryUsed    int64         `json:"memory_used"`
	Cancelled     bool          `json:"cancelled"`
	Failed        bool          `json:"failed"`
}

// PassStats is what a recorded pass reports back about its own work.
type PassStats struct {
	Rows      int64
	Chunks    int
	Tasks     int
	Cancelled bool
}

// MetricsCollector collects and stores performance metrics for passes.
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics []PassMetrics
	enabled bool
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(enabled bool) *MetricsCollector {
	return &MetricsCollector{
		metrics: make([]PassMetrics, 0),
		enabled: enabled,
	}
}

// IsEnabled returns whether metrics collection is enabled.
func (mc *MetricsCollector) IsEnabled() bool {
	if mc == nil {
		return false
	}
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.enabled
}

// RecordPass executes fn and records its duration, memory delta and the
// stats it reports. A nil or disabled collector just runs fn.
func (mc *MetricsCollector) RecordPass(operation string, fn func() (PassStats, error)) error {
	if !mc.IsEnabled() {
		_, err := fn()
		return err
	}

	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)
	start := time.Now()

	stats, err := fn()

	duration := time.Since(start)
	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	metrics := PassMetrics{
		Operation:     operation,
		Duration:      duration,
		RowsProcessed: stats.Rows,
		Chunks:        stats.Chunks,
		Tasks:         stats.Tasks,
		MemoryUsed:    int64(memAfter.Alloc) - int64(memBefore.Alloc), //nolint:gosec // Memory values are expected to be safe
		Cancelled:     stats.Cancelled,
		Failed:        err != nil,
	}

	mc.mu.Lock()
	mc.metrics = append(mc.metrics, metrics)
	mc.mu.Unlock()

	return err
}

// GetMetrics returns a copy of all collected metrics.
func (mc *MetricsCollector) GetMetrics() []PassMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make([]PassMetrics, len(mc.metrics))
	copy(result, mc.metrics)
	return result
}

// Clear removes all collected metrics.
func (mc *MetricsCollector) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.metrics = mc.metrics[:0]
}

// SetEnabled enables or disables metrics collection.
func (mc *MetricsCollector) SetEnabled(enabled bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.enabled = enabled
}

// GetSummary returns a summary of collected metrics.
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if len(mc.metrics) == 0 {
		return MetricsSummary{}
	}

	var summary MetricsSummary
	summary.OperationCounts = make(map[string]int)
	for _, metric := range mc.metrics {
		summary.TotalDuration += metric.Duration
		summary.TotalRows += metric.RowsProcessed
		summary.TotalChunks += metric.Chunks
		summary.OperationCounts[metric.Operation]++
		if metric.Cancelled {
			summary.Cancelled++
		}
		if metric.Failed {
			summary.Failed++
		}
	}
	summary.TotalPasses = len(mc.metrics)
	summary.AverageDuration = summary.TotalDuration / time.Duration(len(mc.metrics))

	return summary
}

// MetricsSummary provides aggregate statistics for collected metrics.
type MetricsSummary struct {
	TotalPasses     int            `json:"total_passes"`
	TotalDuration   time.Duration  `json:"total_duration"`
	TotalRows       int64          `json:"total_rows"`
	TotalChunks     int            `json:"total_chunks"`
	Cancelled       int            `json:"cancelled"`
	Failed          int            `json:"failed"`
	OperationCounts map[string]int `json:"operation_counts"`
	AverageDuration time.Duration  `json:"average_duration"`
}
