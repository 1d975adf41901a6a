// Package profiler - This file contains the runtime profiler that samples process health,
// times pipeline operations and reports detector metrics through the logger.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/nvr-ai/go-falldetect/internal/log"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// RuntimeProfiler samples runtime statistics, operation timings and collector metrics and
// emits a periodic report. It is safe for concurrent use.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	memStats    runtime.MemStats
	goroutines  []int
	lastGCCount uint32

	metrics    map[string]*MetricTracker
	collectors []MetricsCollector
	operations map[string]*TimeTracker
}

// MetricTracker keeps a bounded series of a metric with running statistics.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
	last   float64
}

func (m *MetricTracker) add(value float64, limit int) {
	if m.count == 0 || value < m.min {
		m.min = value
	}
	if m.count == 0 || value > m.max {
		m.max = value
	}
	m.values = append(m.values, value)
	m.sum += value
	if len(m.values) > limit {
		m.sum -= m.values[0]
		m.values = m.values[1:]
	}
	m.count++
	m.last = value
}

func (m *MetricTracker) avg() float64 {
	if len(m.values) == 0 {
		return 0
	}
	return m.sum / float64(len(m.values))
}

// TimeTracker keeps a bounded series of operation durations.
type TimeTracker struct {
	durations []time.Duration
	total     time.Duration
	min       time.Duration
	max       time.Duration
	count     int64
}

func (t *TimeTracker) add(d time.Duration, limit int) {
	if t.count == 0 || d < t.min {
		t.min = d
	}
	if t.count == 0 || d > t.max {
		t.max = d
	}
	t.durations = append(t.durations, d)
	t.total += d
	if len(t.durations) > limit {
		t.total -= t.durations[0]
		t.durations = t.durations[1:]
	}
	t.count++
}

func (t *TimeTracker) avg() time.Duration {
	if len(t.durations) == 0 {
		return 0
	}
	return t.total / time.Duration(len(t.durations))
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to emit status reports (default: 2s)
	ReportInterval time.Duration
	// SampleInterval specifies how often to collect samples (default: 100ms)
	SampleInterval time.Duration
	// MaxSamples specifies maximum number of samples to keep (default: 600)
	MaxSamples int
}

// NewRuntimeProfiler creates a new runtime profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured RuntimeProfiler instance
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 2 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 100 * time.Millisecond
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		metrics:        make(map[string]*MetricTracker),
		operations:     make(map[string]*TimeTracker),
	}
}

// Start begins sampling and reporting. Calling it on a running profiler is a no-op.
func (rp *RuntimeProfiler) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	rp.startTime = time.Now()

	rp.wg.Add(2)
	go rp.loop(rp.sampleInterval, rp.Sample)
	go rp.loop(rp.reportInterval, rp.emitStatusReport)
}

func (rp *RuntimeProfiler) loop(interval time.Duration, fn func()) {
	defer rp.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rp.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Stop gracefully stops the profiler, waits for its goroutines and emits a final report.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	rp.mu.Unlock()

	rp.cancel()
	rp.wg.Wait()
	rp.emitStatusReport()
}

// AddMetricsCollector registers a collector polled on every sample.
//
// Arguments:
// - collector: An implementation of MetricsCollector interface
func (rp *RuntimeProfiler) AddMetricsCollector(collector MetricsCollector) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.collectors = append(rp.collectors, collector)
}

// RecordMetric records a custom metric value.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.recordMetric(name, value)
}

func (rp *RuntimeProfiler) recordMetric(name string, value float64) {
	tracker, ok := rp.metrics[name]
	if !ok {
		tracker = &MetricTracker{}
		rp.metrics[name] = tracker
	}
	tracker.add(value, rp.maxSamples)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
//
// @example
// defer rp.StartOperation("frame_processing")()
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.recordOperation(name, time.Since(start))
	}
}

func (rp *RuntimeProfiler) recordOperation(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	tracker, ok := rp.operations[name]
	if !ok {
		tracker = &TimeTracker{}
		rp.operations[name] = tracker
	}
	tracker.add(d, rp.maxSamples)
}

// Sample reads runtime statistics and polls every registered collector once.
func (rp *RuntimeProfiler) Sample() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	runtime.ReadMemStats(&rp.memStats)

	rp.goroutines = append(rp.goroutines, runtime.NumGoroutine())
	if len(rp.goroutines) > rp.maxSamples {
		rp.goroutines = rp.goroutines[1:]
	}

	for _, collector := range rp.collectors {
		for name, value := range collector.CollectMetrics() {
			rp.recordMetric(name, value)
		}
	}
}

// emitStatusReport logs one line per metric and per operation.
func (rp *RuntimeProfiler) emitStatusReport() {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	log.Info("runtime profile",
		"uptime", time.Since(rp.startTime).Truncate(time.Millisecond),
		"goroutines", runtime.NumGoroutine(),
		"cgo_calls", runtime.NumCgoCall(),
		"heap_alloc", formatBytes(rp.memStats.HeapAlloc),
		"sys", formatBytes(rp.memStats.Sys),
	)

	if rp.memStats.NumGC > rp.lastGCCount {
		log.Debug("garbage collection",
			"cycles", rp.memStats.NumGC,
			"new", rp.memStats.NumGC-rp.lastGCCount,
			"cpu_fraction", rp.memStats.GCCPUFraction,
		)
		rp.lastGCCount = rp.memStats.NumGC
	}

	for _, name := range sortedKeys(rp.metrics) {
		m := rp.metrics[name]
		log.Info("metric", "name", name, "last", m.last, "avg", m.avg(), "min", m.min, "max", m.max, "samples", len(m.values))
	}
	for _, name := range sortedKeys(rp.operations) {
		op := rp.operations[name]
		log.Info("operation", "name", name,
			"avg", op.avg().Truncate(time.Microsecond),
			"min", op.min.Truncate(time.Microsecond),
			"max", op.max.Truncate(time.Microsecond),
			"count", op.count,
		)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// GetCurrentStats returns the current profiling statistics as a snapshot.
//
// Returns:
// - A map with uptime, goroutines, custom_metrics and operations entries
func (rp *RuntimeProfiler) GetCurrentStats() map[string]interface{} {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	metrics := make(map[string]interface{}, len(rp.metrics))
	for name, m := range rp.metrics {
		metrics[name] = map[string]interface{}{
			"last":    m.last,
			"avg":     m.avg(),
			"min":     m.min,
			"max":     m.max,
			"samples": len(m.values),
		}
	}

	operations := make(map[string]interface{}, len(rp.operations))
	for name, op := range rp.operations {
		operations[name] = map[string]interface{}{
			"avg":   op.avg(),
			"min":   op.min,
			"max":   op.max,
			"count": op.count,
		}
	}

	return map[string]interface{}{
		"uptime":         time.Since(rp.startTime),
		"goroutines":     runtime.NumGoroutine(),
		"custom_metrics": metrics,
		"operations":     operations,
	}
}
