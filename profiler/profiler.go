// Package profiler - Per-stage timing and metric statistics for the recognition pipeline.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Stage names recorded by the pipeline.
const (
	StageDecode    = "decode"
	StageDetect    = "detect"
	StagePost      = "postprocess"
	StageRecognize = "recognize"
	StageTotal     = "total"
)

// DefaultMaxSamples bounds the window each tracker keeps.
const DefaultMaxSamples = 1000

// Profiler collects operation timings and custom metrics. It is safe for
// concurrent use.
type Profiler struct {
	mu         sync.RWMutex
	maxSamples int
	startTime  time.Time
	operations map[string]*TimeTracker
	metrics    map[string]*MetricTracker
}

// TimeTracker tracks timing statistics over a sliding window.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// MetricTracker tracks statistics for a custom metric over a sliding window.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// OperationStats is a snapshot of one TimeTracker.
type OperationStats struct {
	Count int64         `json:"count"`
	Mean  time.Duration `json:"mean"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P95   time.Duration `json:"p95"`
}

// MetricStats is a snapshot of one MetricTracker.
type MetricStats struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// New creates a profiler keeping at most maxSamples values per tracker
// (DefaultMaxSamples when zero or negative).
func New(maxSamples int) *Profiler {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Profiler{
		maxSamples: maxSamples,
		startTime:  time.Now(),
		operations: make(map[string]*TimeTracker),
		metrics:    make(map[string]*MetricTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func() time.Duration: Call it when the operation completes; it records
//     and returns the elapsed time.
func (p *Profiler) StartOperation(name string) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		d := time.Since(start)
		p.RecordOperation(name, d)
		return d
	}
}

// RecordOperation records the duration of a completed operation.
func (p *Profiler) RecordOperation(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operations[name]
	if !exists {
		tracker = &TimeTracker{minTime: d, maxTime: d}
		p.operations[name] = tracker
	}

	tracker.durations = append(tracker.durations, d)
	tracker.totalTime += d
	if len(tracker.durations) > p.maxSamples {
		// Remove oldest sample
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++

	if d < tracker.minTime {
		tracker.minTime = d
	}
	if d > tracker.maxTime {
		tracker.maxTime = d
	}
}

// RecordMetric records a custom metric value.
func (p *Profiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.metrics[name]
	if !exists {
		tracker = &MetricTracker{min: value, max: value}
		p.metrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	tracker.sum += value
	if len(tracker.values) > p.maxSamples {
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}
	tracker.count++

	if value < tracker.min {
		tracker.min = value
	}
	if value > tracker.max {
		tracker.max = value
	}
}

// Operation returns the statistics of one operation.
func (p *Profiler) Operation(name string) (OperationStats, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tracker, ok := p.operations[name]
	if !ok {
		return OperationStats{}, false
	}
	return tracker.stats(), true
}

// Metric returns the statistics of one custom metric.
func (p *Profiler) Metric(name string) (MetricStats, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tracker, ok := p.metrics[name]
	if !ok {
		return MetricStats{}, false
	}
	return tracker.stats(), true
}

// Operations returns a snapshot of all operation statistics.
func (p *Profiler) Operations() map[string]OperationStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]OperationStats, len(p.operations))
	for name, tracker := range p.operations {
		out[name] = tracker.stats()
	}
	return out
}

// Metrics returns a snapshot of all custom metric statistics.
func (p *Profiler) Metrics() map[string]MetricStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]MetricStats, len(p.metrics))
	for name, tracker := range p.metrics {
		out[name] = tracker.stats()
	}
	return out
}

// Uptime returns the time since the profiler was created.
func (p *Profiler) Uptime() time.Duration {
	return time.Since(p.startTime)
}

// Report logs one entry per operation and metric plus the memory usage.
func (p *Profiler) Report(log logrus.FieldLogger) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	log.WithFields(logrus.Fields{
		"uptime":     p.Uptime().Truncate(time.Millisecond),
		"goroutines": runtime.NumGoroutine(),
		"heap_alloc": formatBytes(mem.HeapAlloc),
		"sys":        formatBytes(mem.Sys),
		"gc_cycles":  mem.NumGC,
	}).Info("runtime")

	ops := p.Operations()
	for _, name := range sortedKeys(ops) {
		s := ops[name]
		log.WithFields(logrus.Fields{
			"operation": name,
			"count":     s.Count,
			"mean":      s.Mean.Truncate(time.Microsecond),
			"min":       s.Min.Truncate(time.Microsecond),
			"max":       s.Max.Truncate(time.Microsecond),
			"p95":       s.P95.Truncate(time.Microsecond),
		}).Info("operation timings")
	}

	metrics := p.Metrics()
	for _, name := range sortedKeys(metrics) {
		s := metrics[name]
		log.WithFields(logrus.Fields{
			"metric": name,
			"count":  s.Count,
			"mean":   s.Mean,
			"min":    s.Min,
			"max":    s.Max,
		}).Info("metric")
	}
}

// Run reports every interval until ctx is done.
func (p *Profiler) Run(ctx context.Context, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Report(log)
		}
	}
}

func (t *TimeTracker) stats() OperationStats {
	s := OperationStats{Count: t.count, Min: t.minTime, Max: t.maxTime}
	if n := len(t.durations); n > 0 {
		s.Mean = t.totalTime / time.Duration(n)

		sorted := append([]time.Duration(nil), t.durations...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		s.P95 = sorted[(n*95+99)/100-1]
	}
	return s
}

func (t *MetricTracker) stats() MetricStats {
	s := MetricStats{Count: t.count, Min: t.min, Max: t.max}
	if n := len(t.values); n > 0 {
		s.Mean = t.sum / float64(n)
	}
	return s
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
