// Package telemetry aggregates per-run metrics behind a single mutex and
// computes percentile summaries snapshot-style. The collector is an explicit
// instance passed by the embedder; there is no process-wide singleton.
package telemetry

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// RunMetrics captures one agent run.
type RunMetrics struct {
	BackendName       string `json:"backend_name"`
	Dialect           string `json:"dialect"`
	DurationMS        uint64 `json:"duration_ms"`
	EventsCount       uint64 `json:"events_count"`
	TokensIn          uint64 `json:"tokens_in"`
	TokensOut         uint64 `json:"tokens_out"`
	ToolCallsCount    uint64 `json:"tool_calls_count"`
	ErrorsCount       uint64 `json:"errors_count"`
	EmulationsApplied uint64 `json:"emulations_applied"`
}

// Summary aggregates statistics across runs. Backend counts are emitted in
// deterministic key order.
type Summary struct {
	Count          int            `json:"count"`
	MeanDurationMS float64        `json:"mean_duration_ms"`
	P50DurationMS  float64        `json:"p50_duration_ms"`
	P99DurationMS  float64        `json:"p99_duration_ms"`
	TotalTokensIn  uint64         `json:"total_tokens_in"`
	TotalTokensOut uint64         `json:"total_tokens_out"`
	ErrorRate      float64        `json:"error_rate"`
	BackendCounts  map[string]int `json:"backend_counts"`
}

// percentile interpolates linearly over a sorted slice.
func percentile(sorted []uint64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return float64(sorted[0])
	}
	rank := pct / 100 * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower
	if upper < len(sorted)-1 {
		upper++
	}
	frac := rank - float64(lower)
	return float64(sorted[lower])*(1-frac) + float64(sorted[upper])*frac
}

// Collector is a thread-safe metrics sink. The zero value is not usable;
// construct with NewCollector.
type Collector struct {
	mu   sync.Mutex
	runs []RunMetrics

	runCounter   metric.Int64Counter
	errCounter   metric.Int64Counter
	durationHist metric.Int64Histogram
}

// NewCollector creates an empty collector with no exporter wired.
func NewCollector() *Collector {
	return NewCollectorWithMeter(noop.NewMeterProvider().Meter("backplane"))
}

// NewCollectorWithMeter creates a collector that mirrors recordings onto
// OpenTelemetry instruments from the given meter.
func NewCollectorWithMeter(meter metric.Meter) *Collector {
	c := &Collector{}
	c.runCounter, _ = meter.Int64Counter("abp.runs",
		metric.WithDescription("Completed backplane runs"))
	c.errCounter, _ = meter.Int64Counter("abp.run.errors",
		metric.WithDescription("Errors observed across runs"))
	c.durationHist, _ = meter.Int64Histogram("abp.run.duration",
		metric.WithDescription("Run wall-clock duration"),
		metric.WithUnit("ms"))
	return c
}

// Record stores one completed run's metrics.
func (c *Collector) Record(m RunMetrics) {
	c.mu.Lock()
	c.runs = append(c.runs, m)
	c.mu.Unlock()

	attrs := metric.WithAttributes(
		attribute.String("backend", m.BackendName),
		attribute.String("dialect", m.Dialect),
	)
	ctx := context.Background()
	c.runCounter.Add(ctx, 1, attrs)
	c.errCounter.Add(ctx, int64(m.ErrorsCount), attrs)
	c.durationHist.Record(ctx, int64(m.DurationMS), attrs)
}

// Runs returns a copy of all recorded metrics.
func (c *Collector) Runs() []RunMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]RunMetrics(nil), c.runs...)
}

// Len returns the number of recorded runs.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}

// IsEmpty reports whether no runs were recorded.
func (c *Collector) IsEmpty() bool { return c.Len() == 0 }

// Clear discards all recorded metrics.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = nil
}

// Summary computes aggregated statistics. The data is snapshotted under the
// lock and summarized outside it.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	data := append([]RunMetrics(nil), c.runs...)
	c.mu.Unlock()

	summary := Summary{BackendCounts: map[string]int{}}
	if len(data) == 0 {
		return summary
	}

	durations := make([]uint64, len(data))
	var totalDuration, totalIn, totalOut, errors uint64
	for i, r := range data {
		durations[i] = r.DurationMS
		totalDuration += r.DurationMS
		totalIn += r.TokensIn
		totalOut += r.TokensOut
		errors += r.ErrorsCount
		summary.BackendCounts[r.BackendName]++
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	summary.Count = len(data)
	summary.MeanDurationMS = float64(totalDuration) / float64(len(data))
	summary.P50DurationMS = percentile(durations, 50)
	summary.P99DurationMS = percentile(durations, 99)
	summary.TotalTokensIn = totalIn
	summary.TotalTokensOut = totalOut
	summary.ErrorRate = float64(errors) / float64(len(data))
	return summary
}

// SortedBackends returns the summary's backend names in deterministic order.
func (s Summary) SortedBackends() []string {
	names := make([]string, 0, len(s.BackendCounts))
	for name := range s.BackendCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exporter serializes a summary for an external sink.
type Exporter interface {
	Export(summary Summary) (string, error)
}

// JSONExporter renders summaries as indented JSON.
type JSONExporter struct{}

// Export implements Exporter.
func (JSONExporter) Export(summary Summary) (string, error) {
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Timer measures one run's wall clock for RunMetrics.
type Timer struct {
	start time.Time
}

// StartTimer begins timing.
func StartTimer() Timer { return Timer{start: time.Now()} }

// ElapsedMS returns the elapsed milliseconds.
func (t Timer) ElapsedMS() uint64 {
	return uint64(time.Since(t.start) / time.Millisecond)
}
