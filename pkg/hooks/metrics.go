// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hooks

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// bucketBoundsMillis are the fixed histogram bucket upper bounds of §4.2,
// in milliseconds; the final bucket is +Inf.
var bucketBoundsMillis = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Histogram accumulates duration observations into the fixed buckets and
// derives mean/percentiles via a cumulative scan, per §4.2.
type Histogram struct {
	mu      sync.Mutex
	counts  []uint64 // len(bucketBoundsMillis)+1, last is the +Inf bucket
	sum     float64  // sum of observed durations, in milliseconds
	total   uint64
}

// NewHistogram constructs an empty Histogram.
func NewHistogram() *Histogram {
	return &Histogram{counts: make([]uint64, len(bucketBoundsMillis)+1)}
}

// Observe records one duration.
func (h *Histogram) Observe(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += ms
	h.total++
	for i, bound := range bucketBoundsMillis {
		if ms <= bound {
			h.counts[i]++
			return
		}
	}
	h.counts[len(h.counts)-1]++
}

// Snapshot is an immutable view of the histogram's current state.
type Snapshot struct {
	Count   uint64
	Mean    float64
	P50     float64
	P95     float64
	P99     float64
	Buckets []uint64 // cumulative counts, non-decreasing left to right
}

// Snapshot computes the derived statistics via a cumulative scan over the
// buckets. Percentiles are approximated by the upper bound of the first
// bucket whose cumulative count reaches the target fraction of the total.
func (h *Histogram) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	cumulative := make([]uint64, len(h.counts))
	var running uint64
	for i, c := range h.counts {
		running += c
		cumulative[i] = running
	}

	snap := Snapshot{Count: h.total, Buckets: cumulative}
	if h.total == 0 {
		return snap
	}
	snap.Mean = h.sum / float64(h.total)
	snap.P50 = percentile(cumulative, h.total, 0.50)
	snap.P95 = percentile(cumulative, h.total, 0.95)
	snap.P99 = percentile(cumulative, h.total, 0.99)
	return snap
}

func percentile(cumulative []uint64, total uint64, fraction float64) float64 {
	target := uint64(fraction * float64(total))
	if target == 0 {
		target = 1
	}
	for i, c := range cumulative {
		if c >= target {
			if i < len(bucketBoundsMillis) {
				return bucketBoundsMillis[i]
			}
			return bucketBoundsMillis[len(bucketBoundsMillis)-1]
		}
	}
	return bucketBoundsMillis[len(bucketBoundsMillis)-1]
}

// PointStats tracks per-point counters alongside the duration histogram.
type PointStats struct {
	ExecutionCount uint64
	SuccessCount   uint64
	ErrorCount     uint64
	Durations      *Histogram
}

// MetricsCollector is the built-in metrics hook of §4.2: it maintains,
// per point, execution/success/error counts and a duration histogram,
// and mirrors the totals into Prometheus counters for export.
type MetricsCollector struct {
	mu     sync.Mutex
	points map[Point]*PointStats

	promExecutions *prometheus.CounterVec
	promErrors     *prometheus.CounterVec
	promDurations  *prometheus.HistogramVec
}

// NewMetricsCollector constructs a collector and registers its
// Prometheus vectors against reg (pass prometheus.NewRegistry() in tests
// to avoid colliding with the default global registry).
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		points: map[Point]*PointStats{},
		promExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_hook_executions_total",
			Help: "Total hook executions per hook point.",
		}, []string{"point"}),
		promErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_hook_errors_total",
			Help: "Total hook execution errors per hook point.",
		}, []string{"point"}),
		promDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "substrate_hook_duration_seconds",
			Help:    "Hook execution duration per hook point.",
			Buckets: prometheus.DefBuckets,
		}, []string{"point"}),
	}
	if reg != nil {
		reg.MustRegister(mc.promExecutions, mc.promErrors, mc.promDurations)
	}
	return mc
}

func (mc *MetricsCollector) statsFor(point Point) *PointStats {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	st, ok := mc.points[point]
	if !ok {
		st = &PointStats{Durations: NewHistogram()}
		mc.points[point] = st
	}
	return st
}

// RecordPreExecution increments the execution counter for point.
func (mc *MetricsCollector) RecordPreExecution(point Point) {
	st := mc.statsFor(point)
	mc.mu.Lock()
	st.ExecutionCount++
	mc.mu.Unlock()
	mc.promExecutions.WithLabelValues(point.String()).Inc()
}

// RecordPostExecution records the outcome and duration for point.
func (mc *MetricsCollector) RecordPostExecution(point Point, result Result, duration time.Duration, err error) {
	st := mc.statsFor(point)
	st.Durations.Observe(duration)

	mc.mu.Lock()
	if err != nil || result.IsError() {
		st.ErrorCount++
	} else {
		st.SuccessCount++
	}
	mc.mu.Unlock()

	if err != nil || result.IsError() {
		mc.promErrors.WithLabelValues(point.String()).Inc()
	}
	mc.promDurations.WithLabelValues(point.String()).Observe(duration.Seconds())
}

// Snapshot returns a copy of the current stats for point.
func (mc *MetricsCollector) Snapshot(point Point) (count, success, errCount uint64, hist Snapshot) {
	st := mc.statsFor(point)
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return st.ExecutionCount, st.SuccessCount, st.ErrorCount, st.Durations.Snapshot()
}
