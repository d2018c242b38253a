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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Testable property #10: histogram bucket counts are monotonically
// non-decreasing left to right, and the top bucket equals the total count.
func TestHistogramBucketMonotonicity(t *testing.T) {
	h := NewHistogram()
	durations := []time.Duration{
		500 * time.Microsecond,
		3 * time.Millisecond,
		20 * time.Millisecond,
		200 * time.Millisecond,
		3 * time.Second,
		20 * time.Second,
	}
	for _, d := range durations {
		h.Observe(d)
	}

	snap := h.Snapshot()
	require.Equal(t, uint64(len(durations)), snap.Count)

	for i := 1; i < len(snap.Buckets); i++ {
		require.GreaterOrEqualf(t, snap.Buckets[i], snap.Buckets[i-1],
			"bucket %d (%v) must be >= bucket %d (%v)", i, snap.Buckets[i], i-1, snap.Buckets[i-1])
	}
	require.Equal(t, uint64(len(durations)), snap.Buckets[len(snap.Buckets)-1])
	require.Greater(t, snap.P99, snap.P50)
}

func TestHistogramEmptySnapshot(t *testing.T) {
	h := NewHistogram()
	snap := h.Snapshot()
	require.Zero(t, snap.Count)
	require.Zero(t, snap.Mean)
}

func TestMetricsCollectorRecordsPerPoint(t *testing.T) {
	mc := NewMetricsCollector(nil)

	mc.RecordPreExecution(BeforeToolExecution)
	mc.RecordPostExecution(BeforeToolExecution, Continue(), 10*time.Millisecond, nil)

	mc.RecordPreExecution(BeforeToolExecution)
	mc.RecordPostExecution(BeforeToolExecution, Cancel("denied"), 5*time.Millisecond, nil)

	count, success, errCount, hist := mc.Snapshot(BeforeToolExecution)
	require.Equal(t, uint64(2), count)
	require.Equal(t, uint64(1), success)
	require.Equal(t, uint64(1), errCount)
	require.Equal(t, uint64(2), hist.Count)

	otherCount, _, _, _ := mc.Snapshot(AfterToolExecution)
	require.Zero(t, otherCount)
}
