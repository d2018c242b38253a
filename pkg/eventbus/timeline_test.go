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

package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTimeline_S7 implements spec.md scenario S7: three events in one
// correlation ID where e2 is caused by e1 and e3 is caused by e2.
func TestTimeline_S7(t *testing.T) {
	tracker := NewCorrelationTracker()
	corr := "corr-1"
	base := time.Now()

	e1 := Event{ID: "e1", Type: "start", CorrelationID: corr, Timestamp: base}
	e2 := Event{ID: "e2", Type: "middle", CorrelationID: corr, Timestamp: base.Add(10 * time.Millisecond)}
	e3 := Event{ID: "e3", Type: "end", CorrelationID: corr, Timestamp: base.Add(20 * time.Millisecond)}

	tracker.Record(e1)
	tracker.Record(e2)
	tracker.Record(e3)

	require.True(t, tracker.AddLink(EventLink{FromID: "e1", ToID: "e2", Relationship: CausedBy, Strength: 1.0}))
	require.True(t, tracker.AddLink(EventLink{FromID: "e2", ToID: "e3", Relationship: CausedBy, Strength: 1.0}))

	cfg := DefaultTimelineConfig()
	cfg.ConcurrencyWindow = time.Millisecond // tight window so e1..e3 aren't marked concurrent
	tl := NewBuilder(tracker, cfg).Build(corr)

	assert.Equal(t, 3, tl.Stats.TotalEvents)
	assert.Equal(t, 1, tl.Stats.ChainCount)
	assert.Equal(t, 2, tl.Stats.MaxDepth)
	assert.Equal(t, 1, tl.Stats.RootCauses)
	assert.Equal(t, 1, tl.Stats.LeafEffects)
	assert.GreaterOrEqual(t, tl.Stats.EventsPerSecond, 0.0)
}

func TestCorrelationTracker_RejectsCycle(t *testing.T) {
	tracker := NewCorrelationTracker()
	tracker.Record(Event{ID: "a", CorrelationID: "c"})
	tracker.Record(Event{ID: "b", CorrelationID: "c"})

	require.True(t, tracker.AddLink(EventLink{FromID: "a", ToID: "b", Relationship: CausedBy, Strength: 1}))
	assert.False(t, tracker.AddLink(EventLink{FromID: "b", ToID: "a", Relationship: CausedBy, Strength: 1}),
		"adding the reverse edge would close a cycle")
}

func TestMatchesType_Wildcards(t *testing.T) {
	assert.True(t, MatchesType("agent.*", "agent.started"))
	assert.True(t, MatchesType("agent.*", "agent"))
	assert.False(t, MatchesType("agent.*", "workflow.started"))
	assert.True(t, MatchesType("*.started", "agent.started"))
	assert.False(t, MatchesType("*.started", "agent.stopped"))
}
