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

import "time"

// TimelineConfig tunes timeline reconstruction.
type TimelineConfig struct {
	MaxEvents         int
	StrengthThreshold float64
	MaxCausalityDepth int
	ConcurrencyWindow time.Duration
}

// DefaultTimelineConfig mirrors the defaults implied by §4.3.
func DefaultTimelineConfig() TimelineConfig {
	return TimelineConfig{
		MaxEvents:         10_000,
		StrengthThreshold: 0.5,
		MaxCausalityDepth: 50,
		ConcurrencyWindow: 50 * time.Millisecond,
	}
}

// TimelineEntry wraps one event with its derived causal metadata.
type TimelineEntry struct {
	Event           Event
	CausedEvents    []string // IDs of events this one caused
	CausingEvents   []string // IDs of events that caused this one
	CausalityDepth  int
	ConcurrentWith  []string
}

// CausalityChain is an ordered walk from a root event through its
// caused-by graph.
type CausalityChain struct {
	Events  []string
	StartTS time.Time
	EndTS   time.Time
	Depth   int
}

// Timeline is the reconstructed view for one correlation ID.
type Timeline struct {
	CorrelationID string
	Entries       []TimelineEntry
	Chains        []CausalityChain
	Stats         TimelineStats
}

// TimelineStats are the summary statistics described in §4.3.
type TimelineStats struct {
	TotalEvents      int
	Duration         time.Duration
	ChainCount       int
	MaxDepth         int
	ConcurrentGroups int
	EventsPerSecond  float64
	RootCauses       int
	LeafEffects      int
}

// Builder reconstructs timelines from a CorrelationTracker.
type Builder struct {
	tracker *CorrelationTracker
	cfg     TimelineConfig
}

// NewBuilder constructs a Builder.
func NewBuilder(tracker *CorrelationTracker, cfg TimelineConfig) *Builder {
	return &Builder{tracker: tracker, cfg: cfg}
}

// Build reconstructs the timeline for correlationID.
func (b *Builder) Build(correlationID string) Timeline {
	events := b.tracker.EventsFor(correlationID, b.cfg.MaxEvents)
	links := b.tracker.LinksFor(correlationID)

	entryByID := make(map[string]*TimelineEntry, len(events))
	order := make([]string, 0, len(events))
	for _, e := range events {
		entryByID[e.ID] = &TimelineEntry{Event: e}
		order = append(order, e.ID)
	}

	// Record caused/causing edges for links above the strength threshold
	// and of a causal relationship kind.
	for _, l := range links {
		if l.Strength < b.cfg.StrengthThreshold {
			continue
		}
		if l.Relationship != CausedBy && l.Relationship != ResponseTo && l.Relationship != FollowsFrom {
			continue
		}
		causing, okC := entryByID[l.FromID]
		caused, okE := entryByID[l.ToID]
		if !okC || !okE {
			continue
		}
		// FromID caused ToID in all three relationship kinds as modeled here.
		causing.CausedEvents = append(causing.CausedEvents, l.ToID)
		caused.CausingEvents = append(caused.CausingEvents, l.FromID)
	}

	// Assign causality depth via topological BFS from roots (no incoming
	// causing edge), capped at MaxCausalityDepth.
	depth := make(map[string]int, len(order))
	roots := []string{}
	for _, id := range order {
		if len(entryByID[id].CausingEvents) == 0 {
			roots = append(roots, id)
			depth[id] = 0
		}
	}
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := depth[cur]
		for _, next := range entryByID[cur].CausedEvents {
			nd := d + 1
			if nd > b.cfg.MaxCausalityDepth {
				nd = b.cfg.MaxCausalityDepth
			}
			if existing, seen := depth[next]; !seen || nd < existing {
				depth[next] = nd
				queue = append(queue, next)
			}
		}
	}
	maxDepth := 0
	for _, id := range order {
		entryByID[id].CausalityDepth = depth[id]
		if depth[id] > maxDepth {
			maxDepth = depth[id]
		}
	}

	// Pairwise concurrency sweep within the configured window.
	concurrentGroups := 0
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			a, c := entryByID[order[i]], entryByID[order[j]]
			diff := a.Event.Timestamp.Sub(c.Event.Timestamp)
			if diff < 0 {
				diff = -diff
			}
			if diff <= b.cfg.ConcurrencyWindow {
				a.ConcurrentWith = append(a.ConcurrentWith, c.Event.ID)
				c.ConcurrentWith = append(c.ConcurrentWith, a.Event.ID)
				concurrentGroups++
			}
		}
	}

	// Walk caused-by graph from each root to form chains.
	var chains []CausalityChain
	leafCount := 0
	for _, id := range order {
		if len(entryByID[id].CausingEvents) == 0 {
			chain := walkChain(entryByID, id)
			chains = append(chains, chain)
		}
		if len(entryByID[id].CausedEvents) == 0 {
			leafCount++
		}
	}

	entries := make([]TimelineEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, *entryByID[id])
	}

	stats := TimelineStats{
		TotalEvents:      len(order),
		ChainCount:       len(chains),
		MaxDepth:         maxDepth,
		ConcurrentGroups: concurrentGroups,
		RootCauses:       len(roots),
		LeafEffects:      leafCount,
	}
	if len(order) > 0 {
		first, last := events[0].Timestamp, events[len(events)-1].Timestamp
		stats.Duration = last.Sub(first)
		if secs := stats.Duration.Seconds(); secs > 0 {
			stats.EventsPerSecond = float64(len(order)) / secs
		}
	}

	return Timeline{CorrelationID: correlationID, Entries: entries, Chains: chains, Stats: stats}
}

func walkChain(entries map[string]*TimelineEntry, rootID string) CausalityChain {
	chain := CausalityChain{Events: []string{rootID}}
	chain.StartTS = entries[rootID].Event.Timestamp
	chain.EndTS = chain.StartTS

	visited := map[string]bool{rootID: true}
	queue := []string{rootID}
	maxDepth := entries[rootID].CausalityDepth
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range entries[cur].CausedEvents {
			if visited[next] {
				continue
			}
			visited[next] = true
			chain.Events = append(chain.Events, next)
			ts := entries[next].Event.Timestamp
			if ts.Before(chain.StartTS) {
				chain.StartTS = ts
			}
			if ts.After(chain.EndTS) {
				chain.EndTS = ts
			}
			if entries[next].CausalityDepth > maxDepth {
				maxDepth = entries[next].CausalityDepth
			}
			queue = append(queue, next)
		}
	}
	chain.Depth = maxDepth
	return chain
}
