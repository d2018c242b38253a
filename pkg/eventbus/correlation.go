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
	"sort"
	"sync"
)

// Relationship describes how two events are causally linked.
type Relationship string

const (
	FollowsFrom   Relationship = "follows_from"
	CausedBy      Relationship = "caused_by"
	ResponseTo    Relationship = "response_to"
	HappensBefore Relationship = "happens_before"
	ConcurrentWith Relationship = "concurrent_with"
)

// EventLink is a directed causal edge between two event IDs.
type EventLink struct {
	FromID       string
	ToID         string
	Relationship Relationship
	Strength     float64
}

// CorrelationTracker indexes events by correlation ID and maintains the
// set of EventLink edges between them. Links never form a directed cycle
// (§3.2); AddLink rejects an edge that would close one.
type CorrelationTracker struct {
	mu        sync.RWMutex
	events    map[string][]Event   // correlationID -> events, insertion order
	byID      map[string]Event     // eventID -> event
	links     map[string][]EventLink // correlationID -> links
	adjacency map[string]map[string]bool // eventID -> set of eventIDs it points to (for cycle check)
}

// NewCorrelationTracker constructs an empty tracker.
func NewCorrelationTracker() *CorrelationTracker {
	return &CorrelationTracker{
		events:    map[string][]Event{},
		byID:      map[string]Event{},
		links:     map[string][]EventLink{},
		adjacency: map[string]map[string]bool{},
	}
}

// Record indexes evt under its correlation ID.
func (t *CorrelationTracker) Record(evt Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[evt.CorrelationID] = append(t.events[evt.CorrelationID], evt)
	t.byID[evt.ID] = evt
}

// AddLink records a causal edge. It returns false without mutating state
// if adding the edge would close a directed cycle.
func (t *CorrelationTracker) AddLink(link EventLink) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.wouldCycle(link.FromID, link.ToID) {
		return false
	}

	if t.adjacency[link.FromID] == nil {
		t.adjacency[link.FromID] = map[string]bool{}
	}
	t.adjacency[link.FromID][link.ToID] = true

	from, ok := t.byID[link.FromID]
	corrID := ""
	if ok {
		corrID = from.CorrelationID
	} else if to, ok2 := t.byID[link.ToID]; ok2 {
		corrID = to.CorrelationID
	}
	t.links[corrID] = append(t.links[corrID], link)
	return true
}

// wouldCycle reports whether adding from->to would create a path back
// from to to from. Caller holds the lock.
func (t *CorrelationTracker) wouldCycle(from, to string) bool {
	if from == to {
		return true
	}
	visited := map[string]bool{}
	var dfs func(node string) bool
	dfs = func(node string) bool {
		if node == from {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for next := range t.adjacency[node] {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(to)
}

// EventsFor returns every event recorded under correlationID, ordered by
// timestamp, truncated to maxEvents (0 means unlimited).
func (t *CorrelationTracker) EventsFor(correlationID string, maxEvents int) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	evts := append([]Event(nil), t.events[correlationID]...)
	sort.SliceStable(evts, func(i, j int) bool { return evts[i].Timestamp.Before(evts[j].Timestamp) })
	if maxEvents > 0 && len(evts) > maxEvents {
		evts = evts[:maxEvents]
	}
	return evts
}

// LinksFor returns the causal links recorded for correlationID.
func (t *CorrelationTracker) LinksFor(correlationID string) []EventLink {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]EventLink(nil), t.links[correlationID]...)
}
