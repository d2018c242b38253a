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

// Package memory implements the vector-backed episodic memory store and
// the consolidation daemon of §4.5 / §4.10: raw interaction entries are
// appended per session, periodically distilled by an LLM consolidation
// engine, and marked processed.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
)

// Role identifies the speaker of an episodic entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Entry is one episodic interaction, per the Episodic entry of §3.1.
type Entry struct {
	ID        string
	Session   string
	Role      Role
	Content   string
	Embedding []float32
	Processed bool
	CreatedAt time.Time
	Metadata  map[string]any
}

// SessionActivity pairs a session with the timestamp of its most recent
// unprocessed entry, used to prioritize consolidation order.
type SessionActivity struct {
	Session      string
	LastActivity time.Time
	Unprocessed  int
}

// EpisodicMemory is the store the consolidation daemon drains. InMemory
// is the only implementation in this module; a SQL+HNSW production store
// is out of scope per §1's "concrete vector-index implementations".
type EpisodicMemory interface {
	Append(ctx context.Context, e Entry) (string, error)
	Get(ctx context.Context, id string) (Entry, bool, error)
	SearchSimilar(ctx context.Context, session string, query []float32, k int) ([]Entry, error)
	UnprocessedBySessionOrdered(ctx context.Context) ([]SessionActivity, error)
	LoadUnprocessed(ctx context.Context, session string) ([]Entry, error)
	MarkProcessed(ctx context.Context, ids []string) error
	UnprocessedCount(ctx context.Context) (int, error)
}

// InMemory pairs a flat map (O(1) direct lookup, O(n) filtered scan) with
// brute-force cosine search, per §4.5's "vector index + in-memory map"
// pairing description. The map is the only store here; a production
// implementation repopulates an equivalent map from its durable vector
// index on startup, with the index as the source of truth.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewInMemory constructs an empty InMemory episodic store.
func NewInMemory() *InMemory {
	return &InMemory{entries: map[string]*Entry{}}
}

func (m *InMemory) Append(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := e
	m.entries[e.ID] = &cp
	return e.ID, nil
}

func (m *InMemory) Get(ctx context.Context, id string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, false, nil
	}
	return *e, true, nil
}

func (m *InMemory) SearchSimilar(ctx context.Context, session string, query []float32, k int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		entry Entry
		score float64
	}
	var candidates []scored
	for _, e := range m.entries {
		if e.Session != session {
			continue
		}
		candidates = append(candidates, scored{entry: *e, score: cosineSimilarity(query, e.Embedding)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]Entry, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// UnprocessedBySessionOrdered groups unprocessed entries by session and
// returns them ordered by most-recent-activity-first, the ordering the
// consolidation daemon relies on having already been applied (§4.10).
func (m *InMemory) UnprocessedBySessionOrdered(ctx context.Context) ([]SessionActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byCreated := map[string]time.Time{}
	counts := map[string]int{}
	for _, e := range m.entries {
		if e.Processed {
			continue
		}
		counts[e.Session]++
		if t, ok := byCreated[e.Session]; !ok || e.CreatedAt.After(t) {
			byCreated[e.Session] = e.CreatedAt
		}
	}

	out := make([]SessionActivity, 0, len(counts))
	for session, count := range counts {
		out = append(out, SessionActivity{Session: session, LastActivity: byCreated[session], Unprocessed: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

// LoadUnprocessed returns session's unprocessed entries in timestamp
// order, the order §4.10 requires a single consolidate call to process
// entries in.
func (m *InMemory) LoadUnprocessed(ctx context.Context, session string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.entries {
		if e.Session == session && !e.Processed {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MarkProcessed flips every listed entry to processed in one batch.
func (m *InMemory) MarkProcessed(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		e, ok := m.entries[id]
		if !ok {
			return substrateerrors.New(substrateerrors.NotFound, "memory", "MarkProcessed", "no such entry: "+id)
		}
		e.Processed = true
	}
	return nil
}

func (m *InMemory) UnprocessedCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if !e.Processed {
			n++
		}
	}
	return n, nil
}
