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
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Execution is one recorded hook firing, keyed for later lookup and
// indexed by correlation so a whole causal chain can be pulled back out.
type Execution struct {
	ExecutionID   string
	CorrelationID string
	HookName      string
	Point         Point
	Context       Context
	Result        Result
	Duration      time.Duration
	RecordedAt    time.Time

	compressed []byte // zstd-compressed JSON of Context+Result; raw fields above stay for indexing
}

// Stats summarizes the store's current contents, per §4.2.
type Stats struct {
	TotalSizeBytes      int64
	CompressedSizeBytes int64
	CompressionRatio    float64
	CountByHook         map[string]int
	OldestTimestamp     time.Time
	NewestTimestamp     time.Time
}

// Store persists hook executions for replay/inspection, compressing the
// recorded context/result payload with zstd to keep the in-memory
// footprint down for long-running processes.
type Store struct {
	mu            sync.RWMutex
	byExecution   map[string]*Execution
	byCorrelation map[string][]string // correlation_id -> execution_ids, insertion order

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewStore constructs an empty Store.
func NewStore() (*Store, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Store{
		byExecution:   map[string]*Execution{},
		byCorrelation: map[string][]string{},
		encoder:       enc,
		decoder:       dec,
	}, nil
}

type payload struct {
	Context Context `json:"context"`
	Result  Result  `json:"result"`
}

// Record compresses and stores exec's context/result payload.
func (s *Store) Record(exec Execution) error {
	raw, err := json.Marshal(payload{Context: exec.Context, Result: exec.Result})
	if err != nil {
		return err
	}
	exec.compressed = s.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := exec
	s.byExecution[exec.ExecutionID] = &stored
	if exec.CorrelationID != "" {
		s.byCorrelation[exec.CorrelationID] = append(s.byCorrelation[exec.CorrelationID], exec.ExecutionID)
	}
	return nil
}

// Get retrieves the execution by id and decompresses its payload.
func (s *Store) Get(executionID string) (Execution, payload, bool, error) {
	s.mu.RLock()
	stored, ok := s.byExecution[executionID]
	s.mu.RUnlock()
	if !ok {
		return Execution{}, payload{}, false, nil
	}

	raw, err := s.decoder.DecodeAll(stored.compressed, nil)
	if err != nil {
		return Execution{}, payload{}, false, err
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Execution{}, payload{}, false, err
	}
	return *stored, p, true, nil
}

// ByCorrelation returns every execution sharing correlationID, in
// recording order.
func (s *Store) ByCorrelation(correlationID string) []Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byCorrelation[correlationID]
	out := make([]Execution, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.byExecution[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// Stats computes aggregate statistics over the current store contents.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{CountByHook: map[string]int{}}
	for _, e := range s.byExecution {
		raw, err := json.Marshal(payload{Context: e.Context, Result: e.Result})
		if err == nil {
			st.TotalSizeBytes += int64(len(raw))
		}
		st.CompressedSizeBytes += int64(len(e.compressed))
		st.CountByHook[e.HookName]++

		if st.OldestTimestamp.IsZero() || e.RecordedAt.Before(st.OldestTimestamp) {
			st.OldestTimestamp = e.RecordedAt
		}
		if e.RecordedAt.After(st.NewestTimestamp) {
			st.NewestTimestamp = e.RecordedAt
		}
	}
	if st.TotalSizeBytes > 0 {
		st.CompressionRatio = float64(st.CompressedSizeBytes) / float64(st.TotalSizeBytes)
	}
	return st
}

// Cleanup evicts executions older than maxAge, then — if the store is
// still above maxSizeBytes (measured as compressed bytes) — evicts the
// oldest remaining executions until it fits.
func (s *Store) Cleanup(maxSizeBytes int64, maxAge time.Duration) (evicted int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	type entry struct {
		id         string
		recordedAt time.Time
		size       int64
	}
	entries := make([]entry, 0, len(s.byExecution))
	for id, e := range s.byExecution {
		entries = append(entries, entry{id: id, recordedAt: e.RecordedAt, size: int64(len(e.compressed))})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].recordedAt.Before(entries[j].recordedAt) })

	var total int64
	keep := entries[:0]
	for _, e := range entries {
		if maxAge > 0 && now.Sub(e.recordedAt) > maxAge {
			evicted++
			continue
		}
		total += e.size
		keep = append(keep, e)
	}

	if maxSizeBytes > 0 {
		i := 0
		for total > maxSizeBytes && i < len(keep) {
			total -= keep[i].size
			evicted++
			i++
		}
		keep = keep[i:]
	}

	survivors := make(map[string]bool, len(keep))
	for _, e := range keep {
		survivors[e.id] = true
	}
	for id := range s.byExecution {
		if !survivors[id] {
			delete(s.byExecution, id)
		}
	}
	for corr, ids := range s.byCorrelation {
		filtered := ids[:0]
		for _, id := range ids {
			if survivors[id] {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) == 0 {
			delete(s.byCorrelation, corr)
		} else {
			s.byCorrelation[corr] = filtered
		}
	}
	return evicted
}
