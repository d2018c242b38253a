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

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemory is a single-process Backend: a timestamp slice per key,
// trimmed to the trailing window on every call. Adequate for a single
// substrate instance; Redis backs a multi-process deployment.
type InMemory struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewInMemory constructs an empty InMemory backend.
func NewInMemory() *InMemory {
	return &InMemory{hits: map[string][]time.Time{}}
}

func (m *InMemory) RecordAndCount(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-window)
	kept := m.hits[key][:0]
	for _, t := range m.hits[key] {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	m.hits[key] = kept

	return len(kept), nil
}
