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
	"sort"
	"sync"
)

// Registry is the process-wide, shared read-mostly table of registered
// hooks. Reads (Dispatch's lookup) dominate writes, so it's guarded by an
// RWMutex, per §9's shared-mutable-state guidance.
type Registry struct {
	mu       sync.RWMutex
	byPoint  map[Point][]registration
	nextSeq  int
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byPoint: map[Point][]registration{}}
}

// Register adds hook at point with the given priority (lower runs
// earlier). Ties are broken by registration order.
func (r *Registry) Register(point Point, hook Hook, priority int, language string, tags []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg := registration{hook: hook, point: point, priority: priority, order: r.nextSeq, language: language, tags: tags}
	r.nextSeq++

	regs := append(r.byPoint[point], reg)
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority < regs[j].priority
		}
		return regs[i].order < regs[j].order
	})
	r.byPoint[point] = regs
}

// HooksFor returns the hooks registered at point, in dispatch order.
func (r *Registry) HooksFor(point Point) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := r.byPoint[point]
	out := make([]Hook, len(regs))
	for i, reg := range regs {
		out[i] = reg.hook
	}
	return out
}

// Count returns the number of hooks registered at point.
func (r *Registry) Count(point Point) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPoint[point])
}
