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
	"context"
	"log/slog"
	"sync"
)

// Handler receives events delivered to a subscription.
type Handler func(ctx context.Context, evt Event)

type subscription struct {
	id      int
	pattern string
	handler Handler
}

// Bus is an in-process publish/subscribe event bus. Delivery to a single
// component's subscribers preserves the publish order local to that
// component; ordering across components is only meaningful through
// correlation IDs, per §5.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	nextID  int
	tracker *CorrelationTracker
	log     *slog.Logger
}

// NewBus constructs a Bus. tracker may be nil if correlation tracking is
// not needed by the caller.
func NewBus(tracker *CorrelationTracker, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{tracker: tracker, log: log}
}

// Subscribe registers handler for events whose Type matches pattern
// (supporting "a.*" / "*.started" wildcards). Returns an unsubscribe func.
func (b *Bus) Subscribe(pattern string, handler Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, pattern: pattern, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers evt synchronously to every matching subscriber, in
// registration order, and records it with the correlation tracker if one
// is configured.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if b.tracker != nil {
		b.tracker.Record(evt)
	}

	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if MatchesType(s.pattern, evt.Type) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range matched {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("event handler panicked", "pattern", s.pattern, "type", evt.Type, "panic", r)
				}
			}()
			s.handler(ctx, evt)
		}()
	}
}
