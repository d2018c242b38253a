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

// Package eventbus implements the publish/subscribe event bus, causal
// correlation tracker, and timeline reconstruction of §4.3.
package eventbus

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is the value-typed unit of the bus. Producers own their copy;
// the bus and correlation tracker only ever hold copies for delivery and
// indexing, never back-references to a producer.
type Event struct {
	ID            string
	Type          string
	Payload       map[string]any
	Timestamp     time.Time
	Source        string
	CorrelationID string
	Metadata      map[string]any
}

// NewEvent builds an Event, generating an ID if the caller didn't set
// one. Events produced while handling another event should inherit that
// event's CorrelationID, per the invariant in §3.2.
func NewEvent(eventType, correlationID string, payload map[string]any) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
		Metadata:      map[string]any{},
	}
}

// MatchesType reports whether pattern (which may use a single trailing or
// leading "*" wildcard segment, e.g. "agent.*" or "*.started") matches
// eventType.
func MatchesType(pattern, eventType string) bool {
	if pattern == eventType {
		return true
	}
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, ".*")
		return eventType == prefix || strings.HasPrefix(eventType, prefix+".")
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := strings.TrimPrefix(pattern, "*.")
		return eventType == suffix || strings.HasSuffix(eventType, "."+suffix)
	}
	return false
}
