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

// Package state implements the scoped key/value state manager of §4.4:
// records carry a JSON value, a timestamp, and the major schema version
// they were written under, so the migration engine can find everything
// that needs transforming between two versions.
package state

import (
	"encoding/json"
	"sync"
	"time"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
	"github.com/kadirpekel/substrate/pkg/isolation"
)

// Record is one stored value, stamped with the schema major version it
// was written under.
type Record struct {
	Key           string
	Value         json.RawMessage
	Timestamp     time.Time
	SchemaVersion int
}

// Manager is a scoped key/value store. Every operation is scoped by
// (tenant, isolation.Scope); the isolation package is consulted by
// callers before Get/Put/Delete, not by Manager itself — Manager is the
// storage primitive, isolation is the policy layer above it.
type Manager struct {
	mu   sync.RWMutex
	data map[scopedKey]*Record
}

type scopedKey struct {
	tenant string
	scope  string
	key    string
}

// NewManager constructs an empty in-process Manager.
func NewManager() *Manager {
	return &Manager{data: map[scopedKey]*Record{}}
}

func key(tenant string, scope isolation.Scope, k string) scopedKey {
	return scopedKey{tenant: tenant, scope: scope.String(), key: k}
}

// Put stores value under key in scope, stamping it with schemaVersion.
func (m *Manager) Put(tenant string, scope isolation.Scope, k string, value any, schemaVersion int) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return substrateerrors.Wrap(substrateerrors.Validation, "state", "Put", "marshal value", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key(tenant, scope, k)] = &Record{Key: k, Value: raw, Timestamp: time.Now(), SchemaVersion: schemaVersion}
	return nil
}

// Get retrieves the record stored under key in scope.
func (m *Manager) Get(tenant string, scope isolation.Scope, k string) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[key(tenant, scope, k)]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// Delete removes the record stored under key in scope.
func (m *Manager) Delete(tenant string, scope isolation.Scope, k string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key(tenant, scope, k))
}

// ListKeys returns every key stored for (tenant, scope).
func (m *Manager) ListKeys(tenant string, scope isolation.Scope) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scopeStr := scope.String()
	var keys []string
	for sk := range m.data {
		if sk.tenant == tenant && sk.scope == scopeStr {
			keys = append(keys, sk.key)
		}
	}
	return keys
}

// AllInScope returns every record for (tenant, scope), used by the
// migration engine to iterate state entries without touching hook
// execution history stored elsewhere.
func (m *Manager) AllInScope(tenant string, scope isolation.Scope) []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scopeStr := scope.String()
	var out []*Record
	for sk, rec := range m.data {
		if sk.tenant == tenant && sk.scope == scopeStr {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out
}

// Snapshot captures every record across all tenants/scopes, keyed by its
// scoped identity, for migration rollback (§4.4's snapshot-based primary
// rollback strategy).
type Snapshot struct {
	records map[scopedKey]*Record
}

// Snapshot returns a point-in-time copy of the entire store.
func (m *Manager) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp := make(map[scopedKey]*Record, len(m.data))
	for k, v := range m.data {
		rc := *v
		cp[k] = &rc
	}
	return &Snapshot{records: cp}
}

// SnapshotScope captures only the records visible to (tenant, scope),
// cheaper than a whole-store Snapshot when a migration touches a single
// scope out of a large multi-tenant store. It returns nil when the scope
// holds no records, since there is nothing to restore.
func (m *Manager) SnapshotScope(tenant string, scope isolation.Scope) *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scopeStr := scope.String()
	cp := make(map[scopedKey]*Record)
	for k, v := range m.data {
		if k.tenant == tenant && k.scope == scopeStr {
			rc := *v
			cp[k] = &rc
		}
	}
	if len(cp) == 0 {
		return nil
	}
	return &Snapshot{records: cp}
}

// Restore replaces the store's contents with snap, used when a migration
// fails and rollback_on_error is set.
func (m *Manager) Restore(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = snap.records
}

// RestoreScope writes back every record captured in snap without
// touching keys outside it, the counterpart to SnapshotScope.
func (m *Manager) RestoreScope(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range snap.records {
		m.data[k] = v
	}
}
