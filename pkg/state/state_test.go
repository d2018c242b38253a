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

package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/substrate/pkg/isolation"
)

func TestPutGetRoundTrip(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Put("tenant-a", isolation.Agent("agent-1"), "counter", map[string]any{"n": 1.0}, 2))

	rec, ok := m.Get("tenant-a", isolation.Agent("agent-1"), "counter")
	require.True(t, ok)
	require.Equal(t, 2, rec.SchemaVersion)
	require.JSONEq(t, `{"n":1}`, string(rec.Value))
}

func TestScopesAndTenantsAreIsolated(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Put("tenant-a", isolation.Global, "k", 1, 1))
	require.NoError(t, m.Put("tenant-b", isolation.Global, "k", 2, 1))

	_, ok := m.Get("tenant-a", isolation.Agent("agent-1"), "k")
	require.False(t, ok)

	recA, ok := m.Get("tenant-a", isolation.Global, "k")
	require.True(t, ok)
	recB, ok := m.Get("tenant-b", isolation.Global, "k")
	require.True(t, ok)
	require.NotEqual(t, string(recA.Value), string(recB.Value))
}

func TestDeleteAndListKeys(t *testing.T) {
	m := NewManager()
	scope := isolation.Workflow("wf-1")
	require.NoError(t, m.Put("t", scope, "a", 1, 1))
	require.NoError(t, m.Put("t", scope, "b", 2, 1))

	keys := m.ListKeys("t", scope)
	require.ElementsMatch(t, []string{"a", "b"}, keys)

	m.Delete("t", scope, "a")
	keys = m.ListKeys("t", scope)
	require.ElementsMatch(t, []string{"b"}, keys)
}

func TestSnapshotRestore(t *testing.T) {
	m := NewManager()
	scope := isolation.Session("s1")
	require.NoError(t, m.Put("t", scope, "a", 1, 1))

	snap := m.Snapshot()
	require.NoError(t, m.Put("t", scope, "a", 2, 1))
	require.NoError(t, m.Put("t", scope, "b", 3, 1))

	m.Restore(snap)

	_, hasB := m.Get("t", scope, "b")
	require.False(t, hasB)

	rec, ok := m.Get("t", scope, "a")
	require.True(t, ok)
	require.JSONEq(t, "1", string(rec.Value))
}
