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

package isolation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOwnsOwnAgentScope(t *testing.T) {
	c := NewChecker(nil)
	require.True(t, c.Check("agent-1", Agent("agent-1"), PermWrite, "k"))
}

func TestStrictBoundaryDeniesSharedScope(t *testing.T) {
	c := NewChecker(nil)
	c.SetBoundary("agent-1", Strict())
	require.False(t, c.Check("agent-1", Workflow("wf-1"), PermRead, "k"))
}

func TestReadOnlySharedPermitsReadNotWrite(t *testing.T) {
	c := NewChecker(nil)
	c.SetBoundary("agent-1", ReadOnlyShared())
	require.True(t, c.Check("agent-1", Workflow("wf-1"), PermRead, "k"))
	require.False(t, c.Check("agent-1", Workflow("wf-1"), PermWrite, "k"))
}

func TestExplicitGrantPermits(t *testing.T) {
	c := NewChecker(nil)
	c.SetBoundary("agent-1", Strict())
	c.Permissions().Grant("agent-1", Workflow("wf-1"), PermRead)
	require.True(t, c.Check("agent-1", Workflow("wf-1"), PermRead, "k"))
	require.False(t, c.Check("agent-1", Workflow("wf-1"), PermWrite, "k"))
}

func TestPermissionInheritsFromParentScope(t *testing.T) {
	c := NewChecker(nil)
	c.SetBoundary("agent-1", Strict())
	c.Permissions().Grant("agent-1", Workflow("wf-1"), PermRead)
	require.True(t, c.Check("agent-1", Step("wf-1", "step-a"), PermRead, "k"))
}

func TestSharedScopeRegistrationGrantsAtomically(t *testing.T) {
	c := NewChecker(nil)
	c.SetBoundary("agent-1", Strict())
	c.SetBoundary("agent-2", Strict())

	scope := Session("sess-1")
	c.RegisterSharedScope(SharedScope{
		ScopeID: scope,
		Owner:   "agent-0",
		AllowedAgents: map[string][]Permission{
			"agent-1": {PermRead, PermWrite},
			"agent-2": {PermRead},
		},
	})

	require.True(t, c.Check("agent-1", scope, PermWrite, "k"))
	require.True(t, c.Check("agent-2", scope, PermRead, "k"))
	require.False(t, c.Check("agent-2", scope, PermWrite, "k"))

	c.RemoveSharedScope(scope)
	require.False(t, c.Check("agent-1", scope, PermWrite, "k"))
}

func TestDeniedAccessIsAudited(t *testing.T) {
	c := NewChecker(nil)
	c.SetBoundary("agent-1", Strict())
	c.Check("agent-1", Workflow("wf-1"), PermRead, "k")

	log := c.AuditLog()
	require.Len(t, log, 1)
	require.False(t, log[0].Allowed)
	require.Equal(t, "agent-1", log[0].Agent)
}

func TestScopeAncestors(t *testing.T) {
	s := Step("wf-1", "step-a")
	chain := s.Ancestors()
	require.Equal(t, []Scope{s, Workflow("wf-1"), Global}, chain)
}
