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

import "sync"

// Permission is one of the four operations an agent may be granted
// against a scope.
type Permission string

const (
	PermRead   Permission = "Read"
	PermWrite  Permission = "Write"
	PermDelete Permission = "Delete"
	PermList   Permission = "List"
)

// PermissionTable grants permission sets to (agent, scope) pairs, with
// lookup falling back to parent scopes.
type PermissionTable struct {
	mu    sync.RWMutex
	grant map[string]map[Permission]bool // key: agentID + "|" + scope.String()
}

// NewPermissionTable constructs an empty PermissionTable.
func NewPermissionTable() *PermissionTable {
	return &PermissionTable{grant: map[string]map[Permission]bool{}}
}

func permKey(agent string, scope Scope) string { return agent + "|" + scope.String() }

// Grant gives agent the listed permissions over scope.
func (t *PermissionTable) Grant(agent string, scope Scope, perms ...Permission) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := permKey(agent, scope)
	set, ok := t.grant[k]
	if !ok {
		set = map[Permission]bool{}
		t.grant[k] = set
	}
	for _, p := range perms {
		set[p] = true
	}
}

// Revoke removes the listed permissions from agent over scope.
func (t *PermissionTable) Revoke(agent string, scope Scope, perms ...Permission) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.grant[permKey(agent, scope)]
	if !ok {
		return
	}
	for _, p := range perms {
		delete(set, p)
	}
}

// Has reports whether agent holds perm over scope, checking the exact
// (agent, scope) pair first and then walking up scope's ancestor chain.
func (t *PermissionTable) Has(agent string, scope Scope, perm Permission) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, s := range scope.Ancestors() {
		if set, ok := t.grant[permKey(agent, s)]; ok && set[perm] {
			return true
		}
	}
	return false
}
