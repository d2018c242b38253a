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
	"log/slog"
	"sync"
	"time"

	"github.com/kadirpekel/substrate/pkg/logger"
)

// AuditEntry is one recorded access decision.
type AuditEntry struct {
	Timestamp    time.Time
	Agent        string
	TargetScope  Scope
	Op           Permission
	Key          string
	Allowed      bool
	Reason       string
	LatencyAlert bool
}

// accessLatencyWarnThreshold is the §4.6 budget for Checker.Check: any
// call taking longer than this logs a warning alongside the decision.
const accessLatencyWarnThreshold = time.Millisecond

// SharedScope is a registered shared scope: a set of agents (each with
// their own permission grants) that may access it outside their own
// ownership, subject to an optional expiry.
type SharedScope struct {
	ScopeID       Scope
	Owner         string
	AllowedAgents map[string][]Permission
	CreatedAt     time.Time
	ExpiresAt     *time.Time
}

// Checker performs the access-control decision of §4.6: owns-scope OR
// boundary-permits OR explicit-permission, logging every decision to an
// audit trail.
type Checker struct {
	mu           sync.RWMutex
	perms        *PermissionTable
	boundaries   map[string]Boundary // agent -> boundary
	owners       map[string]string   // scope.String() -> owning agent
	shared       map[string]*SharedScope
	audit        []AuditEntry
	log          *slog.Logger
}

// NewChecker constructs a Checker. log may be nil to use the process
// default.
func NewChecker(log *slog.Logger) *Checker {
	return &Checker{
		perms:      NewPermissionTable(),
		boundaries: map[string]Boundary{},
		owners:     map[string]string{},
		shared:     map[string]*SharedScope{},
		log:        logger.Component(log, "isolation"),
	}
}

// Permissions exposes the underlying PermissionTable for direct grants.
func (c *Checker) Permissions() *PermissionTable { return c.perms }

// SetBoundary assigns agent's access boundary.
func (c *Checker) SetBoundary(agent string, b Boundary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundaries[agent] = b
}

// RegisterOwnership marks agent as the owner of scope. An Agent(id) scope
// is implicitly owned by the agent named id even without a call here.
func (c *Checker) RegisterOwnership(agent string, scope Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners[scope.String()] = agent
}

func (c *Checker) owns(agent string, scope Scope) bool {
	if scope.Kind == KindAgent && scope.ID == agent {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owners[scope.String()] == agent
}

// RegisterSharedScope atomically grants every listed agent's permissions
// over the new shared scope.
func (c *Checker) RegisterSharedScope(s SharedScope) {
	c.mu.Lock()
	c.shared[s.ScopeID.String()] = &s
	c.mu.Unlock()

	c.perms.mu.Lock()
	defer c.perms.mu.Unlock()
	for agent, perms := range s.AllowedAgents {
		k := permKey(agent, s.ScopeID)
		set, ok := c.perms.grant[k]
		if !ok {
			set = map[Permission]bool{}
			c.perms.grant[k] = set
		}
		for _, p := range perms {
			set[p] = true
		}
	}
}

// RemoveSharedScope atomically revokes every listed agent's permissions
// over the shared scope.
func (c *Checker) RemoveSharedScope(scopeID Scope) {
	c.mu.Lock()
	s, ok := c.shared[scopeID.String()]
	if ok {
		delete(c.shared, scopeID.String())
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	c.perms.mu.Lock()
	defer c.perms.mu.Unlock()
	for agent, perms := range s.AllowedAgents {
		set, ok := c.perms.grant[permKey(agent, scopeID)]
		if !ok {
			continue
		}
		for _, p := range perms {
			delete(set, p)
		}
	}
}

// Check decides whether agent may perform op against target, optionally
// scoped to a single key (key is informational, used only for the audit
// log entry). The decision is owns-scope OR boundary-permits OR
// explicit-permission.
func (c *Checker) Check(agent string, target Scope, op Permission, key string) bool {
	start := time.Now()

	allowed := false
	reason := ""

	switch {
	case c.owns(agent, target):
		allowed = true
		reason = "owns-scope"
	case c.boundaryPermits(agent, target, op):
		allowed = true
		reason = "boundary-permits"
	case c.perms.Has(agent, target, op):
		allowed = true
		reason = "explicit-permission"
	default:
		reason = "denied: no ownership, boundary, or grant"
	}

	latency := time.Since(start)
	entry := AuditEntry{
		Timestamp:    start,
		Agent:        agent,
		TargetScope:  target,
		Op:           op,
		Key:          key,
		Allowed:      allowed,
		Reason:       reason,
		LatencyAlert: latency > accessLatencyWarnThreshold,
	}

	c.mu.Lock()
	c.audit = append(c.audit, entry)
	c.mu.Unlock()

	if !allowed {
		c.log.Warn("access denied", slog.String("agent", agent), slog.String("scope", target.String()),
			slog.String("op", string(op)), slog.String("key", key))
	}
	if entry.LatencyAlert {
		c.log.Warn("access check exceeded latency budget", slog.Duration("latency", latency),
			slog.String("agent", agent), slog.String("scope", target.String()))
	}

	return allowed
}

func (c *Checker) boundaryPermits(agent string, target Scope, op Permission) bool {
	c.mu.RLock()
	b, ok := c.boundaries[agent]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	ownScope := Agent(agent)
	return b.Permits(agent, ownScope, target, op)
}

// AuditLog returns a copy of every recorded access decision.
func (c *Checker) AuditLog() []AuditEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]AuditEntry, len(c.audit))
	copy(out, c.audit)
	return out
}
