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

// BoundaryKind names the coarse access policy assigned to an agent.
type BoundaryKind string

const (
	BoundaryStrict         BoundaryKind = "Strict"
	BoundaryReadOnlyShared BoundaryKind = "ReadOnlyShared"
	BoundarySharedAccess   BoundaryKind = "SharedAccess"
	BoundaryCustom         BoundaryKind = "Custom"
)

// PolicyFunc implements a named Custom boundary: given the acting agent,
// its own scope, the target scope, and the requested permission, it
// decides whether access is permitted.
type PolicyFunc func(agent string, ownScope, target Scope, perm Permission) bool

// Boundary is the access policy assigned to one agent.
type Boundary struct {
	Kind       BoundaryKind
	PolicyName string // Custom only
	Policy     PolicyFunc
}

// Strict returns the Strict boundary.
func Strict() Boundary { return Boundary{Kind: BoundaryStrict} }

// ReadOnlyShared returns the ReadOnlyShared boundary.
func ReadOnlyShared() Boundary { return Boundary{Kind: BoundaryReadOnlyShared} }

// SharedAccess returns the SharedAccess boundary.
func SharedAccess() Boundary { return Boundary{Kind: BoundarySharedAccess} }

// CustomBoundary returns a Custom boundary named policyName, evaluated
// by policy.
func CustomBoundary(policyName string, policy PolicyFunc) Boundary {
	return Boundary{Kind: BoundaryCustom, PolicyName: policyName, Policy: policy}
}

// Permits reports whether b allows agent (whose own scope is ownScope)
// to perform perm against target, when target is a shared scope (i.e.
// not owned by agent). Strict never permits; ReadOnlyShared permits only
// Read/List; SharedAccess permits everything; Custom delegates.
func (b Boundary) Permits(agent string, ownScope, target Scope, perm Permission) bool {
	switch b.Kind {
	case BoundaryStrict:
		return false
	case BoundaryReadOnlyShared:
		return perm == PermRead || perm == PermList
	case BoundarySharedAccess:
		return true
	case BoundaryCustom:
		if b.Policy == nil {
			return false
		}
		return b.Policy(agent, ownScope, target, perm)
	default:
		return false
	}
}
