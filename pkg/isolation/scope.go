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

// Package isolation implements the scope hierarchy, permission lookup,
// boundary policies, and audited access checks of §4.6.
package isolation

import "fmt"

// ScopeKind discriminates the Scope variants.
type ScopeKind string

const (
	KindGlobal   ScopeKind = "Global"
	KindAgent    ScopeKind = "Agent"
	KindWorkflow ScopeKind = "Workflow"
	KindStep     ScopeKind = "Step"
	KindSession  ScopeKind = "Session"
	KindCustom   ScopeKind = "Custom"
)

// Scope identifies an isolation boundary. Step scopes carry both their
// owning workflow id and a step name, since a Step's parent is its
// Workflow, not Global directly.
type Scope struct {
	Kind       ScopeKind
	ID         string // Agent(id) / Workflow(id) / Session(id)
	WorkflowID string // Step only
	StepName   string // Step only
	Prefix     string // Custom only
}

// Global is the root scope.
var Global = Scope{Kind: KindGlobal}

// Agent constructs an Agent(id) scope.
func Agent(id string) Scope { return Scope{Kind: KindAgent, ID: id} }

// Workflow constructs a Workflow(id) scope.
func Workflow(id string) Scope { return Scope{Kind: KindWorkflow, ID: id} }

// Step constructs a Step{workflow_id, step_name} scope.
func Step(workflowID, stepName string) Scope {
	return Scope{Kind: KindStep, WorkflowID: workflowID, StepName: stepName}
}

// Session constructs a Session(id) scope.
func Session(id string) Scope { return Scope{Kind: KindSession, ID: id} }

// Custom constructs a Custom(prefix) scope.
func Custom(prefix string) Scope { return Scope{Kind: KindCustom, Prefix: prefix} }

// String renders a Scope as a stable identity string, used both for
// display and as the map key underlying state.Manager's scoping.
func (s Scope) String() string {
	switch s.Kind {
	case KindGlobal:
		return "Global"
	case KindAgent:
		return fmt.Sprintf("Agent(%s)", s.ID)
	case KindWorkflow:
		return fmt.Sprintf("Workflow(%s)", s.ID)
	case KindStep:
		return fmt.Sprintf("Step(%s,%s)", s.WorkflowID, s.StepName)
	case KindSession:
		return fmt.Sprintf("Session(%s)", s.ID)
	case KindCustom:
		return fmt.Sprintf("Custom(%s)", s.Prefix)
	default:
		return "Unknown"
	}
}

// Parent returns the scope one level up the hierarchy and whether one
// exists. Step→Workflow→Global, Agent→Global, Session→Global. Global and
// Custom scopes have no parent.
func (s Scope) Parent() (Scope, bool) {
	switch s.Kind {
	case KindStep:
		return Workflow(s.WorkflowID), true
	case KindWorkflow, KindAgent, KindSession:
		return Global, true
	default:
		return Scope{}, false
	}
}

// Ancestors returns s followed by every ancestor up to and including
// Global (or s alone, for Custom scopes with no defined parent chain).
func (s Scope) Ancestors() []Scope {
	chain := []Scope{s}
	cur := s
	for {
		parent, ok := cur.Parent()
		if !ok {
			return chain
		}
		chain = append(chain, parent)
		cur = parent
	}
}
