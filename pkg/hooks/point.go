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

// Package hooks implements the ordered, typed interception pipeline of
// §4.2: registration with priority, dispatch with short-circuiting result
// handling, a built-in metrics histogram, and a persistence/replay layer
// for recorded executions.
package hooks

import (
	"encoding/json"
	"fmt"
)

// Point identifies a named interception site. The closed set below
// covers every point named in §4.2; Custom(name) is the open variant.
type Point struct {
	name string
}

func (p Point) String() string { return p.name }

// MarshalJSON encodes Point as its bare name string, so a Point survives
// a JSON round-trip even though its only field is unexported.
func (p Point) MarshalJSON() ([]byte, error) { return json.Marshal(p.name) }

// UnmarshalJSON decodes a bare name string back into Point.
func (p *Point) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &p.name)
}

// Custom constructs an open-ended hook point.
func Custom(name string) Point { return Point{name: "custom:" + name} }

var (
	BeforeAgentInit        = Point{"BeforeAgentInit"}
	AfterAgentInit         = Point{"AfterAgentInit"}
	BeforeAgentExecution   = Point{"BeforeAgentExecution"}
	AfterAgentExecution    = Point{"AfterAgentExecution"}
	BeforeToolExecution    = Point{"BeforeToolExecution"}
	AfterToolExecution     = Point{"AfterToolExecution"}
	BeforeWorkflowStart    = Point{"BeforeWorkflowStart"}
	BeforeStepExecution    = Point{"BeforeStepExecution"}
	AfterStepExecution     = Point{"AfterStepExecution"}
	AfterWorkflowComplete  = Point{"AfterWorkflowComplete"}
	WorkflowError          = Point{"WorkflowError"}
	SystemStartup          = Point{"SystemStartup"}
	SystemShutdown         = Point{"SystemShutdown"}
)

// AllBuiltinPoints lists the closed enumeration, useful for iterating
// metrics or pre-registering histogram buckets.
func AllBuiltinPoints() []Point {
	return []Point{
		BeforeAgentInit, AfterAgentInit, BeforeAgentExecution, AfterAgentExecution,
		BeforeToolExecution, AfterToolExecution, BeforeWorkflowStart, BeforeStepExecution,
		AfterStepExecution, AfterWorkflowComplete, WorkflowError, SystemStartup, SystemShutdown,
	}
}

// Context is the mutable context passed to every hook at a fired point.
type Context struct {
	Point         Point
	ComponentID   string
	CorrelationID string
	Data          map[string]any
	Metadata      map[string]any
}

func (c Context) String() string {
	return fmt.Sprintf("Context{point=%s, component=%s, correlation=%s}", c.Point, c.ComponentID, c.CorrelationID)
}
