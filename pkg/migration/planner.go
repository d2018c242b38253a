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

package migration

import (
	"fmt"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
)

// MigrationStep is one hop on the path between two schema versions.
type MigrationStep struct {
	FromVersion string
	ToVersion   string
	Description string
	Transform   StateTransformation
}

// Planner computes the ordered path of steps between two registered
// versions, and holds the registered StateTransformation for each edge.
type Planner struct {
	registry *Registry
	edges    map[string]map[string]StateTransformation // from -> to -> transformation
}

// NewPlanner constructs a Planner over registry.
func NewPlanner(registry *Registry) *Planner {
	return &Planner{registry: registry, edges: map[string]map[string]StateTransformation{}}
}

// RegisterEdge adds a directly-reachable transformation from one version
// to another.
func (p *Planner) RegisterEdge(t StateTransformation) {
	if p.edges[t.FromVersion] == nil {
		p.edges[t.FromVersion] = map[string]StateTransformation{}
	}
	p.edges[t.FromVersion][t.ToVersion] = t
}

// Plan computes an ordered path of MigrationStep from `from` to `to` via
// breadth-first search over the registered edges, so the shortest chain
// of transformations is preferred.
func (p *Planner) Plan(from, to string) ([]MigrationStep, error) {
	if from == to {
		return nil, nil
	}
	if _, ok := p.registry.Get(from); !ok {
		return nil, errSchemaNotFound(from)
	}
	if _, ok := p.registry.Get(to); !ok {
		return nil, errSchemaNotFound(to)
	}

	type frame struct {
		version string
		path    []MigrationStep
	}
	visited := map[string]bool{from: true}
	queue := []frame{{version: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for next, transform := range p.edges[cur.version] {
			if visited[next] {
				continue
			}
			step := MigrationStep{
				FromVersion: cur.version,
				ToVersion:   next,
				Description: fmt.Sprintf("migrate %s -> %s", cur.version, next),
				Transform:   transform,
			}
			path := append(append([]MigrationStep{}, cur.path...), step)
			if next == to {
				return path, nil
			}
			visited[next] = true
			queue = append(queue, frame{version: next, path: path})
		}
	}

	return nil, substrateerrors.New(substrateerrors.NotFound, "migration", "Plan",
		fmt.Sprintf("no migration path from %s to %s", from, to))
}
