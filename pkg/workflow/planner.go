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

package workflow

import (
	"sort"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
)

// Plan is a topologically-ordered set of execution waves: steps in the
// same wave have no dependency on one another and may run concurrently
// (bounded by Config.MaxParallel).
type Plan struct {
	Waves [][]Step
}

// validate checks every dependency target exists, per §4.7's
// InvalidDependency error.
func validate(steps []Step) error {
	ids := make(map[string]bool, len(steps))
	for _, s := range steps {
		ids[s.ID] = true
	}
	for _, s := range steps {
		for _, dep := range s.Dependencies {
			if !ids[dep] {
				return substrateerrors.New(substrateerrors.Workflow, "workflow", "validate",
					"step "+s.ID+" depends on unknown step "+dep+" (InvalidDependency)")
			}
		}
	}
	return nil
}

// PlanSteps runs Kahn's algorithm over steps, grouping into waves of steps
// whose dependencies are all satisfied by earlier waves. A remaining
// cycle after no more steps can be peeled is reported as
// CircularDependencies, per §4.7.
func PlanSteps(steps []Step) (Plan, error) {
	if err := validate(steps); err != nil {
		return Plan{}, err
	}

	byID := make(map[string]Step, len(steps))
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))

	for _, s := range steps {
		byID[s.ID] = s
		indegree[s.ID] = len(s.Dependencies)
		for _, dep := range s.Dependencies {
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	remaining := len(steps)
	var waves [][]Step

	for remaining > 0 {
		var wave []string
		for id, deg := range indegree {
			if deg == 0 {
				wave = append(wave, id)
			}
		}
		if len(wave) == 0 {
			return Plan{}, substrateerrors.New(substrateerrors.Workflow, "workflow", "PlanSteps",
				"cyclic dependency detected (CircularDependencies)")
		}
		sort.Strings(wave)

		waveSteps := make([]Step, len(wave))
		for i, id := range wave {
			waveSteps[i] = byID[id]
			delete(indegree, id)
		}
		waves = append(waves, waveSteps)
		remaining -= len(wave)

		for _, id := range wave {
			for _, dependent := range dependents[id] {
				indegree[dependent]--
			}
		}
	}

	return Plan{Waves: waves}, nil
}
