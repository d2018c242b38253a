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
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCyclicWorkflowFailsValidation implements S6: A→B, B→C, C→A must be
// rejected before any execution is attempted.
func TestCyclicWorkflowFailsValidation(t *testing.T) {
	steps := []Step{
		{ID: "A", Dependencies: []string{"C"}},
		{ID: "B", Dependencies: []string{"A"}},
		{ID: "C", Dependencies: []string{"B"}},
	}

	_, err := PlanSteps(steps)
	require.Error(t, err)
}

func TestInvalidDependencyTargetFailsValidation(t *testing.T) {
	steps := []Step{
		{ID: "A", Dependencies: []string{"does-not-exist"}},
	}
	_, err := PlanSteps(steps)
	require.Error(t, err)
}

// TestTopologicalSoundness is testable property #3: every step appears
// in a later wave than all of its dependencies, for an arbitrary DAG.
func TestTopologicalSoundness(t *testing.T) {
	steps := []Step{
		{ID: "A"},
		{ID: "B", Dependencies: []string{"A"}},
		{ID: "C", Dependencies: []string{"A"}},
		{ID: "D", Dependencies: []string{"B", "C"}},
		{ID: "E", Dependencies: []string{"D"}},
	}

	plan, err := PlanSteps(steps)
	require.NoError(t, err)

	waveOf := map[string]int{}
	for i, wave := range plan.Waves {
		for _, s := range wave {
			waveOf[s.ID] = i
		}
	}

	for _, s := range steps {
		for _, dep := range s.Dependencies {
			require.Less(t, waveOf[dep], waveOf[s.ID], "%s must be scheduled after its dependency %s", s.ID, dep)
		}
	}

	require.Equal(t, 4, len(plan.Waves))
	require.ElementsMatch(t, []string{"B", "C"}, idsOf(plan.Waves[1]))
}

func TestIndependentStepsFormOneWave(t *testing.T) {
	steps := []Step{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	plan, err := PlanSteps(steps)
	require.NoError(t, err)
	require.Len(t, plan.Waves, 1)
	require.Len(t, plan.Waves[0], 3)
}

func idsOf(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID
	}
	return out
}
