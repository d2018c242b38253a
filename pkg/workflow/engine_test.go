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
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	mu        sync.Mutex
	calls     []string
	failUntil map[string]int
	attempts  map[string]*atomic.Int64
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{failUntil: map[string]int{}, attempts: map[string]*atomic.Int64{}}
}

func (f *fakeInvoker) Invoke(ctx context.Context, componentID string, input map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, componentID)
	if f.attempts[componentID] == nil {
		f.attempts[componentID] = &atomic.Int64{}
	}
	n := f.attempts[componentID].Add(1)
	f.mu.Unlock()

	if threshold, ok := f.failUntil[componentID]; ok && int(n) <= threshold {
		return nil, fmt.Errorf("transient failure on attempt %d", n)
	}
	return map[string]any{"ok": true}, nil
}

func TestEngineExecutesInTopologicalOrder(t *testing.T) {
	steps := []Step{
		{ID: "A", ComponentID: "tool-a"},
		{ID: "B", ComponentID: "tool-b", Dependencies: []string{"A"}},
	}
	plan, err := PlanSteps(steps)
	require.NoError(t, err)

	invoker := newFakeInvoker()
	engine := NewEngine(invoker, nil)

	result, err := engine.Execute(context.Background(), "corr-1", plan, Config{})
	require.NoError(t, err)
	require.Equal(t, Completed, result.Status)
	require.True(t, result.Steps["A"].Success)
	require.True(t, result.Steps["B"].Success)
}

func TestEngineRetriesPerPolicyThenSucceeds(t *testing.T) {
	steps := []Step{
		{ID: "A", ComponentID: "flaky", RetryPolicy: &RetryPolicy{MaxAttempts: 3, BackoffSeconds: 0}},
	}
	plan, err := PlanSteps(steps)
	require.NoError(t, err)

	invoker := newFakeInvoker()
	invoker.failUntil["flaky"] = 2 // fails attempts 1 and 2, succeeds on 3

	engine := NewEngine(invoker, nil)
	result, err := engine.Execute(context.Background(), "corr-2", plan, Config{})
	require.NoError(t, err)
	require.True(t, result.Steps["A"].Success)
	require.Equal(t, 2, result.Steps["A"].RetryCount)
}

func TestEngineContinueOnErrorKeepsRunning(t *testing.T) {
	steps := []Step{
		{ID: "A", ComponentID: "always-fails"},
		{ID: "B", ComponentID: "tool-b", Dependencies: []string{"A"}},
	}
	plan, err := PlanSteps(steps)
	require.NoError(t, err)

	invoker := newFakeInvoker()
	invoker.failUntil["always-fails"] = 999

	engine := NewEngine(invoker, nil)
	result, err := engine.Execute(context.Background(), "corr-3", plan, Config{ContinueOnError: true})
	require.NoError(t, err)
	require.Equal(t, Completed, result.Status)
	require.False(t, result.Steps["A"].Success)
	require.True(t, result.Steps["B"].Success)
}

func TestEngineAbortsWithoutContinueOnError(t *testing.T) {
	steps := []Step{{ID: "A", ComponentID: "always-fails"}}
	plan, err := PlanSteps(steps)
	require.NoError(t, err)

	invoker := newFakeInvoker()
	invoker.failUntil["always-fails"] = 999

	engine := NewEngine(invoker, nil)
	result, err := engine.Execute(context.Background(), "corr-4", plan, Config{})
	require.Error(t, err)
	require.Equal(t, Failed, result.Status)
}
