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

package hooks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// orderingHook records its own name into a shared trace and optionally
// returns a fixed result.
type orderingHook struct {
	name   string
	result Result
	trace  *[]string
}

func (h *orderingHook) Execute(ctx context.Context, hctx *Context) (Result, error) {
	*h.trace = append(*h.trace, h.name)
	return h.result, nil
}

func (h *orderingHook) Metadata() Metadata        { return Metadata{Name: h.name} }
func (h *orderingHook) ShouldExecute(*Context) bool { return true }

// Testable property #9: hooks fire strictly in ascending priority order,
// with registration order as the tiebreaker, and a Cancel short-circuits
// any hooks still pending at that point.
func TestDispatchOrdersByPriorityThenRegistration(t *testing.T) {
	reg := NewRegistry()
	var trace []string

	reg.Register(BeforeToolExecution, &orderingHook{name: "b-second", result: Continue(), trace: &trace}, 10, "go", nil)
	reg.Register(BeforeToolExecution, &orderingHook{name: "a-first", result: Continue(), trace: &trace}, 5, "go", nil)
	reg.Register(BeforeToolExecution, &orderingHook{name: "c-tiebreak-1", result: Continue(), trace: &trace}, 10, "go", nil)

	exec := NewExecutor(reg, nil)
	outcome, err := exec.Dispatch(context.Background(), &Context{Point: BeforeToolExecution, Data: map[string]any{}})

	require.NoError(t, err)
	require.Equal(t, []string{"a-first", "b-second", "c-tiebreak-1"}, trace)
	require.Equal(t, VariantContinue, outcome.Result.Variant)
}

func TestDispatchCancelShortCircuits(t *testing.T) {
	reg := NewRegistry()
	var trace []string

	reg.Register(BeforeToolExecution, &orderingHook{name: "allow", result: Continue(), trace: &trace}, 1, "go", nil)
	reg.Register(BeforeToolExecution, &orderingHook{name: "deny", result: Cancel("blocked by policy"), trace: &trace}, 2, "go", nil)
	reg.Register(BeforeToolExecution, &orderingHook{name: "never-runs", result: Continue(), trace: &trace}, 3, "go", nil)

	exec := NewExecutor(reg, nil)
	outcome, err := exec.Dispatch(context.Background(), &Context{Point: BeforeToolExecution, Data: map[string]any{}})

	require.NoError(t, err)
	require.Equal(t, []string{"allow", "deny"}, trace)
	require.Equal(t, VariantCancel, outcome.Result.Variant)
	require.Equal(t, "blocked by policy", outcome.Result.Reason)
}

func TestDispatchModifiedFeedsForward(t *testing.T) {
	reg := NewRegistry()
	reg.Register(BeforeToolExecution, &orderingHook{
		name: "rewrite", result: Modified(map[string]any{"rewritten": true}), trace: &[]string{},
	}, 1, "go", nil)

	capture := &captureHook{}
	reg.Register(BeforeToolExecution, capture, 2, "go", nil)

	exec := NewExecutor(reg, nil)
	outcome, err := exec.Dispatch(context.Background(), &Context{Point: BeforeToolExecution, Data: map[string]any{"rewritten": false}})

	require.NoError(t, err)
	require.Equal(t, true, capture.seen["rewritten"])
	require.Equal(t, true, outcome.Data["rewritten"])
}

type captureHook struct {
	seen map[string]any
}

func (h *captureHook) Execute(ctx context.Context, hctx *Context) (Result, error) {
	h.seen = hctx.Data
	return Continue(), nil
}
func (h *captureHook) Metadata() Metadata          { return Metadata{Name: "capture"} }
func (h *captureHook) ShouldExecute(*Context) bool { return true }

func TestMetricsCollectorWiredIntoExecutor(t *testing.T) {
	reg := NewRegistry()
	var trace []string
	reg.Register(BeforeToolExecution, &orderingHook{name: "only", result: Continue(), trace: &trace}, 1, "go", nil)

	mc := NewMetricsCollector(nil)
	exec := NewExecutor(reg, mc)
	_, err := exec.Dispatch(context.Background(), &Context{Point: BeforeToolExecution, Data: map[string]any{}})
	require.NoError(t, err)

	count, success, errCount, hist := mc.Snapshot(BeforeToolExecution)
	require.Equal(t, uint64(1), count)
	require.Equal(t, uint64(1), success)
	require.Zero(t, errCount)
	require.Equal(t, uint64(1), hist.Count)
	require.True(t, hist.Mean >= 0 && hist.Mean < float64(time.Second/time.Millisecond))
}
