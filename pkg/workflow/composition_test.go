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
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeToolInvoker struct {
	outputs map[string]string
	fails   map[string]bool
}

func (f *fakeToolInvoker) InvokeTool(ctx context.Context, name string, params map[string]any) (string, error) {
	if f.fails[name] {
		return "", fmt.Errorf("tool %s failed", name)
	}
	if params["input"] != nil {
		return fmt.Sprintf("%s(%v)", name, params["input"]), nil
	}
	return f.outputs[name], nil
}

func TestComposeToolsSubstitutesPreviousOutput(t *testing.T) {
	invoker := &fakeToolInvoker{outputs: map[string]string{"search": "result-1"}}
	composition := Composition{Steps: []CompositionStep{
		{ToolName: "search"},
		{ToolName: "summarize", Params: map[string]any{"input": "${previous.output}"}},
	}}

	results, err := ComposeTools(context.Background(), invoker, composition)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "result-1", results[0].Output)
	require.Equal(t, "summarize(result-1)", results[1].Output)
}

func TestComposeToolsFailStrategyAborts(t *testing.T) {
	invoker := &fakeToolInvoker{fails: map[string]bool{"broken": true}}
	composition := Composition{Steps: []CompositionStep{
		{ToolName: "broken", OnError: ErrorStrategy{Kind: StrategyFail}},
		{ToolName: "never-reached"},
	}}

	results, err := ComposeTools(context.Background(), invoker, composition)
	require.Error(t, err)
	require.Empty(t, results)
}

func TestComposeToolsSkipStrategyContinues(t *testing.T) {
	invoker := &fakeToolInvoker{fails: map[string]bool{"broken": true}, outputs: map[string]string{"next": "ok"}}
	composition := Composition{Steps: []CompositionStep{
		{ToolName: "broken", OnError: ErrorStrategy{Kind: StrategySkip}},
		{ToolName: "next"},
	}}

	results, err := ComposeTools(context.Background(), invoker, composition)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.True(t, results[0].Skipped)
	require.Equal(t, "ok", results[1].Output)
}

func TestComposeToolsRetryStrategyRetriesThenSucceeds(t *testing.T) {
	calls := 0
	invoker := &countingInvoker{onCall: func() (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("not yet")
		}
		return "done", nil
	}}

	composition := Composition{Steps: []CompositionStep{
		{ToolName: "flaky", OnError: ErrorStrategy{Kind: StrategyRetry, RetryCount: 3}},
	}}

	results, err := ComposeTools(context.Background(), invoker, composition)
	require.NoError(t, err)
	require.Equal(t, "done", results[0].Output)
	require.Equal(t, 3, calls)
}

type countingInvoker struct {
	onCall func() (string, error)
}

func (c *countingInvoker) InvokeTool(ctx context.Context, name string, params map[string]any) (string, error) {
	return c.onCall()
}
