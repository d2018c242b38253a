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
	"regexp"
)

// ErrorStrategy controls what a composition step does on failure, per
// §4.7.
type ErrorStrategy struct {
	Kind       ErrorStrategyKind
	RetryCount int // only meaningful for StrategyRetry
}

type ErrorStrategyKind string

const (
	StrategyFail     ErrorStrategyKind = "fail"
	StrategyContinue ErrorStrategyKind = "continue"
	StrategyRetry    ErrorStrategyKind = "retry"
	StrategySkip     ErrorStrategyKind = "skip"
)

// CompositionStep invokes a single named tool with parameters that may
// reference the previous step's output via "${previous.output}".
type CompositionStep struct {
	ToolName string
	Params   map[string]any
	OnError  ErrorStrategy
}

// Composition is a linear tool pipeline — a degenerate workflow where
// every step invokes a tool and steps run strictly in order.
type Composition struct {
	Steps []CompositionStep
}

// ToolInvoker runs a single named tool and returns its textual output.
type ToolInvoker interface {
	InvokeTool(ctx context.Context, name string, params map[string]any) (string, error)
}

// CompositionStepResult is one step's outcome within a composition run.
type CompositionStepResult struct {
	ToolName string
	Output   string
	Error    string
	Skipped  bool
}

var previousOutputToken = regexp.MustCompile(`\$\{previous\.output\}`)

// substitute resolves the "${previous.output}" token in every string
// parameter value against prevOutput, at parameter-preparation time, per
// §4.7.
func substitute(params map[string]any, prevOutput string) map[string]any {
	if len(params) == 0 {
		return params
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			out[k] = previousOutputToken.ReplaceAllString(s, prevOutput)
			continue
		}
		out[k] = v
	}
	return out
}

// ComposeTools runs composition against invoker, applying each step's
// error strategy in turn and threading the previous step's textual
// output into the next step's substitution.
func ComposeTools(ctx context.Context, invoker ToolInvoker, composition Composition) ([]CompositionStepResult, error) {
	results := make([]CompositionStepResult, 0, len(composition.Steps))
	var previousOutput string

	for _, step := range composition.Steps {
		params := substitute(step.Params, previousOutput)

		maxAttempts := 1
		if step.OnError.Kind == StrategyRetry {
			maxAttempts = step.OnError.RetryCount + 1
		}

		var (
			output string
			err    error
		)
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			output, err = invoker.InvokeTool(ctx, step.ToolName, params)
			if err == nil {
				break
			}
		}

		if err == nil {
			results = append(results, CompositionStepResult{ToolName: step.ToolName, Output: output})
			previousOutput = output
			continue
		}

		switch step.OnError.Kind {
		case StrategyContinue, StrategyRetry:
			results = append(results, CompositionStepResult{ToolName: step.ToolName, Error: err.Error()})
		case StrategySkip:
			results = append(results, CompositionStepResult{ToolName: step.ToolName, Skipped: true, Error: err.Error()})
		case StrategyFail, "":
			return results, fmt.Errorf("composition step %q failed: %w", step.ToolName, err)
		}
	}

	return results, nil
}
