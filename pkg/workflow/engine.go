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
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
	"github.com/kadirpekel/substrate/pkg/hooks"
)

var tracer = otel.Tracer("github.com/kadirpekel/substrate/pkg/workflow")

// Invoker runs one step's target component. Components are tools,
// agents, or sub-workflows; their concrete business logic is out of
// scope per §1 — the engine only depends on this narrow contract.
type Invoker interface {
	Invoke(ctx context.Context, componentID string, input map[string]any) (map[string]any, error)
}

// Result is the outcome of one workflow run.
type Result struct {
	Status Status
	Steps  map[string]StepResult
}

// Engine executes a Plan against an Invoker, firing hooks at every
// boundary named in §4.7.
type Engine struct {
	invoker  Invoker
	executor *hooks.Executor
}

// NewEngine constructs an Engine. executor may be nil to disable hook
// firing entirely (useful in unit tests of pure scheduling behavior).
func NewEngine(invoker Invoker, executor *hooks.Executor) *Engine {
	return &Engine{invoker: invoker, executor: executor}
}

func (e *Engine) fire(ctx context.Context, point hooks.Point, correlationID string, data map[string]any) (map[string]any, error) {
	if e.executor == nil {
		return data, nil
	}
	hctx := &hooks.Context{Point: point, CorrelationID: correlationID, Data: data}
	outcome, err := e.executor.Dispatch(ctx, hctx)
	if err != nil {
		return nil, err
	}
	if outcome.Result.Variant == hooks.VariantCancel {
		return nil, substrateerrors.New(substrateerrors.Workflow, "workflow", "fire", "hook cancelled workflow at "+point.String())
	}
	return outcome.Data, nil
}

// Execute runs plan to completion (or first unrecoverable failure),
// respecting cfg.MaxParallel within each wave and cfg.ContinueOnError
// across step failures.
func (e *Engine) Execute(ctx context.Context, correlationID string, plan Plan, cfg Config) (Result, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "workflow.Execute",
		trace.WithAttributes(
			attribute.String("workflow.correlation_id", correlationID),
			attribute.Int("workflow.waves", len(plan.Waves)),
			attribute.Int("workflow.steps", countSteps(plan)),
		),
	)
	defer span.End()

	result := Result{Status: Running, Steps: map[string]StepResult{}}

	if _, err := e.fire(ctx, hooks.BeforeWorkflowStart, correlationID, map[string]any{"steps": countSteps(plan)}); err != nil {
		result.Status = Failed
		span.RecordError(err)
		span.SetStatus(codes.Error, "BeforeWorkflowStart hook failed")
		return result, err
	}

	var mu sync.Mutex
	var abort error

	for _, wave := range plan.Waves {
		if abort != nil {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		if cfg.MaxParallel > 0 {
			g.SetLimit(cfg.MaxParallel)
		}

		for _, step := range wave {
			step := step
			g.Go(func() error {
				sr := e.runStep(gctx, correlationID, step)

				mu.Lock()
				result.Steps[step.ID] = sr
				mu.Unlock()

				if !sr.Success && !cfg.ContinueOnError {
					return substrateerrors.New(substrateerrors.Workflow, "workflow", "Execute",
						"step "+step.ID+" failed: "+sr.Error)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			mu.Lock()
			abort = err
			mu.Unlock()
		}
	}

	if abort != nil {
		result.Status = Failed
		span.RecordError(abort)
		span.SetStatus(codes.Error, "workflow step failed")
		if _, err := e.fire(ctx, hooks.WorkflowError, correlationID, map[string]any{"error": abort.Error()}); err != nil {
			return result, err
		}
		return result, abort
	}

	result.Status = Completed
	if _, err := e.fire(ctx, hooks.AfterWorkflowComplete, correlationID, map[string]any{"status": string(result.Status)}); err != nil {
		result.Status = Failed
		span.RecordError(err)
		span.SetStatus(codes.Error, "AfterWorkflowComplete hook failed")
		return result, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (e *Engine) runStep(ctx context.Context, correlationID string, step Step) StepResult {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "workflow.runStep",
		trace.WithAttributes(
			attribute.String("workflow.correlation_id", correlationID),
			attribute.String("workflow.step_id", step.ID),
			attribute.String("workflow.component_id", step.ComponentID),
		),
	)
	defer span.End()

	data, err := e.fire(ctx, hooks.BeforeStepExecution, correlationID, map[string]any{"step_id": step.ID, "input": step.Input})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "BeforeStepExecution hook failed")
		return StepResult{StepID: step.ID, Success: false, Error: err.Error(), Duration: time.Since(start)}
	}
	input := step.Input
	if data != nil {
		if override, ok := data["input"].(map[string]any); ok {
			input = override
		}
	}

	stepCtx := ctx
	var cancel context.CancelFunc
	if step.Timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	policy := RetryPolicy{MaxAttempts: 1}
	if step.RetryPolicy != nil {
		policy = *step.RetryPolicy
	}

	var (
		output  map[string]any
		lastErr error
	)
	attempts := 0
	maxAttempts := maxInt(policy.MaxAttempts, 1)
retryLoop:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		output, lastErr = e.invoker.Invoke(stepCtx, step.ComponentID, input)
		if lastErr == nil {
			break
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(policy.Delay(attempt)):
			case <-stepCtx.Done():
				lastErr = stepCtx.Err()
				break retryLoop
			}
		}
	}

	sr := StepResult{StepID: step.ID, Duration: time.Since(start), RetryCount: attempts - 1}
	if lastErr != nil {
		sr.Success = false
		sr.Error = lastErr.Error()
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, "step invocation failed")
	} else {
		sr.Success = true
		sr.Output = output
	}

	afterPayload := map[string]any{"step_id": step.ID, "success": sr.Success}
	if sr.Error != "" {
		afterPayload["error"] = sr.Error
	}
	if _, err := e.fire(ctx, hooks.AfterStepExecution, correlationID, afterPayload); err != nil {
		sr.Success = false
		sr.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "AfterStepExecution hook failed")
	}
	span.SetAttributes(attribute.Int("workflow.retry_count", sr.RetryCount))
	if sr.Success && lastErr == nil {
		span.SetStatus(codes.Ok, "")
	}
	return sr
}

func countSteps(plan Plan) int {
	n := 0
	for _, wave := range plan.Waves {
		n += len(wave)
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
