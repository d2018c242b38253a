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
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/kadirpekel/substrate/pkg/hooks")

// Executor dispatches hooks registered at a point in priority order,
// short-circuiting per the result taxonomy: Cancel aborts the iteration;
// Modified/Replace feed forward into the next hook's input; Redirect,
// Retry, Fork, and Cache bubble straight up to the caller.
type Executor struct {
	registry    *Registry
	metrics     *MetricsCollector
	persistence *Store
}

// NewExecutor constructs an Executor over registry, recording histogram
// observations into metrics (which may be nil to disable collection).
func NewExecutor(registry *Registry, metrics *MetricsCollector) *Executor {
	return &Executor{registry: registry, metrics: metrics}
}

// SetPersistence attaches a Store that Dispatch records every hook firing
// into, enabling later replay/inspection via the store's ByCorrelation and
// Get lookups. A nil store (the default) disables recording entirely.
func (e *Executor) SetPersistence(store *Store) {
	e.persistence = store
}

// Outcome is the result of a full dispatch at one point.
type Outcome struct {
	Result   Result
	Data     map[string]any // final data after any Modified feed-forward
	Executed []string       // names of hooks that actually ran
}

// Dispatch fires every hook registered at hctx.Point, in priority order.
func (e *Executor) Dispatch(ctx context.Context, hctx *Context) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "hooks.Dispatch",
		trace.WithAttributes(
			attribute.String("hooks.point", hctx.Point.String()),
			attribute.String("hooks.component_id", hctx.ComponentID),
			attribute.String("hooks.correlation_id", hctx.CorrelationID),
		),
	)
	defer span.End()

	data := hctx.Data
	outcome := Outcome{Result: Continue(), Data: data}

	for _, h := range e.registry.HooksFor(hctx.Point) {
		if !h.ShouldExecute(hctx) {
			continue
		}

		callCtx := *hctx
		callCtx.Data = data

		if mh, ok := h.(MetricHook); ok {
			mh.RecordPreExecution(&callCtx)
		}
		if e.metrics != nil {
			e.metrics.RecordPreExecution(hctx.Point)
		}

		start := time.Now()
		res, err := h.Execute(ctx, &callCtx)
		duration := time.Since(start)

		if mh, ok := h.(MetricHook); ok {
			mh.RecordPostExecution(&callCtx, res, duration)
		}
		if e.metrics != nil {
			e.metrics.RecordPostExecution(hctx.Point, res, duration, err)
		}

		name := h.Metadata().Name
		e.record(callCtx, name, res, duration)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "hook execution failed")
			return outcome, err
		}

		outcome.Executed = append(outcome.Executed, name)

		switch res.Variant {
		case VariantContinue, VariantSkipped:
			continue
		case VariantModified, VariantReplace:
			data = res.Data
			outcome.Data = data
			continue
		case VariantCancel, VariantRedirect, VariantRetry, VariantFork, VariantCache:
			outcome.Result = res
			outcome.Data = data
			span.SetAttributes(attribute.String("hooks.outcome_variant", string(res.Variant)))
			return outcome, nil
		}
	}

	outcome.Result = Continue()
	outcome.Data = data
	return outcome, nil
}

// record persists one hook firing into the attached Store, when set. A
// failure here is logged nowhere and never surfaced: persistence is a
// best-effort replay aid, not part of dispatch's correctness contract.
func (e *Executor) record(hctx Context, hookName string, res Result, duration time.Duration) {
	if e.persistence == nil {
		return
	}
	_ = e.persistence.Record(Execution{
		ExecutionID:   uuid.NewString(),
		CorrelationID: hctx.CorrelationID,
		HookName:      hookName,
		Point:         hctx.Point,
		Context:       hctx,
		Result:        res,
		Duration:      duration,
		RecordedAt:    time.Now(),
	})
}
