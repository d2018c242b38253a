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
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
	"github.com/kadirpekel/substrate/pkg/eventbus"
	"github.com/kadirpekel/substrate/pkg/isolation"
	"github.com/kadirpekel/substrate/pkg/logger"
	"github.com/kadirpekel/substrate/pkg/state"
)

var tracer = otel.Tracer("github.com/kadirpekel/substrate/pkg/migration")

// Event types published onto the bus around a migration run.
const (
	EventMigrationStarted   = "migration.started"
	EventMigrationCompleted = "migration.completed"
	EventMigrationFailed    = "migration.failed"
)

// Config controls one migration run, per §4.4.
type Config struct {
	BatchSize       int
	Timeout         time.Duration
	DryRun          bool
	ValidationLevel ValidationLevel
	RollbackOnError bool
}

// HookFunc runs before or after the main transform pass.
type HookFunc func(ctx context.Context) error

// Result summarizes a completed migration run.
type Result struct {
	MigrationID   string
	FromVersion   string
	ToVersion     string
	ItemsMigrated int
	Issues        []Issue
	RolledBack    bool
}

type activeMigration struct {
	id        string
	cancelled bool
}

// Engine runs migration plans over a state.Manager's entries.
type Engine struct {
	planner  *Planner
	registry *Registry
	states   *state.Manager
	bus      *eventbus.Bus
	log      *slog.Logger

	mu     sync.Mutex
	active map[string]*activeMigration
}

// NewEngine constructs an Engine. bus and log may be nil.
func NewEngine(planner *Planner, registry *Registry, states *state.Manager, bus *eventbus.Bus, log *slog.Logger) *Engine {
	return &Engine{
		planner:  planner,
		registry: registry,
		states:   states,
		bus:      bus,
		log:      logger.Component(log, "migration"),
		active:   map[string]*activeMigration{},
	}
}

func (e *Engine) publish(ctx context.Context, eventType, correlationID string, payload map[string]any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, eventbus.NewEvent(eventType, correlationID, payload))
}

// Cancel marks migrationID as cancelled, preventing its next batch from
// starting; the migration stays in the active set until Migrate returns.
// The batch already in progress still completes.
func (e *Engine) Cancel(migrationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	am, ok := e.active[migrationID]
	if !ok {
		return false
	}
	am.cancelled = true
	return true
}

// ActiveMigrations lists the migration_ids currently tracked.
func (e *Engine) ActiveMigrations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

// Migrate runs the migration plan from `from` to `to` over every state
// entry in (tenant, scope), per the plan/pre-hooks/apply/post-hooks
// phases of §4.4.
func (e *Engine) Migrate(ctx context.Context, tenant string, scope isolation.Scope, from, to string, cfg Config, pre, post []HookFunc) (Result, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	migrationID := uuid.NewString()
	result := Result{MigrationID: migrationID, FromVersion: from, ToVersion: to}

	ctx, span := tracer.Start(ctx, "migration.Migrate",
		trace.WithAttributes(
			attribute.String("migration.id", migrationID),
			attribute.String("migration.from", from),
			attribute.String("migration.to", to),
			attribute.String("migration.tenant", tenant),
			attribute.String("migration.scope", scope.String()),
		),
	)
	defer span.End()

	plan, err := e.planner.Plan(from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan migration")
		return result, err
	}
	span.SetAttributes(attribute.Int("migration.steps", len(plan)))

	e.mu.Lock()
	am := &activeMigration{id: migrationID}
	e.active[migrationID] = am
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.active, migrationID)
		e.mu.Unlock()
	}()

	e.publish(ctx, EventMigrationStarted, migrationID, map[string]any{
		"migration_id": migrationID, "from": from, "to": to, "steps": len(plan),
	})

	var snapshot *state.Snapshot
	if cfg.RollbackOnError {
		snapshot = e.states.SnapshotScope(tenant, scope)
	}
	var migratedKeys []string

	failWith := func(cause error) (Result, error) {
		span.RecordError(cause)
		span.SetStatus(codes.Error, "migration failed")
		return e.fail(ctx, migrationID, result, cfg, snapshot, plan, tenant, scope, migratedKeys, cause)
	}

	for _, hook := range pre {
		if err := hook(ctx); err != nil {
			return failWith(substrateerrors.Wrap(substrateerrors.MigrationError, "migration", "pre-hook", "pre-migration hook failed", err))
		}
	}

	targetSchema, ok := e.registry.Get(to)
	if !ok {
		return failWith(errSchemaNotFound(to))
	}
	targetMajor, err := majorVersion(to)
	if err != nil {
		return failWith(err)
	}

	validator := NewValidator(cfg.ValidationLevel)
	records := e.states.AllInScope(tenant, scope)

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(records)
		if batchSize == 0 {
			batchSize = 1
		}
	}

	for start := 0; start < len(records); start += batchSize {
		e.mu.Lock()
		cancelled := am.cancelled
		e.mu.Unlock()
		if cancelled {
			break
		}
		if err := ctx.Err(); err != nil {
			return failWith(substrateerrors.Wrap(substrateerrors.Timeout, "migration", "Migrate", "migration deadline exceeded", err))
		}

		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		for _, rec := range batch {
			var data map[string]any
			if err := json.Unmarshal(rec.Value, &data); err != nil {
				return failWith(substrateerrors.Wrap(substrateerrors.MigrationError, "migration", "Migrate", "unmarshal state value", err))
			}

			for _, step := range plan {
				if err := step.Transform.Apply(data); err != nil {
					return failWith(err)
				}
			}

			issues := validator.Validate(data, targetSchema)
			result.Issues = append(result.Issues, issues...)
			if validator.HasFatal(issues) {
				return failWith(substrateerrors.New(substrateerrors.MigrationError, "migration", "Migrate", "validation failed"))
			}

			if !cfg.DryRun {
				raw, err := json.Marshal(data)
				if err != nil {
					return failWith(substrateerrors.Wrap(substrateerrors.MigrationError, "migration", "Migrate", "marshal migrated value", err))
				}
				if err := e.states.Put(tenant, scope, rec.Key, json.RawMessage(raw), targetMajor); err != nil {
					return failWith(err)
				}
				migratedKeys = append(migratedKeys, rec.Key)
			}
			result.ItemsMigrated++
		}
	}

	for _, hook := range post {
		if err := hook(ctx); err != nil {
			return failWith(substrateerrors.Wrap(substrateerrors.MigrationError, "migration", "post-hook", "post-migration hook failed", err))
		}
	}

	e.publish(ctx, EventMigrationCompleted, migrationID, map[string]any{
		"migration_id": migrationID, "items_migrated": float64(result.ItemsMigrated),
	})
	span.SetAttributes(attribute.Int("migration.items_migrated", result.ItemsMigrated))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// fail publishes MigrationFailed and, when rollback_on_error is set,
// restores the pre-migration snapshot — the primary rollback strategy of
// §4.4. SnapshotScope returns nil for an empty scope (nothing to
// restore via snapshot); when that happens, fail instead reverse-applies
// the plan's transforms to whichever records this run already wrote,
// which only succeeds when every step in the plan has a well-defined
// Inverse (currently Rename only — see Transform.Inverse). If even that
// is unavailable, the already-written records are left migrated and the
// failure is logged as unrecovered.
func (e *Engine) fail(ctx context.Context, migrationID string, result Result, cfg Config, snapshot *state.Snapshot, plan []MigrationStep, tenant string, scope isolation.Scope, migratedKeys []string, cause error) (Result, error) {
	e.publish(ctx, EventMigrationFailed, migrationID, map[string]any{
		"migration_id": migrationID, "error": cause.Error(),
	})
	e.log.Error("migration failed", slog.String("migration_id", migrationID), slog.Any("err", cause))

	if cfg.RollbackOnError {
		switch {
		case snapshot != nil:
			e.states.RestoreScope(snapshot)
			result.RolledBack = true
		case len(migratedKeys) == 0:
			result.RolledBack = true
		default:
			if e.reverseApply(plan, tenant, scope, migratedKeys) {
				result.RolledBack = true
			} else {
				e.log.Warn("rollback requested with no snapshot and no reversible transform; already-migrated records were left as migrated",
					slog.String("migration_id", migrationID), slog.Int("unrolled_records", len(migratedKeys)))
			}
		}
	}
	return result, cause
}

// reverseApply undoes plan's transforms for the given keys by applying
// the plan's combined Inverse, when one exists, writing each record back
// under its pre-migration schema version. It reports whether every
// record was successfully reversed.
func (e *Engine) reverseApply(plan []MigrationStep, tenant string, scope isolation.Scope, keys []string) bool {
	if len(plan) == 0 {
		return true
	}
	var flat []Transform
	for _, step := range plan {
		flat = append(flat, step.Transform.Transforms...)
	}
	inverse, ok := StateTransformation{Transforms: flat}.Inverse()
	if !ok {
		return false
	}

	originalMajor, err := majorVersion(plan[0].FromVersion)
	if err != nil {
		return false
	}

	for _, k := range keys {
		rec, ok := e.states.Get(tenant, scope, k)
		if !ok {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal(rec.Value, &data); err != nil {
			return false
		}
		if err := inverse.Apply(data); err != nil {
			return false
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return false
		}
		if err := e.states.Put(tenant, scope, k, json.RawMessage(raw), originalMajor); err != nil {
			return false
		}
	}
	return true
}

func majorVersion(semver string) (int, error) {
	parts := strings.SplitN(semver, ".", 2)
	v, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, substrateerrors.Wrap(substrateerrors.Validation, "migration", "majorVersion", "parse semver major component", err)
	}
	return v, nil
}
