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

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/kadirpekel/substrate/pkg/eventbus"
	"github.com/kadirpekel/substrate/pkg/hooks"
	"github.com/kadirpekel/substrate/pkg/isolation"
	"github.com/kadirpekel/substrate/pkg/logger"
	"github.com/kadirpekel/substrate/pkg/memory"
	"github.com/kadirpekel/substrate/pkg/ratelimit"
	"github.com/kadirpekel/substrate/pkg/state"
	"github.com/kadirpekel/substrate/pkg/storage"
	"github.com/kadirpekel/substrate/pkg/tool"
)

// ServeCmd brings up the long-running pieces of the runtime: the
// storage backend, the scoped state manager, the tool manager seeded
// with the built-in state and artifact tools, the hook executor firing
// SystemStartup/SystemShutdown, and the episodic-memory consolidation
// daemon. No provider registry is constructed here. It blocks until SIGINT/SIGTERM, then drains the
// daemon per §4.10's shutdown contract.
type ServeCmd struct {
	RateLimitPerMinute int           `name:"rate-limit-per-minute" help:"Sliding-window budget applied to every tool invocation; 0 disables it." default:"0"`
	HookCleanupCron    string        `name:"hook-cleanup-cron" help:"Cron schedule (5-field) on which the hook execution store is trimmed." default:"0 * * * *"`
	HookStoreMaxBytes  int64         `name:"hook-store-max-bytes" help:"Compressed-bytes ceiling the hook execution store is trimmed down to; 0 disables the size bound." default:"67108864"`
	HookStoreMaxAge    time.Duration `name:"hook-store-max-age" help:"Executions older than this are evicted from the hook execution store regardless of size." default:"168h"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadRuntimeConfig(cli.ConfigRoot, cli.Layers)
	if err != nil {
		return err
	}

	log := logger.Component(nil, "serve")

	backend, closeBackend, err := buildBackend(cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer closeBackend()

	registry := hooks.NewRegistry()
	metrics := hooks.NewMetricsCollector(prometheus.NewRegistry())
	executor := hooks.NewExecutor(registry, metrics)

	hookStore, err := hooks.NewStore()
	if err != nil {
		return fmt.Errorf("building hook execution store: %w", err)
	}
	executor.SetPersistence(hookStore)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(c.HookCleanupCron, func() {
		evicted := hookStore.Cleanup(c.HookStoreMaxBytes, c.HookStoreMaxAge)
		if evicted > 0 {
			log.Info("hook execution store trimmed", "evicted", evicted)
		}
	}); err != nil {
		return fmt.Errorf("scheduling hook store cleanup: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	bus := eventbus.NewBus(eventbus.NewCorrelationTracker(), log)
	unsubscribe := bus.Subscribe("*", func(ctx context.Context, evt eventbus.Event) {
		log.Debug("event", "type", evt.Type, "source", evt.Source)
	})
	defer unsubscribe()

	states := state.NewManager()

	var limiter *ratelimit.Limiter
	if c.RateLimitPerMinute > 0 {
		limiter = ratelimit.New(ratelimit.Config{PerMinute: c.RateLimitPerMinute}, ratelimit.NewInMemory())
	}

	toolMgr := tool.NewManager(tool.CacheConfig{CacheAvailability: true, CacheMetadata: true}, true)
	registerStateTools(toolMgr, states, cli.Tenant, limiter)
	registerArtifactTools(toolMgr, backend, cli.Tenant, limiter)

	if len(cfg.Backends) == 0 {
		log.Info("no provider backends configured; an embedding application registers factories on provider.Registry before agents can run")
	}

	episodic := memory.NewInMemory()
	daemon := memory.NewDaemon(episodic, noopConsolidationEngine{}, memory.DefaultDaemonConfig(), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	startupOutcome, err := executor.Dispatch(ctx, &hooks.Context{
		Point:       hooks.SystemStartup,
		ComponentID: "substrate",
		Data: map[string]any{
			"tenant":  cli.Tenant,
			"backend": backendName(cfg.Storage.DSN),
		},
	})
	if err != nil {
		return fmt.Errorf("system startup hooks: %w", err)
	}
	bus.Publish(ctx, eventbus.NewEvent("runtime.started", "", map[string]any{
		"tenant": cli.Tenant, "hooks_executed": len(startupOutcome.Executed),
	}))

	daemon.Start(ctx)
	log.Info("runtime started",
		"tenant", cli.Tenant,
		"backend", backendName(cfg.Storage.DSN),
		"artifact_inline_limit", cfg.Storage.ArtifactInlineLimit,
		"tools_registered", len(toolMgr.ListAvailableTools(ctx)),
	)

	<-ctx.Done()

	if _, err := executor.Dispatch(context.Background(), &hooks.Context{
		Point:       hooks.SystemShutdown,
		ComponentID: "substrate",
	}); err != nil {
		log.Warn("system shutdown hooks failed", "error", err)
	}

	log.Info("draining consolidation daemon")
	daemon.Stop()
	return nil
}

// registerStateTools exposes the shared state.Manager as two built-in
// tools so a configured agent can read and write Global-scoped state
// without reaching around the isolation boundary. Each invocation is
// throttled by limiter when one is configured.
func registerStateTools(mgr *tool.Manager, states *state.Manager, tenant string, limiter *ratelimit.Limiter) {
	mgr.Register(tool.Info{
		Name:        "state.put",
		Description: "store a value under a key in global scope",
		Categories:  []string{"state"},
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			if err := checkLimit(ctx, limiter, "state.put"); err != nil {
				return "", err
			}
			key, _ := params["key"].(string)
			if err := states.Put(tenant, isolation.Global, key, params["value"], 1); err != nil {
				return "", err
			}
			return "ok", nil
		},
	})

	mgr.Register(tool.Info{
		Name:        "state.get",
		Description: "retrieve a value stored under a key in global scope",
		Categories:  []string{"state"},
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			if err := checkLimit(ctx, limiter, "state.get"); err != nil {
				return "", err
			}
			key, _ := params["key"].(string)
			rec, ok := states.Get(tenant, isolation.Global, key)
			if !ok {
				return "", fmt.Errorf("state.get: no value stored for key %q", key)
			}
			return string(rec.Value), nil
		},
	})
}

// registerArtifactTools exposes the content-addressed artifact store as
// a save/load tool pair. Content hashing (and therefore dedup) is the
// caller's responsibility elsewhere in the runtime; here the hash is
// derived from the content itself so two identical payloads for the
// same tenant always land on the same content row.
func registerArtifactTools(mgr *tool.Manager, backend storage.Backend, tenant string, limiter *ratelimit.Limiter) {
	mgr.Register(tool.Info{
		Name:        "artifact.save",
		Description: "store content under a named artifact id, deduplicated by content hash",
		Categories:  []string{"artifact"},
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			if err := checkLimit(ctx, limiter, "artifact.save"); err != nil {
				return "", err
			}
			artifactID, _ := params["artifact_id"].(string)
			sessionID, _ := params["session_id"].(string)
			content, _ := params["content"].(string)

			hash := sha256.Sum256([]byte(content))
			contentHash := hex.EncodeToString(hash[:])

			if _, err := backend.StoreArtifactContent(ctx, tenant, contentHash, []byte(content), false); err != nil {
				return "", err
			}
			err := backend.StoreArtifactMetadata(ctx, storage.ArtifactMetadata{
				ArtifactID:  artifactID,
				TenantID:    tenant,
				SessionID:   sessionID,
				ContentHash: contentHash,
				Size:        int64(len(content)),
				CreatedAt:   time.Now(),
			})
			if err != nil {
				return "", err
			}
			return contentHash, nil
		},
	})

	mgr.Register(tool.Info{
		Name:        "artifact.load",
		Description: "retrieve an artifact's content by its artifact id",
		Categories:  []string{"artifact"},
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			if err := checkLimit(ctx, limiter, "artifact.load"); err != nil {
				return "", err
			}
			artifactID, _ := params["artifact_id"].(string)

			meta, ok, err := backend.RetrieveArtifactMetadata(ctx, tenant, artifactID)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", fmt.Errorf("artifact.load: no such artifact %q", artifactID)
			}
			content, ok, err := backend.RetrieveArtifactContent(ctx, tenant, meta.ContentHash)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", fmt.Errorf("artifact.load: content missing for artifact %q", artifactID)
			}
			return string(content), nil
		},
	})
}

func checkLimit(ctx context.Context, limiter *ratelimit.Limiter, key string) error {
	if limiter == nil {
		return nil
	}
	return limiter.Allow(ctx, key, time.Now())
}

// buildBackend constructs the Postgres-backed storage.Backend if dsn is
// set, otherwise an in-process storage.MemoryBackend. The returned close
// func always releases any pool it created.
func buildBackend(dsn string) (storage.Backend, func(), error) {
	if dsn == "" {
		return storage.NewMemoryBackend(), func() {}, nil
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to storage backend: %w", err)
	}

	backend := storage.NewPostgresBackend(pool)
	if err := backend.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("running storage migrations: %w", err)
	}

	return backend, pool.Close, nil
}

func backendName(dsn string) string {
	if dsn == "" {
		return "memory"
	}
	return "postgres"
}

// noopConsolidationEngine is the default ConsolidationEngine wired when
// no LLM-backed knowledge graph is configured: it reports ready and
// consolidates nothing, so the daemon's scheduling loop still runs and
// exercises its circuit breaker and shutdown drain end to end.
type noopConsolidationEngine struct{}

func (noopConsolidationEngine) Ready(ctx context.Context) bool { return true }

func (noopConsolidationEngine) Consolidate(ctx context.Context, session string, entries []memory.Entry) error {
	return nil
}
