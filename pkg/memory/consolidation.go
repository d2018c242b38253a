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

package memory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kadirpekel/substrate/pkg/logger"
)

// ConsolidationEngine folds a batch of unprocessed entries for one
// session into durable knowledge. Its concrete implementation (an LLM
// call plus a graph-store write) is outside this package's scope per
// §1's "concrete... graph backend's query planner" non-goal; the daemon
// only depends on this narrow interface.
type ConsolidationEngine interface {
	Ready(ctx context.Context) bool
	Consolidate(ctx context.Context, session string, entries []Entry) error
}

// SchedulePeriods controls the adaptive timer of §4.10.
type SchedulePeriods struct {
	Fast   time.Duration // queue depth > FastThreshold
	Normal time.Duration // NormalThreshold < depth <= FastThreshold
	Slow   time.Duration // depth <= NormalThreshold
}

// DefaultSchedulePeriods matches the defaults named in §4.10.
func DefaultSchedulePeriods() SchedulePeriods {
	return SchedulePeriods{
		Fast:   30 * time.Second,
		Normal: 5 * time.Minute,
		Slow:   30 * time.Minute,
	}
}

const (
	fastThreshold   = 100
	normalThreshold = 10

	consecutiveFailureTripLevel = 10
	circuitBreakerCooldown      = 5 * time.Minute
	shutdownDrainTimeout        = 30 * time.Second
)

// DaemonConfig controls one Daemon instance.
type DaemonConfig struct {
	Periods       SchedulePeriods
	BatchSize     int // sessions consolidated per tick, most recent activity first
	MaxConcurrent int // default 1
}

// DefaultDaemonConfig returns the §4.10 defaults.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		Periods:       DefaultSchedulePeriods(),
		BatchSize:     5,
		MaxConcurrent: 1,
	}
}

// Daemon is the single background consolidation task of §4.10: an
// adaptive-period timer loop that folds episodic entries into the
// knowledge graph via a ConsolidationEngine, with a circuit breaker on
// repeated failures and a two-phase, drain-bounded shutdown.
type Daemon struct {
	cfg    DaemonConfig
	store  EpisodicMemory
	engine ConsolidationEngine
	log    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	inFlight   atomic.Int64
	consecFail atomic.Int64
	pausedUntl atomic.Int64 // unix nano; 0 means not paused

	sem chan struct{}

	mu      sync.Mutex
	running bool
}

// NewDaemon constructs a Daemon. log may be nil.
func NewDaemon(store EpisodicMemory, engine ConsolidationEngine, cfg DaemonConfig, log *slog.Logger) *Daemon {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	return &Daemon{
		cfg:    cfg,
		store:  store,
		engine: engine,
		log:    logger.Component(log, "consolidation"),
		sem:    make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Start launches the background loop. Safe to call once; a second call
// is a no-op.
func (d *Daemon) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.run(runCtx)
	d.log.Info("consolidation daemon started")
}

// Stop signals the loop to exit and waits up to shutdownDrainTimeout for
// in-flight consolidations to finish, per §4.10's two-phase shutdown.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	done := d.done
	d.mu.Unlock()

	cancel()
	<-done

	deadline := time.Now().Add(shutdownDrainTimeout)
	for d.inFlight.Load() > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if remaining := d.inFlight.Load(); remaining > 0 {
		d.log.Warn("shutdown drain deadline exceeded", slog.Int64("in_flight", remaining))
	}
	d.log.Info("consolidation daemon stopped")
}

func (d *Daemon) run(ctx context.Context) {
	defer close(d.done)

	timer := time.NewTimer(d.nextPeriod(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.tick(ctx)
			timer.Reset(d.nextPeriod(ctx))
		}
	}
}

func (d *Daemon) nextPeriod(ctx context.Context) time.Duration {
	depth, err := d.store.UnprocessedCount(ctx)
	if err != nil {
		d.log.Warn("failed to read queue depth; defaulting to slow period", slog.Any("err", err))
		return d.cfg.Periods.Slow
	}
	switch {
	case depth > fastThreshold:
		return d.cfg.Periods.Fast
	case depth > normalThreshold:
		return d.cfg.Periods.Normal
	default:
		return d.cfg.Periods.Slow
	}
}

// tick runs one scheduling pass: it checks the circuit breaker, then
// consolidates up to BatchSize sessions in priority order.
func (d *Daemon) tick(ctx context.Context) {
	if until := d.pausedUntl.Load(); until != 0 {
		if time.Now().UnixNano() < until {
			return
		}
		d.pausedUntl.Store(0)
	}

	if !d.engine.Ready(ctx) {
		d.log.Warn("consolidation engine not ready; skipping tick")
		return
	}

	sessions, err := d.store.UnprocessedBySessionOrdered(ctx)
	if err != nil {
		d.log.Error("failed to list sessions with unprocessed entries", slog.Any("err", err))
		return
	}

	n := d.cfg.BatchSize
	if n > len(sessions) {
		n = len(sessions)
	}

	var wg sync.WaitGroup
	for _, activity := range sessions[:n] {
		d.sem <- struct{}{}
		wg.Add(1)
		d.inFlight.Add(1)
		go func(session string) {
			defer func() {
				<-d.sem
				d.inFlight.Add(-1)
				wg.Done()
			}()
			d.consolidateSession(ctx, session)
		}(activity.Session)
	}
	wg.Wait()
}

func (d *Daemon) consolidateSession(ctx context.Context, session string) {
	entries, err := d.store.LoadUnprocessed(ctx, session)
	if err != nil {
		d.recordFailure(err, session)
		return
	}
	if len(entries) == 0 {
		return
	}

	if err := d.engine.Consolidate(ctx, session, entries); err != nil {
		d.recordFailure(err, session)
		return
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := d.store.MarkProcessed(ctx, ids); err != nil {
		d.recordFailure(err, session)
		return
	}
	d.consecFail.Store(0)
}

func (d *Daemon) recordFailure(err error, session string) {
	d.log.Error("consolidation failed", slog.String("session", session), slog.Any("err", err))
	fails := d.consecFail.Add(1)
	if fails >= consecutiveFailureTripLevel {
		d.pausedUntl.Store(time.Now().Add(circuitBreakerCooldown).UnixNano())
		d.log.Warn("consolidation circuit breaker tripped; pausing",
			slog.Int64("consecutive_failures", fails), slog.Duration("cooldown", circuitBreakerCooldown))
	}
}
