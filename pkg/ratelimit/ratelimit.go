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

// Package ratelimit implements the per-operation sliding-window limiter
// of §5: configurable per-minute and per-hour caps, backed in-process by
// default or, when a Redis client is supplied, shared across processes.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
)

// Config caps a sliding window's request counts. BurstPerSecond, when
// set, additionally smooths short bursts with a token bucket ahead of
// the window checks, the way a per-client HTTP limiter would.
type Config struct {
	PerMinute      int
	PerHour        int
	BurstPerSecond float64
	Burst          int
}

// Backend records and counts request timestamps within a trailing
// window for a given key. InMemory and Redis both implement it.
type Backend interface {
	// RecordAndCount appends now to key's timeline, evicts entries older
	// than window, and returns the count remaining in the window
	// (including the just-recorded entry).
	RecordAndCount(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
}

// Limiter enforces Config against a Backend for arbitrary keys (one key
// per rate-limited operation/tool/provider, per §5).
type Limiter struct {
	cfg     Config
	backend Backend

	burstMu sync.Mutex
	burst   map[string]*rate.Limiter
}

// New constructs a Limiter. backend may be an InMemory store or a
// Redis-backed one for cross-process sharing.
func New(cfg Config, backend Backend) *Limiter {
	return &Limiter{cfg: cfg, backend: backend, burst: map[string]*rate.Limiter{}}
}

func (l *Limiter) burstLimiterFor(key string) *rate.Limiter {
	l.burstMu.Lock()
	defer l.burstMu.Unlock()
	rl, ok := l.burst[key]
	if !ok {
		burst := l.cfg.Burst
		if burst <= 0 {
			burst = int(l.cfg.BurstPerSecond * 2)
		}
		rl = rate.NewLimiter(rate.Limit(l.cfg.BurstPerSecond), burst)
		l.burst[key] = rl
	}
	return rl
}

// Allow records one request for key at now and returns a RateLimit error
// carrying a retry-after if the burst bucket or either window's cap is
// exceeded.
func (l *Limiter) Allow(ctx context.Context, key string, now time.Time) error {
	if l.cfg.BurstPerSecond > 0 {
		if !l.burstLimiterFor(key).AllowN(now, 1) {
			return substrateerrors.New(substrateerrors.RateLimit, "ratelimit", "Allow", "burst budget exceeded").
				WithRetryAfter(time.Second)
		}
	}
	if l.cfg.PerMinute > 0 {
		count, err := l.backend.RecordAndCount(ctx, minuteKey(key), now, time.Minute)
		if err != nil {
			return err
		}
		if count > l.cfg.PerMinute {
			return substrateerrors.New(substrateerrors.RateLimit, "ratelimit", "Allow", "per-minute budget exceeded").
				WithRetryAfter(time.Minute)
		}
	}
	if l.cfg.PerHour > 0 {
		count, err := l.backend.RecordAndCount(ctx, hourKey(key), now, time.Hour)
		if err != nil {
			return err
		}
		if count > l.cfg.PerHour {
			return substrateerrors.New(substrateerrors.RateLimit, "ratelimit", "Allow", "per-hour budget exceeded").
				WithRetryAfter(time.Hour)
		}
	}
	return nil
}

func minuteKey(key string) string { return key + ":minute" }
func hourKey(key string) string   { return key + ":hour" }
