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

package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis is a distributed Backend shared across every substrate process,
// implemented as a sorted set per key: the score is the hit's Unix-nano
// timestamp, trimmed to the trailing window on every call.
type Redis struct {
	client *goredis.Client
	prefix string
}

// NewRedis wraps an existing *goredis.Client. prefix namespaces the
// sorted-set keys this Backend creates (e.g. "substrate:ratelimit:").
func NewRedis(client *goredis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) RecordAndCount(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	setKey := r.prefix + key
	score := float64(now.UnixNano())
	cutoff := float64(now.Add(-window).UnixNano())

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, setKey, "-inf", fmt.Sprintf("(%f", cutoff))
	pipe.ZAdd(ctx, setKey, goredis.Z{Score: score, Member: fmt.Sprintf("%d", now.UnixNano())})
	card := pipe.ZCard(ctx, setKey)
	pipe.PExpire(ctx, setKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("ratelimit: redis pipeline failed: %w", err)
	}
	return int(card.Val()), nil
}
