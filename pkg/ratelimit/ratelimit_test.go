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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
)

func TestAllowPermitsWithinPerMinuteBudget(t *testing.T) {
	l := New(Config{PerMinute: 3}, NewInMemory())
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(context.Background(), "tool:search", base.Add(time.Duration(i)*time.Second)))
	}

	err := l.Allow(context.Background(), "tool:search", base.Add(3*time.Second))
	require.Error(t, err)
	require.True(t, substrateerrors.Is(err, substrateerrors.RateLimit))
}

func TestAllowEvictsEntriesOutsideWindow(t *testing.T) {
	l := New(Config{PerMinute: 2}, NewInMemory())
	base := time.Unix(1_700_000_000, 0)

	require.NoError(t, l.Allow(context.Background(), "k", base))
	require.NoError(t, l.Allow(context.Background(), "k", base.Add(10*time.Second)))
	require.Error(t, l.Allow(context.Background(), "k", base.Add(20*time.Second)))

	// the hits at 0s and 10s fall out of the trailing minute window by now;
	// the rejected request at 20s was recorded too and still counts
	require.NoError(t, l.Allow(context.Background(), "k", base.Add(71*time.Second)))
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New(Config{PerMinute: 1}, NewInMemory())
	base := time.Unix(1_700_000_000, 0)

	require.NoError(t, l.Allow(context.Background(), "a", base))
	require.NoError(t, l.Allow(context.Background(), "b", base))
	require.Error(t, l.Allow(context.Background(), "a", base.Add(time.Second)))
}

func TestAllowEnforcesBothWindowsIndependently(t *testing.T) {
	l := New(Config{PerMinute: 100, PerHour: 2}, NewInMemory())
	base := time.Unix(1_700_000_000, 0)

	require.NoError(t, l.Allow(context.Background(), "k", base))
	require.NoError(t, l.Allow(context.Background(), "k", base.Add(time.Second)))

	err := l.Allow(context.Background(), "k", base.Add(2*time.Second))
	require.Error(t, err)
	var se *substrateerrors.Error
	require.ErrorAs(t, err, &se)
	require.Equal(t, time.Hour, se.RetryAfter)
}

func TestZeroBudgetDisablesWindow(t *testing.T) {
	l := New(Config{}, NewInMemory())
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, l.Allow(context.Background(), "unbounded", base.Add(time.Duration(i)*time.Millisecond)))
	}
}
