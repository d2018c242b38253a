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

package agent

import (
	"context"
	"testing"

	serr "github.com/kadirpekel/substrate/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMachine_S1_FullLifecycle implements spec.md scenario S1.
func TestMachine_S1_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	m := New("agent-1", 3)

	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Pause(ctx))
	require.NoError(t, m.Resume(ctx))
	require.NoError(t, m.Stop(ctx))
	require.NoError(t, m.Terminate(ctx))

	assert.Equal(t, Terminated, m.State())
	assert.Len(t, m.History(), 8)
}

// TestMachine_S2_ErrorRecovery implements spec.md scenario S2.
func TestMachine_S2_ErrorRecovery(t *testing.T) {
	ctx := context.Background()
	m := New("agent-2", 3)
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Start(ctx))

	require.NoError(t, m.ReportError(ctx, "x"))
	assert.Equal(t, "x", m.LastError())

	require.NoError(t, m.Recover(ctx))
	assert.Equal(t, Ready, m.State())
	assert.Equal(t, "", m.LastError())
	assert.Equal(t, 1, m.RecoveryAttempts())

	err := m.Recover(ctx)
	require.Error(t, err)
	assert.Equal(t, serr.InvalidTransition, serr.KindOf(err))
}

func TestMachine_InvalidTransitionRejected(t *testing.T) {
	ctx := context.Background()
	m := New("agent-3", 3)
	err := m.Start(ctx) // Uninitialized -> Running is not in the table
	require.Error(t, err)
	assert.Equal(t, serr.InvalidTransition, serr.KindOf(err))
	assert.Equal(t, Uninitialized, m.State())
}

func TestMachine_RecoveryExhausted(t *testing.T) {
	ctx := context.Background()
	m := New("agent-4", 1)
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.ReportError(ctx, "boom"))
	require.NoError(t, m.Recover(ctx)) // attempt 1, ok

	// No healthy transition before the next failure, so the counter is not
	// reset and the second Recover belongs to the same failure episode.
	require.Equal(t, 1, m.RecoveryAttempts())
	require.NoError(t, m.ReportError(ctx, "boom again"))
	err := m.Recover(ctx) // attempt 2 > max of 1
	require.Error(t, err)
	assert.Equal(t, serr.RecoveryExhausted, serr.KindOf(err))
	assert.Equal(t, Error, m.State(), "state unchanged on exhausted recovery")
}

func TestMachine_CustomHandlerCannotBroaden(t *testing.T) {
	m := New("agent-5", 3)
	err := m.SetHandler(Terminated, broadeningHandler{})
	require.Error(t, err)
}

type broadeningHandler struct{}

func (broadeningHandler) Enter(context.Context, *Machine, State, string) error { return nil }
func (broadeningHandler) Exit(context.Context, *Machine, State) error         { return nil }
func (broadeningHandler) CanTransitionTo(to State) bool                        { return true } // tries to allow everything, including from Terminated
