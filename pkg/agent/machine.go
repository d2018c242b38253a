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
	"fmt"
	"sync"
	"time"

	serr "github.com/kadirpekel/substrate/pkg/errors"
)

// Transition is an immutable record appended to a Machine's history on
// every completed transition.
type Transition struct {
	From     State
	To       State
	Timestamp time.Time
	Duration time.Duration
	Reason   string
	Metadata map[string]any
}

// Machine is the per-agent lifecycle state machine. Every mutation is
// serialized through mu so transitions are atomic: exit the current
// state's handler, swap the value, enter the target's handler, rolling
// back on failure.
type Machine struct {
	mu                  sync.Mutex
	id                  string
	state               State
	history             []Transition
	handlers            map[State]Handler
	recoveryAttempts    int
	maxRecoveryAttempts int
	lastError           string
}

// New constructs a Machine in Uninitialized with default handlers for
// every state. maxRecoveryAttempts <= 0 defaults to 3.
func New(id string, maxRecoveryAttempts int) *Machine {
	if maxRecoveryAttempts <= 0 {
		maxRecoveryAttempts = 3
	}
	m := &Machine{
		id:                  id,
		state:               Uninitialized,
		handlers:            map[State]Handler{},
		maxRecoveryAttempts: maxRecoveryAttempts,
	}
	for s := range transitionTable {
		m.handlers[s] = DefaultHandler{Self: s}
	}
	return m
}

// SetHandler installs a custom handler for state s. It is rejected if
// the handler would broaden the default table for s.
func (m *Machine) SetHandler(s State, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for to := range map[State]bool{
		Uninitialized: true, Initializing: true, Ready: true, Running: true,
		Paused: true, Terminating: true, Terminated: true, Error: true, Recovering: true,
	} {
		if h.CanTransitionTo(to) && !IsAllowedByDefault(s, to) {
			return serr.New(serr.Configuration, "agent", "SetHandler",
				fmt.Sprintf("handler for %s broadens default transitions (allows ->%s)", s, to))
		}
	}
	m.handlers[s] = h
	return nil
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns a copy of the recorded transitions.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transition(nil), m.history...)
}

// RecoveryAttempts returns the current recovery counter.
func (m *Machine) RecoveryAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recoveryAttempts
}

// LastError returns the message recorded by the most recent ReportError()
// call, or "" if none, or if a subsequent Recover() cleared it.
func (m *Machine) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// TransitionTo is the atomic primitive every convenience wrapper uses.
func (m *Machine) TransitionTo(ctx context.Context, to State, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(ctx, to, reason, nil, true)
}

// transitionLocked performs the atomic exit/swap/enter sequence. When
// resetRecovery is true and the target is a healthy state, the recovery
// counter is zeroed — except Recover() passes false for its final
// Recovering->Ready hop so the just-incremented counter survives to be
// observed by the caller (spec.md scenario S2), only to be reset by the
// *next* ordinary healthy transition.
func (m *Machine) transitionLocked(ctx context.Context, to State, reason string, metadata map[string]any, resetRecovery bool) error {
	from := m.state

	if !IsAllowedByDefault(from, to) {
		return serr.New(serr.InvalidTransition, "agent", "transition",
			fmt.Sprintf("%s -> %s is not a permitted transition for agent %s", from, to, m.id))
	}
	if h, ok := m.handlers[from]; ok && !h.CanTransitionTo(to) {
		return serr.New(serr.InvalidTransition, "agent", "transition",
			fmt.Sprintf("handler for %s rejects transition to %s", from, to))
	}

	start := time.Now()

	if h, ok := m.handlers[from]; ok {
		if err := h.Exit(ctx, m, to); err != nil {
			return serr.Wrap(serr.Internal, "agent", "transition", "exit handler failed", err)
		}
	}

	m.state = to

	if h, ok := m.handlers[to]; ok {
		if err := h.Enter(ctx, m, from, reason); err != nil {
			// Roll back: the enter failed, restore the prior state.
			m.state = from
			return serr.Wrap(serr.Internal, "agent", "transition", "enter handler failed, rolled back", err)
		}
	}

	if IsHealthy(to) && resetRecovery {
		m.recoveryAttempts = 0
	}
	if to != Error {
		m.lastError = ""
	}

	m.history = append(m.history, Transition{
		From: from, To: to, Timestamp: start, Duration: time.Since(start),
		Reason: reason, Metadata: metadata,
	})
	return nil
}

// Initialize transitions Uninitialized -> Initializing -> Ready. It is a
// convenience wrapper that asserts the required source state.
func (m *Machine) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Uninitialized {
		return serr.New(serr.InvalidTransition, "agent", "Initialize",
			fmt.Sprintf("requires Uninitialized, was %s", m.state))
	}
	if err := m.transitionLocked(ctx, Initializing, "initialize", nil, true); err != nil {
		return err
	}
	return m.transitionLocked(ctx, Ready, "initialize", nil, true)
}

// Start transitions Ready -> Running.
func (m *Machine) Start(ctx context.Context) error {
	return m.assertAndTransition(ctx, Ready, Running, "start")
}

// Pause transitions Running -> Paused.
func (m *Machine) Pause(ctx context.Context) error {
	return m.assertAndTransition(ctx, Running, Paused, "pause")
}

// Resume transitions Paused -> Running.
func (m *Machine) Resume(ctx context.Context) error {
	return m.assertAndTransition(ctx, Paused, Running, "resume")
}

// Stop transitions Running -> Ready.
func (m *Machine) Stop(ctx context.Context) error {
	return m.assertAndTransition(ctx, Running, Ready, "stop")
}

// Terminate transitions the current state to Terminating then Terminated.
func (m *Machine) Terminate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transitionLocked(ctx, Terminating, "terminate", nil, true); err != nil {
		return err
	}
	return m.transitionLocked(ctx, Terminated, "terminate", nil, true)
}

// ReportError transitions the current state to Error, recording msg.
func (m *Machine) ReportError(ctx context.Context, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transitionLocked(ctx, Error, msg, nil, true); err != nil {
		return err
	}
	m.lastError = msg
	return nil
}

// Recover transitions Error -> Recovering -> Ready, incrementing the
// recovery counter and failing with RecoveryExhausted if it would exceed
// the configured cap without changing state.
func (m *Machine) Recover(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Error {
		return serr.New(serr.InvalidTransition, "agent", "Recover",
			fmt.Sprintf("requires Error, was %s", m.state))
	}
	if m.recoveryAttempts+1 > m.maxRecoveryAttempts {
		return serr.New(serr.RecoveryExhausted, "agent", "Recover",
			fmt.Sprintf("recovery attempts would exceed max (%d)", m.maxRecoveryAttempts))
	}
	m.recoveryAttempts++
	if err := m.transitionLocked(ctx, Recovering, "recover", nil, true); err != nil {
		m.recoveryAttempts--
		return err
	}
	if err := m.transitionLocked(ctx, Ready, "recover", nil, false); err != nil {
		return err
	}
	m.lastError = ""
	return nil
}

func (m *Machine) assertAndTransition(ctx context.Context, required, to State, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != required {
		return serr.New(serr.InvalidTransition, "agent", reason,
			fmt.Sprintf("requires %s, was %s", required, m.state))
	}
	return m.transitionLocked(ctx, to, reason, nil, true)
}
