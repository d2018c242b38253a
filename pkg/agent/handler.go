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

import "context"

// Handler is the pluggable per-state behavior described in §4.1. A
// custom handler may further restrict the transitions a state allows,
// but CanTransitionTo must never report true for a pair the default
// table forbids — Machine.SetHandler enforces that boundary.
type Handler interface {
	Enter(ctx context.Context, m *Machine, from State, reason string) error
	Exit(ctx context.Context, m *Machine, to State) error
	CanTransitionTo(to State) bool
}

// DefaultHandler allows every transition the static table allows for its
// state and does nothing on enter/exit.
type DefaultHandler struct {
	Self State
}

func (h DefaultHandler) Enter(context.Context, *Machine, State, string) error { return nil }
func (h DefaultHandler) Exit(context.Context, *Machine, State) error         { return nil }
func (h DefaultHandler) CanTransitionTo(to State) bool                        { return IsAllowedByDefault(h.Self, to) }
