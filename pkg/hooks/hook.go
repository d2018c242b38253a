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
)

// Hook is the fixed operation set every hook implements. Concrete hooks
// are registered into a typed table; nothing dispatches by name-based
// reflection (§9).
type Hook interface {
	Execute(ctx context.Context, hctx *Context) (Result, error)
	Metadata() Metadata
	ShouldExecute(hctx *Context) bool
}

// Metadata describes a registered hook for introspection/listing.
type Metadata struct {
	Name     string
	Language string
	Tags     []string
}

// MetricHook is an optional subtrait: hooks implementing it get
// record_pre_execution / record_post_execution called automatically by
// the Executor around each fire.
type MetricHook interface {
	Hook
	RecordPreExecution(hctx *Context)
	RecordPostExecution(hctx *Context, result Result, duration time.Duration)
}

// ReplayableHook is an optional subtrait for hooks whose context can be
// serialized for later replay.
type ReplayableHook interface {
	Hook
	Serialize(hctx *Context) ([]byte, error)
	Deserialize(data []byte) (*Context, error)
}

// registration pairs a Hook with its dispatch configuration.
type registration struct {
	hook     Hook
	point    Point
	priority int
	order    int // registration order, used as a tiebreaker
	language string
	tags     []string
}
