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

package tool

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
)

// DefaultMaxExecutionMillis is used when a tool's Info.MaxExecution is
// unset.
const DefaultMaxExecutionMillis = 30_000

// CacheConfig toggles the manager's two independent caches, per §4.8.
type CacheConfig struct {
	CacheAvailability bool
	CacheMetadata     bool
}

// Manager is the tool registry and invocation surface of §4.8.
type Manager struct {
	mu    sync.RWMutex
	tools map[string]Info

	cacheCfg    CacheConfig
	availCache  map[string]bool
	metaCache   map[string]Info
	availCacheM sync.RWMutex
	metaCacheM  sync.RWMutex

	validate bool
}

// NewManager constructs a Manager. validateParams enables JSON-schema
// parameter validation on InvokeTool when a tool registers a Schema.
func NewManager(cacheCfg CacheConfig, validateParams bool) *Manager {
	return &Manager{
		tools:      map[string]Info{},
		cacheCfg:   cacheCfg,
		availCache: map[string]bool{},
		metaCache:  map[string]Info{},
		validate:   validateParams,
	}
}

// Register adds or replaces a tool, invalidating both caches for it.
func (m *Manager) Register(info Info) {
	m.mu.Lock()
	m.tools[info.Name] = info
	m.mu.Unlock()

	m.availCacheM.Lock()
	delete(m.availCache, info.Name)
	m.availCacheM.Unlock()

	m.metaCacheM.Lock()
	delete(m.metaCache, info.Name)
	m.metaCacheM.Unlock()
}

// DiscoverTools filters the registry by q, per §4.8.
func (m *Manager) DiscoverTools(ctx context.Context, q Query) []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Info
	for _, info := range m.tools {
		if q.matches(info) {
			out = append(out, info)
		}
	}
	return out
}

// ListAvailableTools returns every registered tool's metadata.
func (m *Manager) ListAvailableTools(ctx context.Context) []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.tools))
	for _, info := range m.tools {
		out = append(out, info)
	}
	return out
}

// ToolAvailable reports whether name is registered, serving from its own
// cache when CacheAvailability is set.
func (m *Manager) ToolAvailable(ctx context.Context, name string) bool {
	if m.cacheCfg.CacheAvailability {
		m.availCacheM.RLock()
		if v, ok := m.availCache[name]; ok {
			m.availCacheM.RUnlock()
			return v
		}
		m.availCacheM.RUnlock()
	}

	m.mu.RLock()
	_, ok := m.tools[name]
	m.mu.RUnlock()

	if m.cacheCfg.CacheAvailability {
		m.availCacheM.Lock()
		m.availCache[name] = ok
		m.availCacheM.Unlock()
	}
	return ok
}

// GetToolInfo returns name's metadata, serving from its own cache when
// CacheMetadata is set.
func (m *Manager) GetToolInfo(ctx context.Context, name string) (Info, bool) {
	if m.cacheCfg.CacheMetadata {
		m.metaCacheM.RLock()
		if v, ok := m.metaCache[name]; ok {
			m.metaCacheM.RUnlock()
			return v, true
		}
		m.metaCacheM.RUnlock()
	}

	m.mu.RLock()
	info, ok := m.tools[name]
	m.mu.RUnlock()

	if ok && m.cacheCfg.CacheMetadata {
		m.metaCacheM.Lock()
		m.metaCache[name] = info
		m.metaCacheM.Unlock()
	}
	return info, ok
}

// InvokeTool validates params against the tool's schema (when enabled
// and present), enforces the tool's max_execution_time as a hard
// timeout, and returns its textual output, per §4.8.
func (m *Manager) InvokeTool(ctx context.Context, name string, params map[string]any) (string, error) {
	info, ok := m.GetToolInfo(ctx, name)
	if !ok {
		return "", substrateerrors.New(substrateerrors.NotFound, "tool", "InvokeTool", "no such tool: "+name)
	}

	if m.validate && info.Schema != nil {
		if err := validateParams(info.Schema, params); err != nil {
			return "", substrateerrors.Wrap(substrateerrors.Validation, "tool", "InvokeTool", "parameter validation failed", err)
		}
	}

	maxMillis := info.MaxExecution
	if maxMillis <= 0 {
		maxMillis = DefaultMaxExecutionMillis
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(maxMillis)*time.Millisecond)
	defer cancel()

	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		output, err := info.Handler(timeoutCtx, params)
		done <- outcome{output: output, err: err}
	}()

	select {
	case o := <-done:
		return o.output, o.err
	case <-timeoutCtx.Done():
		return "", substrateerrors.Wrap(substrateerrors.Timeout, "tool", "InvokeTool", "tool exceeded max_execution_time", timeoutCtx.Err())
	}
}

// validateParams compiles schema (a JSON-Schema document expressed as a
// map) and validates params against it.
func validateParams(schema map[string]any, params map[string]any) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	var schemaDoc any
	if err := json.Unmarshal(raw, &schemaDoc); err != nil {
		return err
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("params.json", schemaDoc); err != nil {
		return err
	}
	compiled, err := c.Compile("params.json")
	if err != nil {
		return err
	}

	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	var paramsDoc any
	if err := json.Unmarshal(paramsRaw, &paramsDoc); err != nil {
		return err
	}

	return compiled.Validate(paramsDoc)
}
