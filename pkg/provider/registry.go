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

package provider

import (
	"context"
	"os"
	"strings"
	"sync"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
)

// Registry maps provider-type names to factory closures and caches
// successfully-validated instances, per §4.9.
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	instances  map[string]Provider // cacheKey -> instance
	defaultKey string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
		instances: map[string]Provider{},
	}
}

// RegisterFactory adds a factory for providerType. The first factory
// registered becomes the default provider type used when a Spec omits
// one.
func (r *Registry) RegisterFactory(providerType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[providerType] = factory
	if r.defaultKey == "" {
		r.defaultKey = providerType
	}
}

// resolveAPIKey implements §4.9's override → spec → env → defaults
// priority: override first, then the spec's own APIKey, then
// LLMSPELL_{NAME}_API_KEY, then the canonical provider env var (e.g.
// OPENAI_API_KEY).
func resolveAPIKey(spec Spec, override string) string {
	if override != "" {
		return override
	}
	if spec.APIKey != "" {
		return spec.APIKey
	}
	name := strings.ToUpper(spec.Type)
	if v := os.Getenv("LLMSPELL_" + name + "_API_KEY"); v != "" {
		return v
	}
	if v := os.Getenv(canonicalAPIKeyEnvVar(spec.Type)); v != "" {
		return v
	}
	return ""
}

func canonicalAPIKeyEnvVar(providerType string) string {
	switch strings.ToLower(providerType) {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini", "google":
		return "GOOGLE_API_KEY"
	default:
		return strings.ToUpper(providerType) + "_API_KEY"
	}
}

func resolveBaseURL(spec Spec, override string) string {
	if override != "" {
		return override
	}
	if spec.BaseURL != "" {
		return spec.BaseURL
	}
	name := strings.ToUpper(spec.Type)
	if v := os.Getenv("LLMSPELL_" + name + "_BASE_URL"); v != "" {
		return v
	}
	return ""
}

// CreateAgentFromSpec resolves spec's API key and base URL per §4.9's
// priority order, builds (or returns a cached) Provider instance keyed
// by "{type}:{model}", validating before caching.
func (r *Registry) CreateAgentFromSpec(ctx context.Context, spec Spec, baseURLOverride, apiKeyOverride string) (Provider, error) {
	spec.APIKey = resolveAPIKey(spec, apiKeyOverride)
	spec.BaseURL = resolveBaseURL(spec, baseURLOverride)

	providerType := spec.Type
	if providerType == "" {
		r.mu.RLock()
		providerType = r.defaultKey
		r.mu.RUnlock()
		spec.Type = providerType
	}

	key := spec.cacheKey()

	r.mu.RLock()
	if cached, ok := r.instances[key]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	factory, ok := r.factories[providerType]
	r.mu.RUnlock()
	if !ok {
		return nil, substrateerrors.New(substrateerrors.Provider, "provider", "CreateAgentFromSpec", "no factory registered for type: "+providerType)
	}

	instance, err := factory(ctx, spec)
	if err != nil {
		return nil, substrateerrors.Wrap(substrateerrors.Provider, "provider", "CreateAgentFromSpec", "factory failed", err)
	}

	if err := instance.Validate(ctx); err != nil {
		return nil, substrateerrors.Wrap(substrateerrors.Provider, "provider", "CreateAgentFromSpec", "validation failed", err)
	}

	r.mu.Lock()
	r.instances[key] = instance
	r.mu.Unlock()

	return instance, nil
}

// Get returns a previously-cached instance by its "{type}:{model}" key.
func (r *Registry) Get(cacheKey string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.instances[cacheKey]
	return p, ok
}

// Evict removes a cached instance, forcing the next CreateAgentFromSpec
// call for that key to rebuild it.
func (r *Registry) Evict(cacheKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, cacheKey)
}
