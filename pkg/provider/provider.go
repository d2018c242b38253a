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

// Package provider implements the provider manager of §4.9: a
// type-keyed factory registry, hierarchical instance addressing,
// environment/spec/override resolution for agent construction, and
// per-instance caching gated on successful validation.
package provider

import (
	"context"
	"fmt"
)

// CompletionRequest and CompletionResponse are the minimal provider
// wire shapes; concrete wire protocols are out of scope per §1.
type CompletionRequest struct {
	Messages []Message
	Params   map[string]any
}

type Message struct {
	Role    string
	Content string
}

type CompletionResponse struct {
	Content string
	Usage   map[string]int
}

// Capability names a provider feature (e.g. "streaming", "tool_calls").
type Capability string

// Provider is the runtime surface every registered LLM backend
// implements, per §4.9.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Validate(ctx context.Context) error
	Capabilities() []Capability
	Name() string
	Model() string
}

// Spec describes the provider instance create_agent_from_spec resolves,
// per §4.9's override → spec → env → defaults priority order.
type Spec struct {
	Implementation string
	Type           string
	Model          string
	BaseURL        string
	APIKey         string
	Params         map[string]any
}

// Address is the hierarchical "{implementation}/{type}/{model}" string
// identifying one provider instance, per §4.9.
func (s Spec) Address() string {
	return fmt.Sprintf("%s/%s/%s", s.Implementation, s.Type, s.Model)
}

// cacheKey is the "{type}:{model}" key instances are cached under.
func (s Spec) cacheKey() string {
	return fmt.Sprintf("%s:%s", s.Type, s.Model)
}

// Factory constructs a Provider instance from a resolved Spec.
type Factory func(ctx context.Context, spec Spec) (Provider, error)
