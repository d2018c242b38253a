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
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	valid   bool
}

func (f *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return CompletionResponse{Content: "ok"}, nil
}
func (f *fakeProvider) Validate(ctx context.Context) error {
	if !f.valid {
		return fmt.Errorf("invalid provider config")
	}
	return nil
}
func (f *fakeProvider) Capabilities() []Capability { return nil }
func (f *fakeProvider) Name() string               { return f.name }
func (f *fakeProvider) Model() string              { return f.model }

func TestCreateAgentFromSpecCachesByTypeAndModel(t *testing.T) {
	r := NewRegistry()
	var calls atomic.Int64
	r.RegisterFactory("openai", func(ctx context.Context, spec Spec) (Provider, error) {
		calls.Add(1)
		return &fakeProvider{name: "openai", model: spec.Model, apiKey: spec.APIKey, baseURL: spec.BaseURL, valid: true}, nil
	})

	spec := Spec{Type: "openai", Model: "gpt-4o-mini"}
	p1, err := r.CreateAgentFromSpec(context.Background(), spec, "", "override-key")
	require.NoError(t, err)
	p2, err := r.CreateAgentFromSpec(context.Background(), spec, "", "override-key")
	require.NoError(t, err)

	require.Same(t, p1, p2)
	require.Equal(t, int64(1), calls.Load())
}

func TestCreateAgentFromSpecResolvesAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-canonical-env")

	r := NewRegistry()
	r.RegisterFactory("openai", func(ctx context.Context, spec Spec) (Provider, error) {
		return &fakeProvider{name: "openai", model: spec.Model, apiKey: spec.APIKey, valid: true}, nil
	})

	p, err := r.CreateAgentFromSpec(context.Background(), Spec{Type: "openai", Model: "gpt-4o-mini"}, "", "")
	require.NoError(t, err)
	require.Equal(t, "from-canonical-env", p.(*fakeProvider).apiKey)
}

func TestCreateAgentFromSpecLLMSpellEnvTakesPriorityOverCanonical(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "canonical")
	t.Setenv("LLMSPELL_OPENAI_API_KEY", "llmspell-scoped")

	r := NewRegistry()
	r.RegisterFactory("openai", func(ctx context.Context, spec Spec) (Provider, error) {
		return &fakeProvider{name: "openai", model: spec.Model, apiKey: spec.APIKey, valid: true}, nil
	})

	p, err := r.CreateAgentFromSpec(context.Background(), Spec{Type: "openai", Model: "gpt-4o-mini"}, "", "")
	require.NoError(t, err)
	require.Equal(t, "llmspell-scoped", p.(*fakeProvider).apiKey)
}

func TestCreateAgentFromSpecFailsValidationIsNotCached(t *testing.T) {
	r := NewRegistry()
	var calls atomic.Int64
	r.RegisterFactory("broken", func(ctx context.Context, spec Spec) (Provider, error) {
		calls.Add(1)
		return &fakeProvider{name: "broken", model: spec.Model, valid: false}, nil
	})

	spec := Spec{Type: "broken", Model: "m1"}
	_, err := r.CreateAgentFromSpec(context.Background(), spec, "", "")
	require.Error(t, err)

	_, ok := r.Get(spec.cacheKey())
	require.False(t, ok)
}

func TestFirstRegisteredFactoryBecomesDefault(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory("openai", func(ctx context.Context, spec Spec) (Provider, error) {
		return &fakeProvider{name: "openai", model: spec.Model, valid: true}, nil
	})
	r.RegisterFactory("anthropic", func(ctx context.Context, spec Spec) (Provider, error) {
		return &fakeProvider{name: "anthropic", model: spec.Model, valid: true}, nil
	})

	p, err := r.CreateAgentFromSpec(context.Background(), Spec{Model: "default-model"}, "", "")
	require.NoError(t, err)
	require.Equal(t, "openai", p.Name())
}
