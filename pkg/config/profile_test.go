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

package config

import (
	"testing"

	serr "github.com/kadirpekel/substrate/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource() MapSource {
	return MapSource{
		"bases/default": []byte(`
[profile]
name = "default"

[runtime]
max_recovery_attempts = 3
default_tenant = "public"
`),
		"envs/prod": []byte(`
[profile]
extends = ["bases/default"]
name = "prod"

[runtime]
default_tenant = "prod-tenant"

[storage]
dsn = "postgres://prod"
`),
		"cycle/a": []byte(`
[profile]
extends = ["cycle/b"]
`),
		"cycle/b": []byte(`
[profile]
extends = ["cycle/a"]
`),
	}
}

func TestComposer_LoadSingleLayer(t *testing.T) {
	c := NewComposer(testSource())
	fields, err := c.Load("bases/default")
	require.NoError(t, err)
	runtime := fields["runtime"].(map[string]any)
	assert.EqualValues(t, 3, runtime["max_recovery_attempts"])
}

func TestComposer_ExtendsOverlay(t *testing.T) {
	c := NewComposer(testSource())
	fields, err := c.Load("envs/prod")
	require.NoError(t, err)

	runtime := fields["runtime"].(map[string]any)
	assert.EqualValues(t, 3, runtime["max_recovery_attempts"], "inherited from base, not overridden")
	assert.Equal(t, "prod-tenant", runtime["default_tenant"], "overlay replaces base")

	storage := fields["storage"].(map[string]any)
	assert.Equal(t, "postgres://prod", storage["dsn"])
}

func TestComposer_CircularExtends(t *testing.T) {
	c := NewComposer(testSource())
	_, err := c.Load("cycle/a")
	require.Error(t, err)
	assert.Equal(t, serr.Configuration, serr.KindOf(err))
}

func TestComposer_LoadMulti_LaterOverridesEarlier(t *testing.T) {
	c := NewComposer(testSource())
	merged, err := c.LoadMulti([]string{"bases/default", "envs/prod"})
	require.NoError(t, err)
	runtime := merged["runtime"].(map[string]any)
	assert.Equal(t, "prod-tenant", runtime["default_tenant"])
}

func TestMergeStruct_DebugWholesaleReplace(t *testing.T) {
	dst := RuntimeConfig{Debug: DebugConfig{Output: []string{"stdout"}, ModuleFilters: []string{"a", "b"}}}
	src := RuntimeConfig{Debug: DebugConfig{Output: []string{"file"}}}
	out := MergeStruct(dst, src)
	assert.Equal(t, []string{"file"}, out.Debug.Output)
	assert.Nil(t, out.Debug.ModuleFilters, "wholesale replace drops unrelated fields from dst")
}

func TestMergeStruct_ScalarUnsetSemantics(t *testing.T) {
	dst := RuntimeConfig{Runtime: RuntimeSection{MaxRecoveryAttempts: 5, DefaultTenant: "base"}}
	src := RuntimeConfig{Runtime: RuntimeSection{DefaultTenant: "override"}}
	out := MergeStruct(dst, src)
	assert.Equal(t, 5, out.Runtime.MaxRecoveryAttempts, "zero value in src means unset, dst preserved")
	assert.Equal(t, "override", out.Runtime.DefaultTenant)
}
