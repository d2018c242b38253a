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

// RuntimeConfig is the fully composed, typed configuration the rest of
// the runtime consumes. Decode() produces one of these from the merged
// field map returned by Composer.LoadMulti.
type RuntimeConfig struct {
	Runtime  RuntimeSection            `toml:"runtime"`
	Storage  StorageSection            `toml:"storage"`
	Debug    DebugConfig               `toml:"debug"`
	Backends map[string]map[string]any `toml:"backends"`
}

type RuntimeSection struct {
	MaxRecoveryAttempts int    `toml:"max_recovery_attempts"`
	DefaultTenant       string `toml:"default_tenant"`
}

type StorageSection struct {
	DSN                 string `toml:"dsn"`
	ArtifactInlineLimit int    `toml:"artifact_inline_limit_bytes"`
}

// DebugConfig is one of the "few explicit exceptions" called out in
// §4.11: its Output/ModuleFilters/Performance/StackTrace fields replace
// wholesale rather than merge field-by-field, because a partially merged
// debug profile (e.g. half the module filters from a base layer, half
// from an env layer) is more confusing than useful.
type DebugConfig struct {
	Output          []string `toml:"output"`
	ModuleFilters   []string `toml:"module_filters"`
	Performance     bool     `toml:"performance"`
	StackTrace      bool     `toml:"stack_trace"`
}

// MergeStruct applies the §4.11 merge rule to two typed RuntimeConfig
// values: scalars override only when src differs from the zero value,
// maps insert-or-replace by key, and DebugConfig replaces wholesale.
func MergeStruct(dst, src RuntimeConfig) RuntimeConfig {
	out := dst

	if src.Runtime.MaxRecoveryAttempts != 0 {
		out.Runtime.MaxRecoveryAttempts = src.Runtime.MaxRecoveryAttempts
	}
	if src.Runtime.DefaultTenant != "" {
		out.Runtime.DefaultTenant = src.Runtime.DefaultTenant
	}
	if src.Storage.DSN != "" {
		out.Storage.DSN = src.Storage.DSN
	}
	if src.Storage.ArtifactInlineLimit != 0 {
		out.Storage.ArtifactInlineLimit = src.Storage.ArtifactInlineLimit
	}

	// DebugConfig: wholesale replace when the source layer sets anything.
	if len(src.Debug.Output) > 0 || len(src.Debug.ModuleFilters) > 0 || src.Debug.Performance || src.Debug.StackTrace {
		out.Debug = src.Debug
	}

	if out.Backends == nil {
		out.Backends = map[string]map[string]any{}
	}
	for name, fields := range src.Backends {
		out.Backends[name] = fields
	}

	return out
}
