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

// Package migration implements the schema registry, compatibility
// analyzer, migration planner/engine, and validator of §4.4.
package migration

import (
	"fmt"
	"sort"
	"sync"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
)

// FieldType names the primitive type a schema field holds.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
)

// FieldSpec describes one field of a Schema.
type FieldSpec struct {
	Type       FieldType
	Required   bool
	Default    any
	Validators []string
}

// Schema is one versioned shape a state record may take.
type Schema struct {
	Version string // semver
	Fields  map[string]FieldSpec
}

// Registry stores every schema version that could be a migration source
// or target.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{schemas: map[string]Schema{}}
}

// Register adds or replaces schema s under its Version.
func (r *Registry) Register(s Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Version] = s
}

// Get retrieves the schema registered under version.
func (r *Registry) Get(version string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[version]
	return s, ok
}

// Versions returns every registered version, sorted.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.schemas))
	for v := range r.schemas {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// RiskLevel ranks how dangerous a schema change is to apply.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// FieldChange describes one field-level difference between two schemas.
type FieldChange struct {
	Field    string
	Kind     string // "added" | "removed" | "type_changed" | "required_added"
	Breaking bool
}

// CompatibilityReport is the result of comparing two schemas.
type CompatibilityReport struct {
	Compatible      bool
	FieldChanges    []FieldChange
	BreakingChanges []FieldChange
	RiskLevel       RiskLevel
}

// Compare analyzes the difference between from and to. Pure additions of
// optional fields are compatible; removal, required-field addition, a
// type change, or a rename (modeled as remove+add with no Rename
// transform bridging them) are breaking.
func Compare(from, to Schema) CompatibilityReport {
	var changes, breaking []FieldChange

	for name, spec := range to.Fields {
		old, existed := from.Fields[name]
		switch {
		case !existed && spec.Required:
			fc := FieldChange{Field: name, Kind: "required_added", Breaking: true}
			changes = append(changes, fc)
			breaking = append(breaking, fc)
		case !existed:
			changes = append(changes, FieldChange{Field: name, Kind: "added", Breaking: false})
		case existed && old.Type != spec.Type:
			fc := FieldChange{Field: name, Kind: "type_changed", Breaking: true}
			changes = append(changes, fc)
			breaking = append(breaking, fc)
		}
	}
	for name := range from.Fields {
		if _, stillExists := to.Fields[name]; !stillExists {
			fc := FieldChange{Field: name, Kind: "removed", Breaking: true}
			changes = append(changes, fc)
			breaking = append(breaking, fc)
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	sort.Slice(breaking, func(i, j int) bool { return breaking[i].Field < breaking[j].Field })

	return CompatibilityReport{
		Compatible:      len(breaking) == 0,
		FieldChanges:    changes,
		BreakingChanges: breaking,
		RiskLevel:       riskFor(breaking),
	}
}

func riskFor(breaking []FieldChange) RiskLevel {
	switch {
	case len(breaking) == 0:
		return RiskLow
	case len(breaking) <= 1:
		return RiskMedium
	case len(breaking) <= 3:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// errSchemaNotFound builds the NotFound error returned when a version
// isn't registered.
func errSchemaNotFound(version string) error {
	return substrateerrors.New(substrateerrors.NotFound, "migration", "Get", fmt.Sprintf("schema %q not registered", version))
}
