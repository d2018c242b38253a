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

package migration

import "fmt"

// ValidationLevel controls how strictly the Validator treats issues.
type ValidationLevel string

const (
	ValidationNone    ValidationLevel = "None"
	ValidationLenient ValidationLevel = "Lenient"
	ValidationStrict  ValidationLevel = "Strict"
)

// IssueSeverity ranks a single validation finding.
type IssueSeverity string

const (
	SeverityWarning IssueSeverity = "Warning"
	SeverityError   IssueSeverity = "Error"
)

// Issue is one validation finding against a state entry.
type Issue struct {
	Field    string
	Severity IssueSeverity
	Message  string
}

// CustomValidator is a user-supplied, named cross-field or referential
// rule run over the full record.
type CustomValidator func(data map[string]any) []Issue

// Validator runs a configurable rule set over state entries against a
// target schema.
type Validator struct {
	Level      ValidationLevel
	FailFast   bool
	StrictMode bool
	MaxIssues  int
	Custom     map[string]CustomValidator
}

// NewValidator constructs a Validator at level.
func NewValidator(level ValidationLevel) *Validator {
	return &Validator{Level: level, Custom: map[string]CustomValidator{}}
}

// Validate checks data against schema, returning every issue found
// (capped at MaxIssues when set, or stopping at the first issue when
// FailFast is set).
func (v *Validator) Validate(data map[string]any, schema Schema) []Issue {
	if v.Level == ValidationNone {
		return nil
	}

	var issues []Issue
	add := func(i Issue) bool {
		issues = append(issues, i)
		if v.FailFast {
			return false
		}
		if v.MaxIssues > 0 && len(issues) >= v.MaxIssues {
			return false
		}
		return true
	}

	for name, spec := range schema.Fields {
		val, present := data[name]
		if !present {
			if spec.Required {
				if !add(Issue{Field: name, Severity: SeverityError, Message: "required field missing"}) {
					return issues
				}
			}
			continue
		}
		if !typeMatches(val, spec.Type) {
			if !add(Issue{Field: name, Severity: SeverityError, Message: fmt.Sprintf("expected type %s", spec.Type)}) {
				return issues
			}
		}
	}

	for name, validator := range v.Custom {
		for _, issue := range validator(data) {
			if issue.Field == "" {
				issue.Field = name
			}
			if !add(issue) {
				return issues
			}
		}
	}

	return issues
}

// HasFatal reports whether issues contains a finding that should abort
// the migration under v's configured Level.
func (v *Validator) HasFatal(issues []Issue) bool {
	for _, i := range issues {
		switch v.Level {
		case ValidationStrict:
			return true // any issue, including a warning, is fatal in Strict mode
		case ValidationLenient:
			if i.Severity == SeverityError {
				return true
			}
		}
	}
	return false
}

func typeMatches(v any, t FieldType) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInt:
		switch v.(type) {
		case int, int32, int64, float64:
			return true
		}
		return false
	case TypeFloat:
		switch v.(type) {
		case float32, float64:
			return true
		}
		return false
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
