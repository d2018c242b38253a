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

import (
	"fmt"
	"strings"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
)

// TransformKind names one of the seven field transform primitives of
// §4.4's StateTransformation table.
type TransformKind string

const (
	TransformDefault TransformKind = "Default"
	TransformCopy    TransformKind = "Copy"
	TransformRename  TransformKind = "Rename"
	TransformConvert TransformKind = "Convert"
	TransformSplit   TransformKind = "Split"
	TransformMerge   TransformKind = "Merge"
	TransformRemove  TransformKind = "Remove"
)

// Converter maps one value to another (Convert transform).
type Converter func(v any) (any, error)

// Splitter maps one value into several named outputs (Split transform).
type Splitter func(v any) (map[string]any, error)

// Merger maps several named inputs into one value (Merge transform).
type Merger func(values map[string]any) (any, error)

// Transform is one field-level edit applied during a migration step.
type Transform struct {
	Kind TransformKind

	// Default
	Field        string
	DefaultValue any

	// Copy / Rename / Convert
	From string
	To   string

	// Convert
	FromType  FieldType
	ToType    FieldType
	Converter Converter

	// Split
	ToFields []string
	Splitter Splitter

	// Merge
	FromFields []string
	Merger     Merger
}

// Default constructs a Default{field,value} transform.
func Default(field string, value any) Transform {
	return Transform{Kind: TransformDefault, Field: field, DefaultValue: value}
}

// Copy constructs a Copy{from,to} transform.
func Copy(from, to string) Transform { return Transform{Kind: TransformCopy, From: from, To: to} }

// Rename constructs a Rename{from,to} transform.
func Rename(from, to string) Transform { return Transform{Kind: TransformRename, From: from, To: to} }

// Convert constructs a Convert transform using the named converter.
func Convert(from, to string, fromType, toType FieldType, converter Converter) Transform {
	return Transform{Kind: TransformConvert, From: from, To: to, FromType: fromType, ToType: toType, Converter: converter}
}

// Split constructs a Split{from,to_fields,splitter} transform.
func Split(from string, toFields []string, splitter Splitter) Transform {
	return Transform{Kind: TransformSplit, From: from, ToFields: toFields, Splitter: splitter}
}

// Merge constructs a Merge{from_fields,to,merger} transform.
func Merge(fromFields []string, to string, merger Merger) Transform {
	return Transform{Kind: TransformMerge, FromFields: fromFields, To: to, Merger: merger}
}

// Remove constructs a Remove{field} transform.
func Remove(field string) Transform { return Transform{Kind: TransformRemove, Field: field} }

// Apply mutates data in place according to t.
func (t Transform) Apply(data map[string]any) error {
	switch t.Kind {
	case TransformDefault:
		if _, ok := data[t.Field]; !ok {
			data[t.Field] = t.DefaultValue
		}
	case TransformCopy:
		if v, ok := data[t.From]; ok {
			data[t.To] = v
		}
	case TransformRename:
		if v, ok := data[t.From]; ok {
			data[t.To] = v
			delete(data, t.From)
		}
	case TransformConvert:
		v, ok := data[t.From]
		if !ok {
			return nil
		}
		if t.Converter == nil {
			return substrateerrors.New(substrateerrors.MigrationError, "migration", "Convert", fmt.Sprintf("no converter for %s->%s", t.From, t.To))
		}
		converted, err := t.Converter(v)
		if err != nil {
			return substrateerrors.Wrap(substrateerrors.MigrationError, "migration", "Convert", "convert "+t.From, err)
		}
		data[t.To] = converted
		if t.To != t.From {
			delete(data, t.From)
		}
	case TransformSplit:
		v, ok := data[t.From]
		if !ok {
			return nil
		}
		if t.Splitter == nil {
			return substrateerrors.New(substrateerrors.MigrationError, "migration", "Split", "no splitter for "+t.From)
		}
		parts, err := t.Splitter(v)
		if err != nil {
			return substrateerrors.Wrap(substrateerrors.MigrationError, "migration", "Split", "split "+t.From, err)
		}
		for _, field := range t.ToFields {
			if val, ok := parts[field]; ok {
				data[field] = val
			}
		}
		delete(data, t.From)
	case TransformMerge:
		values := make(map[string]any, len(t.FromFields))
		for _, f := range t.FromFields {
			if v, ok := data[f]; ok {
				values[f] = v
			}
		}
		if t.Merger == nil {
			return substrateerrors.New(substrateerrors.MigrationError, "migration", "Merge", "no merger for "+strings.Join(t.FromFields, ","))
		}
		merged, err := t.Merger(values)
		if err != nil {
			return substrateerrors.Wrap(substrateerrors.MigrationError, "migration", "Merge", "merge fields", err)
		}
		data[t.To] = merged
		for _, f := range t.FromFields {
			delete(data, f)
		}
	case TransformRemove:
		delete(data, t.Field)
	}
	return nil
}

// Inverse returns the transform that undoes t, when one exists. Rename
// is trivially reversible (swap From/To); the rest either discard
// information (Remove, Split, Merge), depend on a Converter with no
// declared inverse (Convert), or are idempotent no-ops to reverse
// (Default, Copy), so they report ok=false.
func (t Transform) Inverse() (Transform, bool) {
	switch t.Kind {
	case TransformRename:
		return Rename(t.To, t.From), true
	default:
		return Transform{}, false
	}
}

// StateTransformation is an ordered list of field transforms applied as
// one migration step's unit of work.
type StateTransformation struct {
	FromVersion string
	ToVersion   string
	Transforms  []Transform
}

// Apply runs every transform in order against data.
func (st StateTransformation) Apply(data map[string]any) error {
	for _, t := range st.Transforms {
		if err := t.Apply(data); err != nil {
			return err
		}
	}
	return nil
}

// Inverse returns the reverse transformation, applying each step's
// Inverse in reverse order. It reports ok=false as soon as any step
// lacks a defined inverse, since a partial reversal would silently
// leave the other fields incorrect.
func (st StateTransformation) Inverse() (StateTransformation, bool) {
	inv := StateTransformation{FromVersion: st.ToVersion, ToVersion: st.FromVersion}
	for i := len(st.Transforms) - 1; i >= 0; i-- {
		t, ok := st.Transforms[i].Inverse()
		if !ok {
			return StateTransformation{}, false
		}
		inv.Transforms = append(inv.Transforms, t)
	}
	return inv, true
}
