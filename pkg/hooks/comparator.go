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
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// DiffKind classifies the nature of one difference between two replayed
// executions.
type DiffKind string

const (
	DiffVariantMismatch     DiffKind = "VariantMismatch"
	DiffDataMismatch        DiffKind = "DataMismatch"
	DiffErrorMismatch       DiffKind = "ErrorMismatch"
	DiffCancellationMismatch DiffKind = "CancellationMismatch"
	DiffMultiple            DiffKind = "Multiple"
)

// Severity ranks how much a single difference should weigh against the
// overall similarity score.
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityMinor    Severity = "Minor"
	SeverityMajor    Severity = "Major"
	SeverityCritical Severity = "Critical"
)

// severityWeight is the per-severity contribution to the deduction
// formula of §4.2: score = max(0, 100 - Σ weight·10) / 100.
var severityWeight = map[Severity]float64{
	SeverityInfo:     0.1,
	SeverityMinor:    0.25,
	SeverityMajor:    0.5,
	SeverityCritical: 1.0,
}

// Difference is one field-level disagreement between two executions.
type Difference struct {
	Path     string
	Kind     DiffKind
	Severity Severity
	Left     any
	Right    any
}

// ComparisonReport is the full outcome of comparing two executions.
type ComparisonReport struct {
	Differences []Difference
	Similarity  float64 // 0..1
	OverallKind DiffKind
}

// ComparatorOptions configures a Comparator's sensitivity.
type ComparatorOptions struct {
	IgnorePaths          []string
	ArrayOrderInsensitive bool
	IgnoreTimestamps      bool
}

// Comparator diffs two recorded executions field by field using go-cmp,
// classifying and weighting each difference per §4.2.
type Comparator struct {
	opts ComparatorOptions
}

// NewComparator constructs a Comparator with opts.
func NewComparator(opts ComparatorOptions) *Comparator {
	return &Comparator{opts: opts}
}

// Compare diffs a (the baseline/original) against b (the replay).
func (c *Comparator) Compare(a, b payload) ComparisonReport {
	var diffs []Difference

	if a.Result.Variant != b.Result.Variant {
		diffs = append(diffs, Difference{
			Path: "result.variant", Kind: DiffVariantMismatch, Severity: SeverityCritical,
			Left: a.Result.Variant, Right: b.Result.Variant,
		})
	}

	cancelledA := a.Result.Variant == VariantCancel
	cancelledB := b.Result.Variant == VariantCancel
	if cancelledA != cancelledB {
		diffs = append(diffs, Difference{
			Path: "result.cancelled", Kind: DiffCancellationMismatch, Severity: SeverityCritical,
			Left: cancelledA, Right: cancelledB,
		})
	}

	opts := c.cmpOptions()
	if !cmp.Equal(a.Result.Data, b.Result.Data, opts...) {
		diffs = append(diffs, Difference{
			Path: "result.data", Kind: DiffDataMismatch, Severity: SeverityMajor,
			Left: a.Result.Data, Right: b.Result.Data,
		})
	}
	if !cmp.Equal(a.Context.Data, b.Context.Data, opts...) {
		diffs = append(diffs, Difference{
			Path: "context.data", Kind: DiffDataMismatch, Severity: SeverityMinor,
			Left: a.Context.Data, Right: b.Context.Data,
		})
	}

	if a.Result.Reason != b.Result.Reason {
		sev := SeverityMinor
		if cancelledA || cancelledB {
			sev = SeverityMajor
		}
		diffs = append(diffs, Difference{
			Path: "result.reason", Kind: DiffErrorMismatch, Severity: sev,
			Left: a.Result.Reason, Right: b.Result.Reason,
		})
	}

	return ComparisonReport{
		Differences: diffs,
		Similarity:  similarityScore(diffs),
		OverallKind: overallKind(diffs),
	}
}

func (c *Comparator) cmpOptions() []cmp.Option {
	var opts []cmp.Option
	if len(c.opts.IgnorePaths) > 0 {
		ignored := make(map[string]bool, len(c.opts.IgnorePaths))
		for _, p := range c.opts.IgnorePaths {
			ignored[p] = true
		}
		opts = append(opts, cmp.FilterPath(func(p cmp.Path) bool {
			return ignored[p.String()]
		}, cmp.Ignore()))
	}
	if c.opts.ArrayOrderInsensitive {
		opts = append(opts, cmpopts.SortSlices(func(a, b any) bool {
			return fmt.Sprint(a) < fmt.Sprint(b)
		}))
	}
	if c.opts.IgnoreTimestamps {
		opts = append(opts, cmp.FilterPath(func(p cmp.Path) bool {
			last := p.Last().String()
			return last == ".Timestamp" || last == ".CreatedAt" || last == ".RecordedAt"
		}, cmp.Ignore()))
	}
	return opts
}

func similarityScore(diffs []Difference) float64 {
	var deduction float64
	for _, d := range diffs {
		deduction += severityWeight[d.Severity] * 10
	}
	score := 100 - deduction
	if score < 0 {
		score = 0
	}
	return score / 100
}

func overallKind(diffs []Difference) DiffKind {
	if len(diffs) == 0 {
		return ""
	}
	if len(diffs) == 1 {
		return diffs[0].Kind
	}
	kinds := map[DiffKind]bool{}
	for _, d := range diffs {
		kinds[d.Kind] = true
	}
	if len(kinds) == 1 {
		for k := range kinds {
			return k
		}
	}
	return DiffMultiple
}

// sortedPaths returns the differences' paths in stable, sorted order —
// useful for deterministic test assertions and report rendering.
func sortedPaths(diffs []Difference) []string {
	paths := make([]string, len(diffs))
	for i, d := range diffs {
		paths[i] = d.Path
	}
	sort.Strings(paths)
	return paths
}
