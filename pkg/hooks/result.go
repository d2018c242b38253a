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

import "time"

// Variant tags the kind of ResultPayload a hook returned, per §9's
// "tagged variants instead of inheritance" guidance.
type Variant string

const (
	VariantContinue Variant = "continue"
	VariantModified Variant = "modified"
	VariantCancel   Variant = "cancel"
	VariantRedirect Variant = "redirect"
	VariantReplace  Variant = "replace"
	VariantRetry    Variant = "retry"
	VariantFork     Variant = "fork"
	VariantCache    Variant = "cache"
	VariantSkipped  Variant = "skipped"
)

// Result is a tagged union over the result taxonomy of §4.2. Exactly the
// fields relevant to Variant are populated; the rest are zero.
type Result struct {
	Variant Variant

	// Modified / Replace
	Data map[string]any

	// Cancel
	Reason string

	// Redirect
	Target string

	// Retry
	RetryDelay       time.Duration
	RetryMaxAttempts int

	// Fork
	ParallelOperations []string

	// Cache
	CacheKey string
	CacheTTL time.Duration
}

// Continue is the default, pass-through result.
func Continue() Result { return Result{Variant: VariantContinue} }

// Modified replaces the operation's input/output and continues.
func Modified(data map[string]any) Result { return Result{Variant: VariantModified, Data: data} }

// Cancel aborts the surrounding operation with reason.
func Cancel(reason string) Result { return Result{Variant: VariantCancel, Reason: reason} }

// Redirect sends the operation to another component.
func Redirect(target string) Result { return Result{Variant: VariantRedirect, Target: target} }

// Replace substitutes the result without running the underlying op.
func Replace(data map[string]any) Result { return Result{Variant: VariantReplace, Data: data} }

// Retry requests a retry of the surrounding operation.
func Retry(delay time.Duration, maxAttempts int) Result {
	return Result{Variant: VariantRetry, RetryDelay: delay, RetryMaxAttempts: maxAttempts}
}

// Fork fans out the declared sub-operations.
func Fork(ops []string) Result { return Result{Variant: VariantFork, ParallelOperations: ops} }

// Cache caches the current result under key for ttl.
func Cache(key string, ttl time.Duration) Result {
	return Result{Variant: VariantCache, CacheKey: key, CacheTTL: ttl}
}

// Skipped marks that the hook declined to run; purely informational.
func Skipped(reason string) Result { return Result{Variant: VariantSkipped, Reason: reason} }

// IsError reports whether Variant represents an error outcome for metrics
// purposes. A Cancel is not a Go error (per §7) but it does count as a
// non-success outcome in the metrics histogram.
func (r Result) IsError() bool { return r.Variant == VariantCancel }
