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

// Package errors defines the shared error taxonomy used across every layer
// of the runtime substrate. Every component returns a *Error carrying one
// of the Kind values below so that callers can branch on category rather
// than string-matching messages.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind categorizes a failure the way callers are expected to react to it.
type Kind string

const (
	Validation        Kind = "validation"
	Configuration     Kind = "configuration"
	InvalidTransition Kind = "invalid_transition"
	RecoveryExhausted Kind = "recovery_exhausted"
	Timeout           Kind = "timeout"
	RateLimit         Kind = "rate_limit"
	Storage           Kind = "storage"
	Network           Kind = "network"
	Provider          Kind = "provider"
	MigrationError    Kind = "migration_error"
	AccessDenied      Kind = "access_denied"
	Workflow          Kind = "workflow"
	NotFound          Kind = "not_found"
	Internal          Kind = "internal"
)

// Error is the structured error type returned by substrate components.
// It is deliberately small: a Kind for programmatic branching, a
// Component/Op pair for tracing the failure back to its origin, a
// human-readable Message, and an optional wrapped cause.
type Error struct {
	Kind      Kind
	Component string
	Op        string
	Message   string
	Err       error

	// RetryAfter is only meaningful for Kind == RateLimit.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	prefix := e.Component
	if e.Op != "" {
		prefix = fmt.Sprintf("%s.%s", e.Component, e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, prefix, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, errors.New(Kind)) style comparisons against a
// sentinel created with the same Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs a *Error without a wrapped cause.
func New(kind Kind, component, op, message string) *Error {
	return &Error{Kind: kind, Component: component, Op: op, Message: message}
}

// Wrap constructs a *Error wrapping an underlying cause.
func Wrap(kind Kind, component, op, message string, err error) *Error {
	return &Error{Kind: kind, Component: component, Op: op, Message: message, Err: err}
}

// WithRetryAfter attaches a retry-after duration, used by RateLimit errors.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// KindOf extracts the Kind from err, returning Internal if err does not
// carry one of our structured errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Internal
}

// Is reports whether err is, or wraps, a *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
