// Copyright © 2026 MixSeek Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package mixerr defines the error taxonomy shared by every kernel
// component. Each failure carries a Kind so the round controller can decide
// whether it is fatal to the round, fatal to the team, or retryable.
package mixerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	// KindConfiguration covers missing required fields, invalid values and
	// unresolvable references. Surfaced at startup; prevents execution.
	KindConfiguration Kind = "configuration"

	// KindAuthentication covers missing or rejected provider credentials.
	// Never retried, never substituted with a mock.
	KindAuthentication Kind = "authentication"

	// KindProviderTransient covers 429/5xx/network/read-timeout provider
	// failures. Retried per policy.
	KindProviderTransient Kind = "provider_transient"

	// KindProviderPermanent covers 4xx schema errors and unsupported
	// capabilities. Fails the current phase.
	KindProviderPermanent Kind = "provider_permanent"

	// KindEvaluation means the judge LLM returned malformed or out-of-range
	// scores after retries. Fails the round.
	KindEvaluation Kind = "evaluation"

	// KindJudgment means the continuation judge was unavailable or
	// malformed. Fails the team.
	KindJudgment Kind = "judgment"

	// KindStoreTransient covers transient store read/write errors.
	KindStoreTransient Kind = "store_transient"

	// KindStorePermanent covers constraint violations and corruption.
	KindStorePermanent Kind = "store_permanent"

	// KindTimeout means a deadline expired. Fails the scope it applied to.
	KindTimeout Kind = "timeout"

	// KindCancelled is propagated cancellation; the clean exit path.
	KindCancelled Kind = "cancelled"
)

// Error is a classified error with optional provider/operation context.
type Error struct {
	Kind     Kind
	Op       string // operation that failed, e.g. "leader.run", "store.save_aggregation"
	Provider string // LLM provider name where relevant
	Message  string
	Err      error // wrapped cause
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Provider != "" {
		b.WriteString(" (")
		b.WriteString(e.Provider)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap wraps err with a kind and operation.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrapf wraps err with a kind, operation and formatted message.
func Wrapf(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err. Context cancellation and deadline
// expiry are classified even when the error never passed through this
// package. Unclassified errors report KindProviderPermanent's zero
// counterpart: the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsTransient reports whether err may be retried under the transient retry
// policies (provider or store).
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindProviderTransient, KindStoreTransient:
		return true
	}
	return false
}

// Terminal reports whether err must not be retried: cancellation,
// timeouts, authentication failures and permanent errors.
func Terminal(err error) bool {
	switch KindOf(err) {
	case KindCancelled, KindTimeout, KindAuthentication,
		KindProviderPermanent, KindStorePermanent, KindConfiguration:
		return true
	}
	return false
}
