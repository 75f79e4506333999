// SPDX-License-Identifier: MIT

// Package apperr classifies domain errors so transports can map them to status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the coarse classification of a domain error.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindLocked
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindLocked:
		return "locked"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Sentinel errors. Use errors.Is against these or against an *Error's Kind.
var (
	ErrInvalid      = &Error{Kind: KindInvalid, Msg: "invalid request"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Msg: "unauthorized"}
	ErrForbidden    = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrNotFound     = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict     = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrLocked       = &Error{Kind: KindLocked, Msg: "locked"}
	ErrRateLimited  = &Error{Kind: KindRateLimited, Msg: "too many requests"}
)

// Error is a classified error with a human readable message and optional field details.
type Error struct {
	Kind   Kind
	Msg    string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind so callers can compare against sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Invalid builds a validation error.
func Invalid(format string, args ...any) *Error {
	return New(KindInvalid, format, args...)
}

// NotFound builds a not-found error for the named entity.
func NotFound(entity string, id any) *Error {
	return New(KindNotFound, "%s %v not found", entity, id)
}

// Conflict builds a conflict error.
func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// Forbidden builds an authorization error.
func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

// Unauthorized builds an authentication error.
func Unauthorized(format string, args ...any) *Error {
	return New(KindUnauthorized, format, args...)
}

// WithField attaches a field-level detail and returns the receiver.
func (e *Error) WithField(field, msg string) *Error {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
	return e
}

// KindOf returns the Kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the safe public message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

// FieldsOf returns field details carried by err, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
