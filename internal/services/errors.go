package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure so that callers can pick a recovery flow.
type Kind string

const (
	KindInternal              Kind = "internal"
	KindUnauthenticated       Kind = "unauthenticated"
	KindInvalidToken          Kind = "invalid_token"
	KindForbidden             Kind = "forbidden"
	KindNotFound              Kind = "not_found"
	KindValidation            Kind = "validation_error"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindWeakPassword          Kind = "weak_password"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
)

// Error is the error type returned by every service operation.
// Two Errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthenticated       = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrInvalidToken          = &Error{Kind: KindInvalidToken, Message: "invalid token"}
	ErrForbidden             = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation            = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrWeakPassword          = &Error{Kind: KindWeakPassword, Message: "password too short"}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken, Message: "invalid or expired reset token"}
)

func notFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func internal(op string, err error) error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// FieldErrors collects per-field validation messages.
type FieldErrors map[string]string

// Add records msg for field unless one is already present.
func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// Err returns a validation Error when any field failed, otherwise nil.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: f}
}

// KindOf extracts the Kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
