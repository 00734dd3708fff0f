// Package svcerr defines the error taxonomy shared by the catalog, identity and interaction services.
package svcerr

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrValidation marks a missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced row that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a write rejected by a uniqueness constraint.
	ErrConflict = errors.New("conflict")
	// ErrForbidden marks an authenticated caller acting on a row it does not own.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized marks rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStore marks a persistence failure.
	ErrStore = errors.New("store failure")
)

// Error carries a stable "<operation>.<reason>" code, a kind sentinel and an optional cause.
type Error struct {
	code    string
	kind    error
	message string
	fields  []string
	err     error
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.err)
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// Code returns the operation-scoped error code.
func (e *Error) Code() string {
	return e.code
}

// Kind returns the taxonomy sentinel.
func (e *Error) Kind() error {
	return e.kind
}

// Message returns the human readable message.
func (e *Error) Message() string {
	return e.message
}

// Fields lists the offending input fields of a validation error.
func (e *Error) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Cause returns the wrapped diagnostic error, if any.
func (e *Error) Cause() error {
	return e.err
}

// New builds an Error of the given kind.
func New(kind error, operation, reason, message string, cause error) error {
	return &Error{
		code:    operation + "." + reason,
		kind:    kind,
		message: message,
		err:     cause,
	}
}

// Validation reports the offending fields; an empty message joins the field problems.
func Validation(operation, reason, message string, fields ...string) error {
	if message == "" {
		message = strings.Join(fields, ", ")
	}
	return &Error{
		code:    operation + "." + reason,
		kind:    ErrValidation,
		message: message,
		fields:  append([]string(nil), fields...),
	}
}

func NotFound(operation, reason, message string) error {
	return New(ErrNotFound, operation, reason, message, nil)
}

func Conflict(operation, reason, message string, cause error) error {
	return New(ErrConflict, operation, reason, message, cause)
}

func Forbidden(operation, reason, message string) error {
	return New(ErrForbidden, operation, reason, message, nil)
}

func Unauthorized(operation, reason, message string) error {
	return New(ErrUnauthorized, operation, reason, message, nil)
}

// Store wraps a persistence failure.
func Store(operation, reason string, cause error) error {
	return New(ErrStore, operation, reason, "store operation failed", cause)
}

// As extracts the *Error from an error chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsDuplicateKey reports whether err is a unique constraint violation from any supported driver.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") ||
		strings.Contains(message, "duplicate key") ||
		strings.Contains(message, "duplicate entry")
}
