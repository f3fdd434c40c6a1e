// Package apperr holds the error categories shared by every service.
// Domain errors wrap one of these so callers can branch with errors.Is
// without knowing the concrete sentinel.
package apperr

import "errors"

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrExternalDependency  = errors.New("external dependency error")
)

func Validation(msg string) error {
	return &categorized{msg: msg, category: ErrValidation}
}

func NotFound(msg string) error {
	return &categorized{msg: msg, category: ErrNotFound}
}

func Conflict(msg string) error {
	return &categorized{msg: msg, category: ErrConflict}
}

type categorized struct {
	msg      string
	category error
}

func (e *categorized) Error() string { return e.msg }

func (e *categorized) Unwrap() error { return e.category }
