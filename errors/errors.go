// Package errors holds the sentinel error type used across the module and
// thin helpers over github.com/cockroachdb/errors for wrapping and marking.
package errors

import (
	crdberrors "github.com/cockroachdb/errors"
)

type Error string

func (e Error) Error() string { return string(e) }

// ErrValidation marks failures caused by caller input. Such failures never
// reach the log or a heap file.
const ErrValidation = Error("validation failed")

// Validation marks err as a validation failure.
func Validation(err error) error {
	return crdberrors.Mark(err, ErrValidation)
}

func Validationf(format string, args ...interface{}) error {
	return crdberrors.Mark(crdberrors.Newf(format, args...), ErrValidation)
}

// IsValidation reports whether err (or anything it wraps) is a validation failure.
// Everything else returned by storage operations is an I/O or corruption failure.
func IsValidation(err error) bool {
	return err != nil && crdberrors.Is(err, ErrValidation)
}

func New(msg string) error { return crdberrors.New(msg) }

func Newf(format string, args ...interface{}) error { return crdberrors.Newf(format, args...) }

func Wrap(err error, msg string) error { return crdberrors.Wrap(err, msg) }

func Wrapf(err error, format string, args ...interface{}) error {
	return crdberrors.Wrapf(err, format, args...)
}

func Is(err, reference error) bool { return crdberrors.Is(err, reference) }

func As(err error, target interface{}) bool { return crdberrors.As(err, target) }

func CombineErrors(err, otherErr error) error { return crdberrors.CombineErrors(err, otherErr) }
