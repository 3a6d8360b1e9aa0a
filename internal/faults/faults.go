// Package faults defines the shared error taxonomy for the generation engine.
// Components raise only these kinds for expected failures; callers classify
// with errors.Is and decide recovery locally.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable: credentials missing or circuit-broken.
	// Recovered by the router selecting a fallback provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderTransient: retryable upstream failure (timeout, 5xx, 429).
	ErrProviderTransient = errors.New("provider transient failure")

	// ErrProviderFatal: malformed response or authentication failure.
	ErrProviderFatal = errors.New("provider fatal failure")

	// ErrSchemaInvalid: manifest or JSON contract violation.
	ErrSchemaInvalid = errors.New("schema invalid")

	// ErrPatchInapplicable: AST patch cannot be applied to the target.
	ErrPatchInapplicable = errors.New("patch inapplicable")

	// ErrValidationFailed: at least one Error-severity validation issue.
	ErrValidationFailed = errors.New("validation failed")

	// ErrPreviewBuildFailed: container build or health probe failure.
	ErrPreviewBuildFailed = errors.New("preview build failed")

	// ErrResourceExhausted: no free ports, preview ceiling hit, disk full.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrProjectNotFound: the registry has no project with that id.
	ErrProjectNotFound = errors.New("project not found")
)

// Wrap builds an error of the given fault kind with a formatted message, so
// errors.Is(err, kind) holds. It carries no underlying cause; use WrapErr
// to keep one reachable through Unwrap.
func Wrap(kind error, format string, args ...interface{}) error {
	return &fault{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// WrapErr attaches kind to an underlying cause.
func WrapErr(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &fault{kind: kind, msg: cause.Error(), cause: cause}
}

type fault struct {
	kind  error
	msg   string
	cause error
}

func (f *fault) Error() string {
	return fmt.Sprintf("%s: %s", f.kind.Error(), f.msg)
}

func (f *fault) Is(target error) bool { return target == f.kind }

func (f *fault) Unwrap() error {
	if f.cause != nil {
		return f.cause
	}
	return f.kind
}

// Retryable reports whether an error is worth retrying on a different
// provider or after a backoff interval.
func Retryable(err error) bool {
	return errors.Is(err, ErrProviderTransient) || errors.Is(err, ErrProviderUnavailable)
}
