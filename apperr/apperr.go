// Package apperr defines the closed error taxonomy shared by the
// authentication flows and the processing pipelines. Callers branch on the
// error kind, never on message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the deterministic outcome categories.
type Kind string

const (
	// KindValidation marks malformed input; always the caller's fault.
	KindValidation Kind = "VALIDATION"
	// KindConflict marks a duplicate registration.
	KindConflict Kind = "CONFLICT"
	// KindAuth marks a bad or missing signature, or an invalid token.
	KindAuth Kind = "AUTH"
	// KindIntegrity marks a credential commitment mismatch or a missing
	// on-chain anchor. Integrity failures always fail closed.
	KindIntegrity Kind = "INTEGRITY"
	// KindDependency marks an external collaborator that is unreachable or
	// erroring. Pipeline dependency errors carry the stage they occurred at.
	KindDependency Kind = "DEPENDENCY"
	// KindNotFound marks a missing profile, cached artifact, or pointer.
	KindNotFound Kind = "NOT_FOUND"
)

// Error is a tagged error carrying structured context alongside the kind.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	// Stage is the pipeline stage at which a dependency error occurred,
	// zero when not applicable.
	Stage int `json:"stage,omitempty"`

	// Address is the wallet address the operation concerned, when known.
	Address string `json:"address,omitempty"`

	Cause error `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Validation creates a validation error.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// Conflict creates a duplicate-registration error.
func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// Auth creates an authentication error.
func Auth(message string, cause error) error {
	return &Error{Kind: KindAuth, Message: message, Cause: cause}
}

// Integrity creates an integrity-failure error for the given address.
func Integrity(message, address string) error {
	return &Error{Kind: KindIntegrity, Message: message, Address: address}
}

// Dependency creates a collaborator-failure error.
func Dependency(message string, cause error) error {
	return &Error{Kind: KindDependency, Message: message, Cause: cause}
}

// DependencyStage creates a collaborator-failure error tagged with the
// pipeline stage it occurred at.
func DependencyStage(stage int, message string, cause error) error {
	return &Error{Kind: KindDependency, Message: message, Stage: stage, Cause: cause}
}

// NotFound creates a missing-resource error.
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// KindOf extracts the kind from err, or KindDependency for untagged errors:
// anything that escapes the taxonomy came from an external collaborator.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindDependency
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// StageOf extracts the pipeline stage from err, zero if untagged.
func StageOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Stage
	}
	return 0
}
