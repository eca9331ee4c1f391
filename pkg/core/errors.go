package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorCode represents specific error conditions in the engine
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// A state or event name is empty
	ErrCodeInvalidName
	// An event is both handled and deferred by the same state
	ErrCodeConflictingRegistration
	// No state on the active path handled the event
	ErrCodeUnhandledEvent
	// A transition was constructed with inconsistent arguments
	ErrCodeInvalidTransition
	// The node hierarchy is malformed
	ErrCodeInvalidHierarchy
	// Registration attempted after the state was sealed
	ErrCodeRegistrationClosed
)

// InvalidNameError is returned when a state or event is created with an empty name.
type InvalidNameError struct {
	// Subject is "state" or "event".
	Subject string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid %s name: name must not be empty", e.Subject)
}

// ConflictingRegistrationError is returned when an event name would be both
// handled and deferred by the same state.
type ConflictingRegistrationError struct {
	State string
	Event string
	// Existing is the registration that is already present: "handler" or "deferral".
	Existing string
}

func (e *ConflictingRegistrationError) Error() string {
	return fmt.Sprintf("conflicting registration on state '%s': event '%s' already has a %s",
		e.State, e.Event, e.Existing)
}

// UnhandledReason tells why an event ended up unhandled.
type UnhandledReason int

const (
	// ReasonNoHandler means no state on the active path handles or defers the event.
	ReasonNoHandler UnhandledReason = iota
	// ReasonGuardRejected means a state handles the event but every guard failed.
	ReasonGuardRejected
)

func (r UnhandledReason) String() string {
	switch r {
	case ReasonNoHandler:
		return "no handler"
	case ReasonGuardRejected:
		return "guard rejected"
	default:
		return fmt.Sprintf("UnhandledReason(%d)", int(r))
	}
}

// UnhandledEventError describes an event that no transition consumed. It is
// reported through Outcome.Unhandled and never returned by Dispatch.
type UnhandledEventError struct {
	Event string
	// State is the active leaf for ReasonNoHandler and the handling state for
	// ReasonGuardRejected.
	State  string
	Reason UnhandledReason
}

func (e *UnhandledEventError) Error() string {
	return fmt.Sprintf("event '%s' unhandled in state '%s': %s", e.Event, e.State, e.Reason)
}

// InvalidTransitionError is returned when a transition cannot be constructed.
type InvalidTransitionError struct {
	Source      string
	Destination string
	Reason      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition [%s->%s]: %s", e.Source, e.Destination, e.Reason)
}

// HierarchyError reports a malformed node hierarchy.
type HierarchyError struct {
	Node   string
	Reason string
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("hierarchy error at '%s': %s", e.Node, e.Reason)
}

// RegistrationClosedError is returned when handlers or deferrals are added to
// a state whose machine is already running.
type RegistrationClosedError struct {
	State string
	Event string
}

func (e *RegistrationClosedError) Error() string {
	return fmt.Sprintf("state '%s' is sealed: cannot register event '%s'", e.State, e.Event)
}

// IsInvalidNameError checks if an error is an InvalidNameError
func IsInvalidNameError(err error) bool {
	var target *InvalidNameError
	return errors.As(err, &target)
}

// IsConflictingRegistrationError checks if an error is a ConflictingRegistrationError
func IsConflictingRegistrationError(err error) bool {
	var target *ConflictingRegistrationError
	return errors.As(err, &target)
}

// IsUnhandledEventError checks if an error is an UnhandledEventError
func IsUnhandledEventError(err error) bool {
	var target *UnhandledEventError
	return errors.As(err, &target)
}

// IsInvalidTransitionError checks if an error is an InvalidTransitionError
func IsInvalidTransitionError(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

// IsHierarchyError checks if an error is a HierarchyError
func IsHierarchyError(err error) bool {
	var target *HierarchyError
	return errors.As(err, &target)
}

// IsRegistrationClosedError checks if an error is a RegistrationClosedError
func IsRegistrationClosedError(err error) bool {
	var target *RegistrationClosedError
	return errors.As(err, &target)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	switch {
	case err == nil:
		return ErrCodeNone
	case IsInvalidNameError(err):
		return ErrCodeInvalidName
	case IsConflictingRegistrationError(err):
		return ErrCodeConflictingRegistration
	case IsUnhandledEventError(err):
		return ErrCodeUnhandledEvent
	case IsInvalidTransitionError(err):
		return ErrCodeInvalidTransition
	case IsHierarchyError(err):
		return ErrCodeInvalidHierarchy
	case IsRegistrationClosedError(err):
		return ErrCodeRegistrationClosed
	default:
		return ErrCodeNone
	}
}
