package domain

import (
	"errors"
	"fmt"
)

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConflictError signals a lost race (ledger lock busy, seat taken by a
// concurrent booking). Callers are expected to retry immediately.
type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// StateError signals that the target is in a state that makes the operation
// meaningless (halted or terminal trip). Retrying does not help.
type StateError struct {
	Resource string
	State    string
	Msg      string
}

func (e StateError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Resource != "" && e.State != "" {
		return fmt.Sprintf("%s is %s", e.Resource, e.State)
	}
	return "invalid state"
}

// TimeoutError signals that the operation exceeded its transaction bound.
// Like ConflictError it is retryable.
type TimeoutError struct {
	Op  string
	Err error
}

func (e TimeoutError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s timed out", e.Op)
	}
	return "operation timed out"
}

func (e TimeoutError) Unwrap() error { return e.Err }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsState(err error) bool {
	var target StateError
	return errors.As(err, &target)
}

func IsTimeout(err error) bool {
	var target TimeoutError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}

// IsRetryable reports whether the caller should retry the request as-is.
// Part of the public contract: conflict and timeout are expected under
// load and are not failures of the system.
func IsRetryable(err error) bool {
	return IsConflict(err) || IsTimeout(err)
}
