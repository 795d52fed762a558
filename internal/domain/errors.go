package domain

import "fmt"

// ValidationError rejects malformed input before any state changes or network calls.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func Validation(msg string) error {
	return &ValidationError{msg: msg}
}

// ConflictError means the requested time is unavailable or overlaps a booking.
type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string {
	return e.msg
}

func Conflict(msg string) error {
	return &ConflictError{msg: msg}
}

// GuardViolation is a lifecycle transition refused because of payment or status rules.
type GuardViolation struct {
	Reason string
}

func (e *GuardViolation) Error() string {
	return e.Reason
}

func Guard(reason string) error {
	return &GuardViolation{Reason: reason}
}

// PersistenceError wraps a failed store or provider call after local state was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
