package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Reason is the machine-readable code attached to every failed operation.
type Reason string

const (
	ReasonValidationFailed    Reason = "validation_failed"
	ReasonDuplicateBooking    Reason = "duplicate_booking"
	ReasonCapacityExceeded    Reason = "capacity_exceeded"
	ReasonNotFound            Reason = "not_found"
	ReasonStorageUnavailable  Reason = "storage_unavailable"
	ReasonConcurrencyConflict Reason = "concurrency_conflict"
)

// ValidationError lists the offending input fields and what is wrong with each.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError from field/message pairs.
func NewValidationError(kv ...string) *ValidationError {
	fields := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Reason() Reason { return ReasonValidationFailed }

// DuplicateBookingError is returned when the duplicate policy forbids a second
// booking by the same user for the same event.
type DuplicateBookingError struct {
	UserID  string
	EventID string
}

func (e *DuplicateBookingError) Error() string {
	return "you have already booked this event"
}

func (e *DuplicateBookingError) Reason() Reason { return ReasonDuplicateBooking }

// CapacityExceededError carries the number of seats actually left at decision time.
type CapacityExceededError struct {
	EventID   string
	Requested int
	Remaining int
}

func (e *CapacityExceededError) Error() string {
	if e.Remaining <= 0 {
		return "event is sold out"
	}
	seats := "seats"
	if e.Remaining == 1 {
		seats = "seat"
	}
	return fmt.Sprintf("only %d %s left, requested %d", e.Remaining, seats, e.Requested)
}

func (e *CapacityExceededError) Reason() Reason { return ReasonCapacityExceeded }

// NotFoundError reports a missing event, booking or user.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

func (e *NotFoundError) Reason() Reason { return ReasonNotFound }

// TransientStorageError wraps a timeout or unavailable backend. Nothing was
// committed, so the request can be retried with backoff.
type TransientStorageError struct {
	Op  string
	Err error
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("%s: storage temporarily unavailable: %v", e.Op, e.Err)
}

func (e *TransientStorageError) Unwrap() error { return e.Err }

func (e *TransientStorageError) Reason() Reason { return ReasonStorageUnavailable }

// ConcurrencyConflictError means a concurrent writer won the race for the
// event. The caller should re-read remaining capacity before retrying.
type ConcurrencyConflictError struct {
	EventID string
	Err     error
}

func (e *ConcurrencyConflictError) Error() string {
	return "booking lost a concurrent update, check remaining seats and retry"
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }

func (e *ConcurrencyConflictError) Reason() Reason { return ReasonConcurrencyConflict }

type reasoner interface {
	Reason() Reason
}

// ReasonOf extracts the reason code from err, if it carries one.
func ReasonOf(err error) (Reason, bool) {
	var r reasoner
	if errors.As(err, &r) {
		return r.Reason(), true
	}
	return "", false
}

// IsRejection reports whether err is an expected business outcome rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	reason, ok := ReasonOf(err)
	if !ok {
		return false
	}
	switch reason {
	case ReasonValidationFailed, ReasonDuplicateBooking, ReasonCapacityExceeded, ReasonNotFound:
		return true
	}
	return false
}

// IsRetryable reports whether the same request may succeed if sent again.
func IsRetryable(err error) bool {
	reason, ok := ReasonOf(err)
	return ok && (reason == ReasonStorageUnavailable || reason == ReasonConcurrencyConflict)
}
