package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones and wraps of a
// predefined error still match it through errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrRateLimited  = New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests, slow down")
)

// Slot and booking errors.
var (
	ErrInvalidSlotBoundary        = New("INVALID_SLOT_BOUNDARY", http.StatusBadRequest, "start time is not on the slot grid")
	ErrInvalidMeetingMode         = New("INVALID_MEETING_MODE", http.StatusBadRequest, "meeting mode must be online, in_person or both")
	ErrCancellationReasonRequired = New("CANCELLATION_REASON_REQUIRED", http.StatusBadRequest, "a cancellation reason is required")
	ErrAlreadyBooked              = New("ALREADY_BOOKED", http.StatusConflict, "this slot has already been booked")
	ErrDuplicateDailyBooking      = New("DUPLICATE_DAILY_BOOKING", http.StatusConflict, "you already have a booking on this date")
	ErrEntryHasActiveBooking      = New("ENTRY_HAS_ACTIVE_BOOKING", http.StatusConflict, "slot has an active booking; cancel it first")
	ErrSlotOverlap                = New("SLOT_OVERLAP", http.StatusConflict, "slot overlaps another open slot")
	ErrEntryNotFound              = New("ENTRY_NOT_FOUND", http.StatusNotFound, "availability slot not found")
	ErrBookingNotFound            = New("BOOKING_NOT_FOUND", http.StatusNotFound, "booking not found")
	ErrLockTimeout                = New("LOCK_TIMEOUT", http.StatusServiceUnavailable, "slot is busy, try again")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// IsConflict reports whether err is one of the legitimate concurrent-use outcomes.
func IsConflict(err error) bool {
	e := FromError(err)
	return e != nil && e.Status == http.StatusConflict
}
