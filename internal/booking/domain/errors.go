package domain

import (
	"errors"
	"fmt"
	"time"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common domain error codes
const (
	ErrCodeSlotConflict        = "SLOT_CONFLICT"
	ErrCodeResourceUnavailable = "RESOURCE_UNAVAILABLE"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeTierMismatch        = "TIER_MISMATCH"
	ErrCodeDailyCapExceeded    = "DAILY_CAP_EXCEEDED"
	ErrCodeInstrumentExpired   = "INSTRUMENT_EXPIRED"
	ErrCodeInstrumentExhausted = "INSTRUMENT_EXHAUSTED"
	ErrCodeInvalidDuration     = "INVALID_DURATION"
	ErrCodeInvalidPlayerCount  = "INVALID_PLAYER_COUNT"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeLockTimeout         = "LOCK_TIMEOUT"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewSlotConflictError reports an overlapping live reservation with the
// conflicting window so callers can display a precise reason.
func NewSlotConflictError(resourceID string, conflictStart, conflictEnd time.Time) *DomainError {
	return &DomainError{
		Code:    ErrCodeSlotConflict,
		Message: "resource is already booked for the requested window",
		Details: fmt.Sprintf("resource %s busy %s - %s", resourceID,
			conflictStart.Format(time.RFC3339), conflictEnd.Format(time.RFC3339)),
	}
}

// NewResourceUnavailableError reports an inactive or under-maintenance resource
func NewResourceUnavailableError(resourceID, reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeResourceUnavailable,
		Message: "resource is not available for booking",
		Details: fmt.Sprintf("resource %s: %s", resourceID, reason),
	}
}

// NewInsufficientBalanceError reports missing credit hours
func NewInsufficientBalanceError(required, available float64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInsufficientBalance,
		Message: "credit instrument cannot cover requested hours",
		Details: fmt.Sprintf("required=%.1f, available=%.1f", required, available),
	}
}

// NewTierMismatchError reports an instrument not valid for the booking's price tier
func NewTierMismatchError(tier string, allowed []PriceTier) *DomainError {
	return &DomainError{
		Code:    ErrCodeTierMismatch,
		Message: "credit instrument is not valid for this price tier",
		Details: fmt.Sprintf("tier=%s, allowed=%v", tier, allowed),
	}
}

// NewDailyCapExceededError reports an exhausted per-day instrument allowance
func NewDailyCapExceededError(cap, usedToday, requested float64) *DomainError {
	return &DomainError{
		Code:    ErrCodeDailyCapExceeded,
		Message: "daily usage limit exceeded for this instrument",
		Details: fmt.Sprintf("cap=%.1f, used_today=%.1f, requested=%.1f", cap, usedToday, requested),
	}
}

// NewInstrumentExpiredError reports an instrument outside its validity window
func NewInstrumentExpiredError(instrumentID string, expiredAt time.Time) *DomainError {
	return &DomainError{
		Code:    ErrCodeInstrumentExpired,
		Message: "credit instrument has expired",
		Details: fmt.Sprintf("instrument %s expired at %s", instrumentID, expiredAt.Format(time.RFC3339)),
	}
}

// NewInstrumentExhaustedError reports an instrument with no hours left
func NewInstrumentExhaustedError(instrumentID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInstrumentExhausted,
		Message: "credit instrument has no remaining hours",
		Details: fmt.Sprintf("instrument %s", instrumentID),
	}
}

// NewInvalidDurationError reports a duration outside the allowed bounds
func NewInvalidDurationError(minutes, min, max int) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidDuration,
		Message: "booking duration is out of range",
		Details: fmt.Sprintf("duration=%dm, allowed=%dm-%dm", minutes, min, max),
	}
}

// NewInvalidPlayerCountError reports a player count outside the allowed bounds
func NewInvalidPlayerCountError(count, min, max int) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidPlayerCount,
		Message: "player count is out of range",
		Details: fmt.Sprintf("players=%d, allowed=%d-%d", count, min, max),
	}
}

// NewInvalidTransitionError reports a state machine violation
func NewInvalidTransitionError(from, to ReservationStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: "reservation state transition is not allowed",
		Details: fmt.Sprintf("from=%s, to=%s", from, to),
	}
}

// NewLockTimeoutError reports a bounded lock wait expiring; the booking
// attempt is a transient conflict and retryable by the caller.
func NewLockTimeoutError(resourceID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeLockTimeout,
		Message: "could not acquire resource lock, retry the booking",
		Details: fmt.Sprintf("resource %s", resourceID),
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: fmt.Sprintf("ID: %s", id),
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// GetDomainError extracts domain error from an error
func GetDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

// HasCode reports whether err is a DomainError with the given code
func HasCode(err error, code string) bool {
	de := GetDomainError(err)
	return de != nil && de.Code == code
}
