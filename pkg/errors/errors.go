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

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors shared across modules.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Registration rejections. Each maps to one precondition of the
// enrollment engine; codes are stable for API consumers.
var (
	ErrNoActivePeriod       = New("NO_ACTIVE_PERIOD", http.StatusPreconditionFailed, "no active academic period")
	ErrRegistrationClosed   = New("REGISTRATION_CLOSED", http.StatusPreconditionFailed, "registration is closed for the active period")
	ErrAlreadyEnrolled      = New("ALREADY_ENROLLED", http.StatusConflict, "student already enrolled in course this period")
	ErrAlreadyPassed        = New("ALREADY_PASSED", http.StatusConflict, "course already passed")
	ErrPrerequisiteUnmet    = New("PREREQUISITE_UNMET", http.StatusPreconditionFailed, "prerequisite not satisfied")
	ErrCreditCapExceeded    = New("CREDIT_CAP_EXCEEDED", http.StatusPreconditionFailed, "credit load cap exceeded")
	ErrScheduleConflict     = New("SCHEDULE_CONFLICT", http.StatusConflict, "schedule conflict")
	ErrCommunityServiceGate = New("COMMUNITY_SERVICE_GATE_UNMET", http.StatusPreconditionFailed, "community service credit requirement unmet")
)

// Grading and period rejections.
var (
	ErrInvalidGradeValue        = New("INVALID_GRADE_VALUE", http.StatusBadRequest, "grade value out of range")
	ErrGradeWriteRejected       = New("GRADE_WRITE_REJECTED", http.StatusPreconditionFailed, "grade write rejected")
	ErrPeriodActivationRejected = New("PERIOD_ACTIVATION_REJECTED", http.StatusPreconditionFailed, "period activation rejected")
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

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
