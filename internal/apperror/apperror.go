package apperror

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error is a typed failure carrying the HTTP status and a stable code the
// handlers can surface to callers.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so wrapped copies created with Wrap still satisfy
// errors.Is against the sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil || e == nil {
		return false
	}
	return e.Code == t.Code
}

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// Wrap returns a copy of base carrying cause.
func Wrap(base *Error, cause error) *Error {
	return &Error{Status: base.Status, Code: base.Code, Message: base.Message, Err: cause}
}

var (
	ErrNotFound            = New(fiber.StatusNotFound, "not_found", "resource not found")
	ErrInvalidInput        = New(fiber.StatusBadRequest, "invalid_input", "invalid input")
	ErrInvalidState        = New(fiber.StatusConflict, "invalid_state", "operation not allowed in current state")
	ErrAlreadyActive       = New(fiber.StatusConflict, "already_active", "candidate already has an active interview session")
	ErrSystemBusy          = New(fiber.StatusServiceUnavailable, "system_busy", "too many interviews in progress, try again shortly")
	ErrDuplicateStage      = New(fiber.StatusConflict, "duplicate_stage", "stage type already recorded for this recording")
	ErrNotEligible         = New(fiber.StatusUnprocessableEntity, "not_eligible", "candidate does not meet onboarding criteria")
	ErrAlreadyOnboarded    = New(fiber.StatusConflict, "already_onboarded", "candidate already onboarded")
	ErrProviderUnavailable = New(fiber.StatusBadGateway, "provider_unavailable", "conversation provider request failed")
)

// StatusOf maps any error to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return fiber.StatusInternalServerError
}

// CodeOf returns the stable code of a typed error or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return "internal"
}
