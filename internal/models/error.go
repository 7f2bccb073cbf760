package models

import "strings"

// BaseError is the body the invitation API returns with a non-2xx status.
type BaseError struct {
	Error   string `json:"error,omitempty" example:"not found"`
	Message string `json:"message,omitempty" example:"Invitation not found"`
}

// Text returns the most human readable part of the error body.
func (e BaseError) Text() string {
	if m := strings.TrimSpace(e.Message); m != "" {
		return m
	}
	return strings.TrimSpace(e.Error)
}

// ValidationError is returned in the body of an HTTP 400 or 422
type ValidationError struct {
	BaseError
	Field  string              `json:"field,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func NewFieldValidationError(field string, reason string) ValidationError {
	return ValidationError{
		Field: field,
		BaseError: BaseError{
			Error:   "invalid data in field",
			Message: reason,
		},
		Errors: map[string][]string{field: {reason}},
	}
}

// NotFoundError is returned in the body of an HTTP 404
type NotFoundError struct {
	BaseError
	Resource string `json:"resource,omitempty"`
}

func NewNotFoundError(resource string) NotFoundError {
	return NotFoundError{
		Resource: resource,
		BaseError: BaseError{
			Error: "not found",
		},
	}
}

// NotAllowedError is returned in the body of an HTTP 403
type NotAllowedError struct {
	BaseError
	Reason string `json:"reason,omitempty"`
}

func NewNotAllowedError(reason string) NotAllowedError {
	return NotAllowedError{
		Reason: reason,
		BaseError: BaseError{
			Error:   "operation not allowed",
			Message: reason,
		},
	}
}

// GoneError is returned in the body of an HTTP 410
type GoneError struct {
	BaseError
}

func NewGoneError(message string) GoneError {
	return GoneError{
		BaseError: BaseError{
			Error:   "gone",
			Message: message,
		},
	}
}
