package models

import (
	"errors"
	"fmt"
)

// Domain specific errors for the planner step.
var (
	ErrNotFound           = errors.New("requested item not found")
	ErrValidation         = errors.New("validation failed")
	ErrNoStartingLocation = errors.New("starting location is not set")
	ErrAbusiveQuery       = errors.New("query contains only disallowed words")
	ErrEmptyQuery         = errors.New("query is empty")
	ErrClosed             = errors.New("planner session closed")
)

// ValidationError rejects user input before any backend call.
type ValidationError struct {
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %v", e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Reason}
}

// ServerError is an application-level error message returned by the
// recommendation backend in an otherwise successful response. Message is
// shown to the user verbatim.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// TransportError means the call itself failed: network, timeout, an open
// circuit or a non-2xx response without a parseable error body.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsServerError unwraps err into a ServerError when it is one.
func IsServerError(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsTransportError reports whether err is a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsValidationError reports whether err rejected user input.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
