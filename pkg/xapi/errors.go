package xapi

import (
	"errors"
	"fmt"
)

// Base error kinds that can be checked with errors.Is().
var (
	// ErrInvalidURI is returned when a URI-valued field is assigned a value
	// that is not a well-formed absolute URI.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrInvalidArgument is returned when a required argument is missing or blank.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedData is returned when a JSON object does not have the shape
	// expected by the value object being parsed.
	ErrMalformedData = errors.New("malformed data")

	// ErrUnsupportedVersion is returned when a version string is not one of
	// the known xAPI versions.
	ErrUnsupportedVersion = errors.New("unsupported version")
)

// Error carries the operation and kind of an xAPI model error.
type Error struct {
	Op      string // e.g. "ParseURI", "Agent.FromJSON"
	Kind    error  // base kind for errors.Is()
	Message string
	Err     error // underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("xapi.%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("xapi.%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error, falling back to the kind.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both the kind and the cause.
func (e *Error) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

func newError(op string, kind error, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

func wrapError(op string, kind error, message string, err error) *Error {
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}

func malformed(op, format string, args ...any) *Error {
	return newError(op, ErrMalformedData, fmt.Sprintf(format, args...))
}

// IsValidation reports whether err is a construction-time validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidURI) || errors.Is(err, ErrInvalidArgument)
}

// IsMalformed reports whether err was raised while parsing wire data.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedData)
}
