// Package errors defines application-wide sentinel errors. Services wrap
// them with fmt.Errorf("%w: ...") and handlers map them to HTTP statuses.
package errors

import "errors"

var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned for authentication failures.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks permission.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for invalid input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned for state conflicts, e.g. a login that is
	// already taken.
	ErrConflict = errors.New("resource state conflict")
)
