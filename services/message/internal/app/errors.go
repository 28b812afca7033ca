package app

import "errors"

var (
	ErrNotFound     = errors.New("message not found")
	ErrForbidden    = errors.New("message forbidden")
	ErrTextRequired = errors.New("text required")
	ErrTextTooLong  = errors.New("text too long")
	// ErrStorage wraps failures of the underlying store.
	ErrStorage = errors.New("storage failure")
	// ErrUnauthenticated covers invalid tokens and unknown or disabled users.
	ErrUnauthenticated = errors.New("unauthenticated")
)
