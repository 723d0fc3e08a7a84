package models

import "errors"

// Error taxonomy shared by the engine and its gateways. Callers wrap these
// with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrUnavailable marks gateway failures (storage outage, driver errors).
	ErrUnavailable = errors.New("unavailable")
)
