package models

import "errors"

// Error taxonomy shared by every service and adapter. Callers match with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnavailable       = errors.New("item unavailable")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrConflict          = errors.New("conflict")
	ErrStorage           = errors.New("storage failure")
	ErrUnauthenticated   = errors.New("unauthenticated")
)
