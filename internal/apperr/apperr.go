// Package apperr defines the error taxonomy shared by all services.
// Repos and services wrap these sentinels with %w; the HTTP layer maps
// them to status codes.
package apperr

import "errors"

var (
	ErrValidation   = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
)
