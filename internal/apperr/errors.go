package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidBackend = errors.New("invalid backend")
	ErrNoBackend      = errors.New("no active backend")
)
