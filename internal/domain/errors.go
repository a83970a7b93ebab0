package domain

import "errors"

// Callers match these with errors.Is; repositories and services wrap them
// with context.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrCapacityExceeded = errors.New("item limit reached for this list")
)
