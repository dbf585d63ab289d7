package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("conflict")
)
