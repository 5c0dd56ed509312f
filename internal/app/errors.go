package app

import "errors"

// ErrNotFound and related errors describe store and runtime failures.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
