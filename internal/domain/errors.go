package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for lifecycle rule violations.
var (
	ErrInvalidID         = errors.New("invalid id")
	ErrValidation        = errors.New("validation failed")
	ErrAlreadyCompleted  = errors.New("item already completed")
	ErrPostponementLimit = errors.New("postponement limit reached")
	ErrBlocked           = errors.New("item is blocked")
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

// Violation names one failed field constraint.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// String renders the violation as "field: message".
func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// ValidationError carries every violated constraint of a rejected input.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

// NewValidationError returns nil when violations is empty.
func NewValidationError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: append([]Violation(nil), violations...)}
}

// Error implements error.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Has reports whether any violation targets field.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// PostponementLimitError reports an exhausted postponement budget.
type PostponementLimitError struct {
	ItemID string
	Count  int
	Max    int
}

// Error implements error.
func (e *PostponementLimitError) Error() string {
	return fmt.Sprintf("%s: item %s has %d of %d postponements", ErrPostponementLimit, e.ItemID, e.Count, e.Max)
}

// Unwrap lets errors.Is match ErrPostponementLimit.
func (e *PostponementLimitError) Unwrap() error {
	return ErrPostponementLimit
}

// BlockedError lists the incomplete blockers holding an item.
type BlockedError struct {
	ItemID     string
	BlockerIDs []string
}

// Error implements error.
func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: item %s waits on %s", ErrBlocked, e.ItemID, strings.Join(e.BlockerIDs, ", "))
}

// Unwrap lets errors.Is match ErrBlocked.
func (e *BlockedError) Unwrap() error {
	return ErrBlocked
}
