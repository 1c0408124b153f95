package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrLabelNotFound   = fmt.Errorf("%w: outcome label", ErrNotFound)
	ErrOutcomeNotFound = fmt.Errorf("%w: outcome", ErrNotFound)
	ErrStudyNotFound   = fmt.Errorf("%w: study", ErrNotFound)

	// Formula input errors
	ErrDomain      = errors.New("value outside formula domain")
	ErrMissingData = errors.New("pre-period data missing or incomplete")

	// Usage errors
	ErrPrecondition = errors.New("precondition violated")
)

// Error constructors with context
func NewDomainError(quantity string, value float64) error {
	return fmt.Errorf("%w: %s = %v", ErrDomain, quantity, value)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, resource, id)
}

func NewPreconditionError(reason string) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, reason)
}

// Error checking helpers
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsDomainError(err error) bool {
	return errors.Is(err, ErrDomain)
}

func IsMissingData(err error) bool {
	return errors.Is(err, ErrMissingData)
}

func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}
