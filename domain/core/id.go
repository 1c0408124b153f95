package core

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// OutcomeID identifies one outcome record. IDs come from a process-wide
// monotonic counter starting at 0 and are never reused or reassigned.
type OutcomeID int64

var outcomeIDTracker atomic.Int64

// NextOutcomeID returns the next unique outcome identifier. Safe to call
// from multiple goroutines; uniqueness is the only ordering guarantee.
func NextOutcomeID() OutcomeID {
	return OutcomeID(outcomeIDTracker.Add(1) - 1)
}

// ID represents a service-layer identifier (analysis reports and the like)
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}
