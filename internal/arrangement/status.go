package arrangement

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned for a status change ValidTransitions does
// not allow.
var ErrInvalidTransition = errors.New("arrangement: invalid status transition")

// Status is the publication state of an arrangement.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusShared    Status = "SHARED"
	StatusConfirmed Status = "CONFIRMED"
)

// ValidTransitions defines allowed status transitions.
var ValidTransitions = map[Status][]Status{
	StatusDraft:     {StatusShared},
	StatusShared:    {StatusDraft, StatusConfirmed},
	StatusConfirmed: {},
}

// CheckTransition returns an error when from -> to is not allowed.
func CheckTransition(from, to Status) error {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w %s -> %s", ErrInvalidTransition, from, to)
}

// ReadOnly reports whether ordinary edits are refused in status s.
func (s Status) ReadOnly() bool {
	return s == StatusConfirmed
}

// Published reports whether the arrangement has been shared with singers.
func (s Status) Published() bool {
	return s == StatusShared || s == StatusConfirmed
}
