package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation marks input rejected before any mutation takes place.
var ErrValidation = errors.New("validation failed")

// Validate checks the fields required to create an event.
func (in EventInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Start.IsZero() {
		return fmt.Errorf("%w: start is required", ErrValidation)
	}
	if in.End.IsZero() {
		return fmt.Errorf("%w: end is required", ErrValidation)
	}
	return validateAttendees(in.Attendees)
}

// Validate checks the fields present in the patch.
func (p EventPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if p.Start != nil && p.Start.IsZero() {
		return fmt.Errorf("%w: start must not be zero", ErrValidation)
	}
	if p.End != nil && p.End.IsZero() {
		return fmt.Errorf("%w: end must not be zero", ErrValidation)
	}
	if p.Attendees != nil {
		return validateAttendees(*p.Attendees)
	}
	return nil
}

func validateAttendees(attendees []Attendee) error {
	for i, a := range attendees {
		if strings.TrimSpace(a.Email) == "" {
			return fmt.Errorf("%w: attendee %d has no email", ErrValidation, i)
		}
	}
	return nil
}
