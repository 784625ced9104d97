package models

import (
	"slices"
	"time"
)

// Event represents a calendar event as exchanged with the remote event service
// and persisted in the local cache.
type Event struct {
	ID           string     `json:"id"`                     // Opaque identifier, unique within a snapshot
	Title        string     `json:"title"`                  // Display title, never empty
	Description  string     `json:"description,omitempty"`  // Free-form details
	Start        time.Time  `json:"start"`                  // Start of the event
	End          time.Time  `json:"end"`                    // End of the event (expected, not enforced, >= Start)
	Location     string     `json:"location,omitempty"`     // Room or address
	ExternalLink string     `json:"externalLink,omitempty"` // Generated meeting link, if any
	Attendees    []Attendee `json:"attendees,omitempty"`    // Ordered attendee list
}

// Attendee is a single invitee of an event.
type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	e.Attendees = slices.Clone(e.Attendees)
	return e
}

// CloneEvents deep copies a snapshot. A nil input yields an empty, non-nil slice
// so that callers always serialize "[]" rather than "null".
func CloneEvents(events []Event) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}

// EventInput carries the fields of a new event. The id is always assigned by
// whoever persists the event.
type EventInput struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	Location     string     `json:"location,omitempty"`
	ExternalLink string     `json:"externalLink,omitempty"`
	Attendees    []Attendee `json:"attendees,omitempty"`

	// CreateExternalLink asks the remote service to generate a meeting link.
	CreateExternalLink bool `json:"createExternalLink,omitempty"`
}

// ToEvent builds an event with the given id from the input.
func (in EventInput) ToEvent(id string) Event {
	return Event{
		ID:           id,
		Title:        in.Title,
		Description:  in.Description,
		Start:        in.Start,
		End:          in.End,
		Location:     in.Location,
		ExternalLink: in.ExternalLink,
		Attendees:    slices.Clone(in.Attendees),
	}
}

// EventPatch is a partial update. Nil fields are left untouched.
type EventPatch struct {
	Title        *string     `json:"title,omitempty"`
	Description  *string     `json:"description,omitempty"`
	Start        *time.Time  `json:"start,omitempty"`
	End          *time.Time  `json:"end,omitempty"`
	Location     *string     `json:"location,omitempty"`
	ExternalLink *string     `json:"externalLink,omitempty"`
	Attendees    *[]Attendee `json:"attendees,omitempty"`
}

// Apply merges the patch into e and returns the result. e is not modified.
func (p EventPatch) Apply(e Event) Event {
	out := e.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Start != nil {
		out.Start = *p.Start
	}
	if p.End != nil {
		out.End = *p.End
	}
	if p.Location != nil {
		out.Location = *p.Location
	}
	if p.ExternalLink != nil {
		out.ExternalLink = *p.ExternalLink
	}
	if p.Attendees != nil {
		out.Attendees = slices.Clone(*p.Attendees)
	}
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p == EventPatch{}
}
