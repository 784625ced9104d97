package server

import (
	"slices"
	"sync"
	"time"

	"calstore/internal/models"

	"github.com/google/uuid"
)

const meetBaseURL = "https://meet.google.com/"

// Repository is the in-memory event table behind the service.
type Repository struct {
	mu     sync.RWMutex
	events []models.Event
	newID  func() string
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{
		events: []models.Event{},
		newID:  uuid.NewString,
	}
}

// Seed adds the demo meeting, starting one day after now.
func (r *Repository) Seed(now time.Time) models.Event {
	start := now.Add(24 * time.Hour).Truncate(time.Minute)
	e := models.Event{
		ID:           r.newID(),
		Title:        "Team Meeting",
		Description:  "Weekly team sync",
		Start:        start,
		End:          start.Add(time.Hour),
		Location:     "Conference Room A",
		ExternalLink: meetBaseURL + "abc-defg-hij",
		Attendees: []models.Attendee{
			{Email: "john@example.com", DisplayName: "John Doe"},
			{Email: "jane@example.com", DisplayName: "Jane Smith"},
		},
	}

	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return e.Clone()
}

// List returns a copy of every event in insertion order.
func (r *Repository) List() []models.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return models.CloneEvents(r.events)
}

// Create stores a new event. A meeting link is generated when requested,
// replacing any link in the input.
func (r *Repository) Create(in models.EventInput) models.Event {
	e := in.ToEvent(r.newID())
	if in.CreateExternalLink {
		e.ExternalLink = newMeetLink()
	}

	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return e.Clone()
}

// Update applies patch to id.
func (r *Repository) Update(id string, patch models.EventPatch) (models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Event{}, ErrNotFound
	}
	r.events[i] = patch.Apply(r.events[i])
	return r.events[i].Clone(), nil
}

// Delete removes id.
func (r *Repository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	r.events = slices.Delete(r.events, i, i+1)
	return nil
}

func (r *Repository) indexOf(id string) int {
	return slices.IndexFunc(r.events, func(e models.Event) bool { return e.ID == id })
}

// newMeetLink returns a link shaped like https://meet.google.com/abc-defg-hij.
func newMeetLink() string {
	u := uuid.New()
	code := make([]byte, 0, 12)
	for i, b := range u[:10] {
		if i == 3 || i == 7 {
			code = append(code, '-')
		}
		code = append(code, 'a'+b%26)
	}
	return meetBaseURL + string(code)
}
