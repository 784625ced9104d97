package store_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"calstore/internal/models"
	"calstore/internal/remote"
)

var (
	errUnauthorized = &remote.StatusError{Code: http.StatusUnauthorized, Message: "not connected"}
	errForbidden    = &remote.StatusError{Code: http.StatusForbidden, Message: "forbidden"}
	errServer       = &remote.StatusError{Code: http.StatusBadGateway, Message: "upstream down"}
	errNetwork      = &remote.TransportError{Op: "GET /api/google/events", Err: errors.New("connection refused")}
)

// fakeClient is an in-memory remote event service.
type fakeClient struct {
	mu sync.Mutex

	events []models.Event
	nextID int

	listErr       error
	createErr     error
	updateErr     error
	deleteErr     error
	disconnectErr error

	listCalls int

	// When gate is set, List announces itself on entered and blocks until a
	// value arrives on gate.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeClient) List(ctx context.Context) ([]models.Event, error) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	if err := ctx.Err(); err != nil {
		return nil, &remote.TransportError{Op: "GET /api/google/events", Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return models.CloneEvents(f.events), nil
}

func (f *fakeClient) Create(_ context.Context, in models.EventInput) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.Event{}, f.createErr
	}
	f.nextID++
	e := in.ToEvent(fmt.Sprintf("srv-%d", f.nextID))
	if in.CreateExternalLink {
		e.ExternalLink = "https://meet.google.com/abc-defg-hij"
	}
	f.events = append(f.events, e)
	return e.Clone(), nil
}

func (f *fakeClient) Update(_ context.Context, id string, patch models.EventPatch) (models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return models.Event{}, f.updateErr
	}
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i] = patch.Apply(f.events[i])
			return f.events[i].Clone(), nil
		}
	}
	return models.Event{}, &remote.StatusError{Code: http.StatusNotFound, Message: "Event not found"}
}

func (f *fakeClient) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.events {
		if f.events[i].ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return &remote.StatusError{Code: http.StatusNotFound, Message: "Event not found"}
}

func (f *fakeClient) AuthURL(context.Context) (string, error) {
	return "https://accounts.google.com/o/oauth2/v2/auth?client_id=test", nil
}

func (f *fakeClient) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disconnectErr != nil {
		return f.disconnectErr
	}
	f.listErr = errUnauthorized
	return nil
}

// blockList makes later List calls wait on the returned gate.
func (f *fakeClient) blockList() (gate, entered chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{})
	return f.gate, f.entered
}

func (f *fakeClient) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func teamMeeting() models.Event {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	return models.Event{
		ID:           "1",
		Title:        "Team Meeting",
		Description:  "Weekly team sync",
		Start:        start,
		End:          start.Add(time.Hour),
		Location:     "Conference Room A",
		ExternalLink: "https://meet.google.com/abc-defg-hij",
		Attendees: []models.Attendee{
			{Email: "john@example.com", DisplayName: "John Doe"},
			{Email: "jane@example.com", DisplayName: "Jane Smith"},
		},
	}
}

func standup() models.EventInput {
	return models.EventInput{
		Title: "Standup",
		Start: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC),
	}
}
