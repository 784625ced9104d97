// Package store implements the dual-mode event store.
//
// The store serves one snapshot of events from whichever authority it
// currently trusts: the remote event service (ModeRemote) or the local cache
// (ModeLocal). Reads and writes follow an explicit, asymmetric failure policy:
//
//   - Refresh never fails because of the backends. A 2xx answer makes the
//     remote authoritative; 401/403, 5xx, transport and any other failure
//     switch to ModeLocal and reload the cache.
//   - Writes in ModeRemote return every failure to the caller and leave the
//     snapshot and the mode unchanged, so a user-initiated change is never
//     silently dropped. Successful remote writes are followed by a Refresh.
//   - Writes in ModeLocal apply to the local snapshot and are written through
//     to the cache before they become visible. The cache is never written
//     while in ModeRemote.
//
// The last successful Refresh is fully authoritative; diverged copies of the
// same id in the two sources are not reconciled.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"calstore/internal/metrics"
	"calstore/internal/models"
)

// Store is the dual-mode event store. Create one with New, call Init once and
// Dispose when done.
type Store struct {
	remote  RemoteSource
	local   LocalSource
	logger  *slog.Logger
	metrics *metrics.Manager

	mu       sync.RWMutex
	mode     Mode
	events   []models.Event
	inFlight int
	closed   bool
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records store metrics on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New builds a store in ModeLocal with an empty snapshot.
func New(remote RemoteSource, local LocalSource, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		local:  local,
		logger: slog.Default(),
		mode:   ModeLocal,
		events: []models.Event{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.SetRemoteMode(false)
	return s
}

// Init performs the initial refresh.
func (s *Store) Init(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	s.logger.Info("Event store initialized.", "mode", s.Mode(), "count", len(s.Events()))
	return nil
}

// Dispose ends the store's lifecycle. Later calls fail with ErrClosed.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.logger.Debug("Event store disposed.")
}

// Mode returns the current authority.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Connected reports whether the remote is authoritative.
func (s *Store) Connected() bool { return s.Mode() == ModeRemote }

// Loading reports whether a refresh is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight > 0
}

// Events returns a copy of the current snapshot.
func (s *Store) Events() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneEvents(s.events)
}

// Refresh reloads the snapshot from the remote, falling back to the cache.
// The only error it returns is ErrClosed. A refresh cut short by ctx keeps
// the current mode and snapshot.
func (s *Store) Refresh(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		s.end()
		s.metrics.ObserveRefresh(time.Since(start).Seconds())
	}()

	events, err := s.remote.Fetch(ctx)
	if err == nil {
		s.replace(ModeRemote, events)
		return nil
	}

	if ctx.Err() != nil {
		s.logger.Debug("Refresh cancelled, keeping current snapshot.", "error", err)
		return nil
	}

	reason := fallbackReason(err)
	s.metrics.RecordFallback(reason)
	s.logger.Warn("Remote refresh failed, using local cache.", "reason", reason, "error", err)
	s.loadLocal(ctx)
	return nil
}

// Create adds an event. In ModeRemote the service assigns the id and the
// snapshot is refreshed; in ModeLocal an id is generated and the event is
// appended immediately.
func (s *Store) Create(ctx context.Context, in models.EventInput) (models.Event, error) {
	if err := s.checkOpen(); err != nil {
		return models.Event{}, err
	}
	if err := in.Validate(); err != nil {
		return models.Event{}, err
	}

	mode := s.Mode()
	if mode == ModeRemote {
		created, err := s.remote.Create(ctx, in)
		s.recordMutation("create", mode, err)
		if err != nil {
			return models.Event{}, fmt.Errorf("failed to create event: %w", err)
		}
		_ = s.Refresh(ctx)
		return created, nil
	}

	created, err := s.local.Create(ctx, in)
	s.recordMutation("create", mode, err)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to create event: %w", err)
	}
	s.syncLocal()
	s.logger.Debug("Created local event.", "id", created.ID, "title", created.Title)
	return created, nil
}

// Update merges patch into the event with id and returns the result.
func (s *Store) Update(ctx context.Context, id string, patch models.EventPatch) (models.Event, error) {
	if err := s.checkOpen(); err != nil {
		return models.Event{}, err
	}
	if err := patch.Validate(); err != nil {
		return models.Event{}, err
	}

	mode := s.Mode()
	if mode == ModeRemote {
		updated, err := s.remote.Update(ctx, id, patch)
		s.recordMutation("update", mode, err)
		if err != nil {
			return models.Event{}, fmt.Errorf("failed to update event %s: %w", id, err)
		}
		_ = s.Refresh(ctx)
		return updated, nil
	}

	updated, err := s.local.Update(ctx, id, patch)
	s.recordMutation("update", mode, err)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to update event %s: %w", id, err)
	}
	s.syncLocal()
	return updated, nil
}

// Delete removes the event with id. In ModeLocal deleting an unknown id is a
// no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	mode := s.Mode()
	if mode == ModeRemote {
		err := s.remote.Delete(ctx, id)
		s.recordMutation("delete", mode, err)
		if err != nil {
			return fmt.Errorf("failed to delete event %s: %w", id, err)
		}
		_ = s.Refresh(ctx)
		return nil
	}

	err := s.local.Delete(ctx, id)
	s.recordMutation("delete", mode, err)
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	s.syncLocal()
	return nil
}

// ConnectURL returns the authorization URL that connects the remote account.
func (s *Store) ConnectURL(ctx context.Context) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	u, err := s.remote.AuthURL(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get authorization url: %w", err)
	}
	return u, nil
}

// Disconnect asks the remote to drop the connection and switches to the
// local cache. The switch happens even when the remote call fails; that
// failure is still returned.
func (s *Store) Disconnect(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	err := s.remote.Disconnect(ctx)
	if err != nil {
		s.logger.Warn("Remote disconnect failed.", "error", err)
	}
	s.loadLocal(ctx)
	if err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.inFlight++
	return nil
}

func (s *Store) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
}

// loadLocal switches to ModeLocal with the cached snapshot.
func (s *Store) loadLocal(ctx context.Context) {
	events, err := s.local.Fetch(ctx)
	if err != nil {
		s.logger.Error("Failed to load local cache, starting empty.", "error", err)
	}
	s.replace(ModeLocal, events)
}

// syncLocal publishes the local backend's snapshot after a local write.
func (s *Store) syncLocal() {
	events := s.local.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeLocal {
		// A concurrent refresh made the remote authoritative; its snapshot wins.
		return
	}
	s.events = events
	s.metrics.SetEventCount(len(events))
}

func (s *Store) replace(mode Mode, events []models.Event) {
	if events == nil {
		events = []models.Event{}
	}
	s.mu.Lock()
	prev := s.mode
	s.mode = mode
	s.events = events
	s.mu.Unlock()

	s.metrics.SetRemoteMode(mode == ModeRemote)
	s.metrics.SetEventCount(len(events))
	if prev != mode {
		s.logger.Info("Event store mode changed.", "from", prev, "to", mode)
	}
}

func (s *Store) recordMutation(op string, mode Mode, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordMutation(op, string(mode), outcome)
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
