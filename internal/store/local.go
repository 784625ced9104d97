package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"calstore/internal/localcache"
	"calstore/internal/models"

	"github.com/google/uuid"
)

// CacheKey is the cache entry holding the JSON array of local events.
const CacheKey = "local-calendar-events"

// LocalBackend keeps the local snapshot and writes every mutation through to
// the cache as one JSON array.
type LocalBackend struct {
	cache localcache.Cache
	key   string
	newID func() string

	mu     sync.Mutex
	events []models.Event
	loaded bool
}

// LocalOption applies a configuration option to the LocalBackend.
type LocalOption func(*LocalBackend)

// WithCacheKey overrides CacheKey.
func WithCacheKey(key string) LocalOption {
	return func(b *LocalBackend) {
		if key != "" {
			b.key = key
		}
	}
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(gen func() string) LocalOption {
	return func(b *LocalBackend) {
		if gen != nil {
			b.newID = gen
		}
	}
}

// NewLocalBackend returns a backend over cache. Nothing is read until the
// first call.
func NewLocalBackend(cache localcache.Cache, opts ...LocalOption) *LocalBackend {
	b := &LocalBackend{
		cache: cache,
		key:   CacheKey,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *LocalBackend) Mode() Mode { return ModeLocal }

// Fetch reloads the snapshot from the cache. A missing entry is an empty
// snapshot. An unreadable entry also leaves the snapshot empty and the error
// is returned so the caller can report it. The backend then stays unloaded,
// so mutations retry the read and fail rather than overwrite the entry.
func (b *LocalBackend) Fetch(ctx context.Context) ([]models.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	events, err := b.read(ctx)
	b.events = events
	b.loaded = err == nil
	return models.CloneEvents(events), err
}

// Snapshot returns a copy of the current local events.
func (b *LocalBackend) Snapshot() []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.CloneEvents(b.events)
}

func (b *LocalBackend) Create(ctx context.Context, in models.EventInput) (models.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoaded(ctx); err != nil {
		return models.Event{}, err
	}
	e := in.ToEvent(b.newID())
	next := append(slices.Clip(b.events), e)
	if err := b.commit(ctx, next); err != nil {
		return models.Event{}, err
	}
	return e.Clone(), nil
}

func (b *LocalBackend) Update(ctx context.Context, id string, patch models.EventPatch) (models.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoaded(ctx); err != nil {
		return models.Event{}, err
	}
	i := slices.IndexFunc(b.events, func(e models.Event) bool { return e.ID == id })
	if i < 0 {
		return models.Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := slices.Clone(b.events)
	next[i] = patch.Apply(next[i])
	if err := b.commit(ctx, next); err != nil {
		return models.Event{}, err
	}
	return next[i].Clone(), nil
}

// Delete removes id. Unknown ids are ignored but the snapshot is still
// written through.
func (b *LocalBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureLoaded(ctx); err != nil {
		return err
	}
	next := slices.DeleteFunc(slices.Clone(b.events), func(e models.Event) bool { return e.ID == id })
	return b.commit(ctx, next)
}

func (b *LocalBackend) ensureLoaded(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	events, err := b.read(ctx)
	if err != nil {
		return err
	}
	b.events = events
	b.loaded = true
	return nil
}

func (b *LocalBackend) read(ctx context.Context) ([]models.Event, error) {
	raw, ok, err := b.cache.Get(ctx, b.key)
	if err != nil {
		return []models.Event{}, fmt.Errorf("failed to read local cache: %w", err)
	}
	if !ok || len(raw) == 0 {
		return []models.Event{}, nil
	}
	var events []models.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return []models.Event{}, fmt.Errorf("failed to decode local cache: %w", err)
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// commit persists next and only then makes it the current snapshot.
func (b *LocalBackend) commit(ctx context.Context, next []models.Event) error {
	if next == nil {
		next = []models.Event{}
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode local events: %w", err)
	}
	if err := b.cache.Set(ctx, b.key, raw); err != nil {
		return fmt.Errorf("failed to write local cache: %w", err)
	}
	b.events = next
	return nil
}
