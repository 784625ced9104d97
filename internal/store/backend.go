package store

import (
	"context"
	"fmt"

	"calstore/internal/models"
	"calstore/internal/remote"
)

// Mode names the authority the store currently trusts.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// Backend is one source of truth for events. Fetch returns the full set;
// mutations return the stored copy.
type Backend interface {
	Mode() Mode
	Fetch(ctx context.Context) ([]models.Event, error)
	Create(ctx context.Context, in models.EventInput) (models.Event, error)
	Update(ctx context.Context, id string, patch models.EventPatch) (models.Event, error)
	Delete(ctx context.Context, id string) error
}

// RemoteSource is a Backend that also drives the connect/disconnect flow.
type RemoteSource interface {
	Backend
	AuthURL(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error
}

// LocalSource is a Backend whose current snapshot can be read without I/O.
type LocalSource interface {
	Backend
	Snapshot() []models.Event
}

// RemoteClient is the subset of *remote.Client used by RemoteBackend.
type RemoteClient interface {
	List(ctx context.Context) ([]models.Event, error)
	Create(ctx context.Context, in models.EventInput) (models.Event, error)
	Update(ctx context.Context, id string, patch models.EventPatch) (models.Event, error)
	Delete(ctx context.Context, id string) error
	AuthURL(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) error
}

// RemoteBackend adapts the HTTP client and maps its failures onto the
// store's error kinds.
type RemoteBackend struct {
	client RemoteClient
}

// NewRemoteBackend wraps client.
func NewRemoteBackend(client RemoteClient) *RemoteBackend {
	return &RemoteBackend{client: client}
}

func (b *RemoteBackend) Mode() Mode { return ModeRemote }

func (b *RemoteBackend) Fetch(ctx context.Context) ([]models.Event, error) {
	events, err := b.client.List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return events, nil
}

func (b *RemoteBackend) Create(ctx context.Context, in models.EventInput) (models.Event, error) {
	e, err := b.client.Create(ctx, in)
	if err != nil {
		return models.Event{}, classify(err)
	}
	return e, nil
}

func (b *RemoteBackend) Update(ctx context.Context, id string, patch models.EventPatch) (models.Event, error) {
	e, err := b.client.Update(ctx, id, patch)
	if err != nil {
		return models.Event{}, classify(err)
	}
	return e, nil
}

func (b *RemoteBackend) Delete(ctx context.Context, id string) error {
	if err := b.client.Delete(ctx, id); err != nil {
		return classify(err)
	}
	return nil
}

func (b *RemoteBackend) AuthURL(ctx context.Context) (string, error) {
	u, err := b.client.AuthURL(ctx)
	if err != nil {
		return "", classify(err)
	}
	return u, nil
}

func (b *RemoteBackend) Disconnect(ctx context.Context) error {
	if err := b.client.Disconnect(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// classify tags err with the matching sentinel while keeping the original
// error in the chain.
func classify(err error) error {
	switch {
	case remote.IsUnauthorized(err):
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	case remote.IsUnavailable(err):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case remote.IsNotFound(err):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return err
	}
}
