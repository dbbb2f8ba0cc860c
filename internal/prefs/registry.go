package prefs

import (
	"context"
	"sync"
)

// Registry shares one Flag per player so every game of that player sees a
// mute change immediately.
type Registry struct {
	store Store
	flags sync.Map // map[string]*Flag
}

// NewRegistry creates a registry over store
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Store returns the backing store
func (r *Registry) Store() Store {
	return r.store
}

// Flag returns the cached flag for playerID, loading it on first use. A
// failed load is returned with an unmuted flag that is not cached.
func (r *Registry) Flag(ctx context.Context, playerID string) (*Flag, error) {
	id, err := ValidatePlayerID(playerID)
	if err != nil {
		return nil, err
	}
	if f, ok := r.flags.Load(id); ok {
		return f.(*Flag), nil
	}

	f, err := LoadFlag(ctx, r.store, id)
	if err != nil {
		return f, err
	}
	actual, _ := r.flags.LoadOrStore(id, f)
	return actual.(*Flag), nil
}

// SetMuted updates the player's flag and persists it
func (r *Registry) SetMuted(ctx context.Context, playerID string, muted bool) error {
	f, err := r.Flag(ctx, playerID)
	if f == nil {
		return err
	}
	return f.Set(ctx, muted)
}
