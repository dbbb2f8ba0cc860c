package prefs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// storeTimeout bounds every store call made by a Flag
const storeTimeout = 2 * time.Second

// Flag caches one player's mute preference for hot-path reads and writes
// changes through to the store. It satisfies game.MutePreference.
type Flag struct {
	store    Store
	playerID string
	muted    atomic.Bool
}

// LoadFlag reads the stored preference. A failed read starts unmuted and is
// returned alongside the usable flag.
func LoadFlag(ctx context.Context, store Store, playerID string) (*Flag, error) {
	f := &Flag{store: store, playerID: playerID}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	muted, err := store.Muted(ctx, playerID)
	if err != nil {
		return f, err
	}
	f.muted.Store(muted)
	return f, nil
}

// Muted reports the cached flag
func (f *Flag) Muted() bool {
	return f.muted.Load()
}

// Set updates the cache and persists the new value
func (f *Flag) Set(ctx context.Context, muted bool) error {
	f.muted.Store(muted)

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := f.store.SetMuted(ctx, f.playerID, muted); err != nil {
		logrus.WithError(err).WithField("player", f.playerID).Warn("⚠️ Failed to persist mute preference")
		return err
	}
	return nil
}

// Toggle flips the flag and returns the new value
func (f *Flag) Toggle(ctx context.Context) (bool, error) {
	next := !f.Muted()
	return next, f.Set(ctx, next)
}
