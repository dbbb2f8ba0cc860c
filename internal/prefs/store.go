// Package prefs persists per-player preferences. The only preference today is
// the global sound mute flag.
package prefs

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidPlayer is returned for an empty or oversized player id
var ErrInvalidPlayer = errors.New("invalid player id")

// maxPlayerIDLength bounds keys written to the backing store
const maxPlayerIDLength = 128

// Store reads and writes the mute preference of a player. Unknown players are
// not muted.
type Store interface {
	Muted(ctx context.Context, playerID string) (bool, error)
	SetMuted(ctx context.Context, playerID string, muted bool) error
}

// ValidatePlayerID normalizes and checks a player id
func ValidatePlayerID(playerID string) (string, error) {
	id := strings.TrimSpace(playerID)
	if id == "" || len(id) > maxPlayerIDLength {
		return "", ErrInvalidPlayer
	}
	return id, nil
}
