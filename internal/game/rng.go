package game

import (
	"math/rand"
	"time"
)

// Random is the single source of randomness for spawn contents and message
// selection. A seeded source replays a session deterministically.
type Random interface {
	Float64() float64
	Intn(n int) int
}

// NewRandom returns a seeded source. A zero seed picks one from the wall clock.
func NewRandom(seed int64) Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// uniform samples [min, max). Inverted bounds are swapped.
func uniform(r Random, min, max float64) float64 {
	if max < min {
		min, max = max, min
	}
	return min + r.Float64()*(max-min)
}

// pick returns a pseudo-random element of pool, or "" for an empty pool.
func pick(r Random, pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[r.Intn(len(pool))]
}
