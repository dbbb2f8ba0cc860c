package game

import (
	"fmt"
	"strings"
	"time"
)

// BaseDropSize is the edge length in pixels of a drop at multiplier 1.0
const BaseDropSize = 60.0

// DefaultPlayWidth is used when the host does not report the play area width
const DefaultPlayWidth = 800.0

// DropID identifies a drop within one engine
type DropID uint64

// DropKind classifies a drop
type DropKind uint8

const (
	DropGood DropKind = iota
	DropBad
	DropBomb
)

func (k DropKind) String() string {
	switch k {
	case DropGood:
		return "good"
	case DropBad:
		return "bad"
	case DropBomb:
		return "bomb"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name
func (k DropKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name
func (k *DropKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "good":
		*k = DropGood
	case "bad":
		*k = DropBad
	case "bomb":
		*k = DropBomb
	default:
		return fmt.Errorf("unknown drop kind %q", text)
	}
	return nil
}

// Resolution is how a drop left play
type Resolution uint8

const (
	ResolutionCaught Resolution = iota
	ResolutionExpired
)

func (r Resolution) String() string {
	if r == ResolutionExpired {
		return "expired"
	}
	return "caught"
}

// Drop is the data half of a falling entity. Renderers own the visuals.
type Drop struct {
	ID             DropID        `json:"id"`
	Kind           DropKind      `json:"kind"`
	SizeMultiplier float64       `json:"sizeMultiplier"`
	Size           float64       `json:"size"`
	X              float64       `json:"x"`
	FallDuration   time.Duration `json:"-"`
	FallMs         int64         `json:"fallMs"`
	SpawnedAt      time.Time     `json:"spawnedAt"`

	// collected latches on the first resolving interaction
	collected bool
}

// Progress returns how far the drop has fallen at now, in [0, 1]
func (d Drop) Progress(now time.Time) float64 {
	if d.FallDuration <= 0 {
		return 1
	}
	p := float64(now.Sub(d.SpawnedAt)) / float64(d.FallDuration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// DropSpawnEvent is the result of one spawn
type DropSpawnEvent struct {
	Spawned []Drop
	Evicted []Drop
}

// ScoreDelta is what resolving a drop means for the session
type ScoreDelta struct {
	Kind       DropKind
	Resolution Resolution
	Points     int
	Terminal   bool // bomb caught: the session ends instead of scoring
	Cue        SoundCue
}

// Population creates and destroys drops and enforces the concurrency cap.
// Live drops are kept in creation order so eviction is FIFO.
//
// Population is not safe for concurrent use; the Engine serializes access.
type Population struct {
	rng       Random
	now       func() time.Time
	playWidth float64
	live      []*Drop
	index     map[DropID]*Drop
	nextID    DropID
}

// NewPopulation creates an empty population
func NewPopulation(rng Random, playWidth float64, now func() time.Time) *Population {
	if playWidth <= 0 {
		playWidth = DefaultPlayWidth
	}
	if now == nil {
		now = time.Now
	}
	return &Population{
		rng:       rng,
		now:       now,
		playWidth: playWidth,
		index:     make(map[DropID]*Drop),
	}
}

// SetPlayWidth updates the width used for horizontal placement
func (p *Population) SetPlayWidth(w float64) {
	if w > 0 {
		p.playWidth = w
	}
}

// PlayWidth returns the current play width
func (p *Population) PlayWidth() float64 {
	return p.playWidth
}

// Spawn produces a good drop, a bad drop and, with the profile's bomb
// probability, a bomb. Oldest live drops are evicted until the cap holds.
func (p *Population) Spawn(profile DifficultyProfile, platform Platform) DropSpawnEvent {
	kinds := []DropKind{DropGood, DropBad}
	if p.rng.Float64() < profile.BombSpawnProbability {
		kinds = append(kinds, DropBomb)
	}

	now := p.now()
	fall := profile.FallRange(platform)
	batch := make([]*Drop, 0, len(kinds))
	for _, kind := range kinds {
		p.nextID++
		mult := uniform(p.rng, profile.SizeMultiplier.Min, profile.SizeMultiplier.Max)
		size := BaseDropSize * mult
		span := p.playWidth - size
		if span < 0 {
			span = 0
		}
		x := p.rng.Float64() * span
		fallDuration := seconds(uniform(p.rng, fall.Min, fall.Max))

		batch = append(batch, &Drop{
			ID:             p.nextID,
			Kind:           kind,
			SizeMultiplier: mult,
			Size:           size,
			X:              x,
			FallDuration:   fallDuration,
			FallMs:         fallDuration.Milliseconds(),
			SpawnedAt:      now,
		})
	}

	var ev DropSpawnEvent
	limit := profile.MaxConcurrentDrops
	if limit < 1 {
		limit = 1
	}

	p.live = append(p.live, batch...)
	fresh := make(map[DropID]bool, len(batch))
	for _, d := range batch {
		p.index[d.ID] = d
		fresh[d.ID] = true
	}
	for len(p.live) > limit {
		oldest := p.live[0]
		p.live = p.live[1:]
		delete(p.index, oldest.ID)
		if fresh[oldest.ID] {
			delete(fresh, oldest.ID)
			continue
		}
		ev.Evicted = append(ev.Evicted, *oldest)
	}
	for _, d := range batch {
		if fresh[d.ID] {
			ev.Spawned = append(ev.Spawned, *d)
		}
	}
	return ev
}

// Resolve applies a resolution to a live drop and removes it. Unknown,
// evicted or already-collected drops yield (ScoreDelta{}, false).
func (p *Population) Resolve(id DropID, res Resolution) (ScoreDelta, bool) {
	d, ok := p.index[id]
	if !ok || d.collected {
		return ScoreDelta{}, false
	}
	d.collected = true
	p.remove(id)

	delta := ScoreDelta{Kind: d.Kind, Resolution: res}
	if res == ResolutionExpired {
		// expiry never scores and never plays a cue
		return delta, true
	}

	switch d.Kind {
	case DropGood:
		delta.Points = 1
		delta.Cue = CueGoodCatch
	case DropBad:
		delta.Points = -1
		delta.Cue = CueBadCatch
	case DropBomb:
		delta.Terminal = true
		delta.Cue = CueBomb
	}
	return delta, true
}

// Get returns a copy of a live drop
func (p *Population) Get(id DropID) (Drop, bool) {
	d, ok := p.index[id]
	if !ok {
		return Drop{}, false
	}
	return *d, true
}

// Clear removes every live drop and returns them in creation order
func (p *Population) Clear() []Drop {
	out := make([]Drop, 0, len(p.live))
	for _, d := range p.live {
		out = append(out, *d)
	}
	p.live = p.live[:0]
	p.index = make(map[DropID]*Drop)
	return out
}

// Live returns copies of the live drops in creation order
func (p *Population) Live() []Drop {
	out := make([]Drop, 0, len(p.live))
	for _, d := range p.live {
		out = append(out, *d)
	}
	return out
}

// Len returns the live drop count
func (p *Population) Len() int {
	return len(p.live)
}

// remove deletes a drop; removing an absent drop is a no-op
func (p *Population) remove(id DropID) {
	if _, ok := p.index[id]; !ok {
		return
	}
	delete(p.index, id)
	for i, d := range p.live {
		if d.ID == id {
			p.live = append(p.live[:i], p.live[i+1:]...)
			return
		}
	}
}
