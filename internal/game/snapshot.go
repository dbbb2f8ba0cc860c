package game

import (
	"math"
	"time"
)

// Snapshot is an immutable copy of engine state for renderers and the API.
// Slices are freshly allocated; callers may keep them.
type Snapshot struct {
	GameID        string          `json:"gameId"`
	SessionID     uint64          `json:"sessionId"`
	State         SessionState    `json:"state"`
	Score         int             `json:"score"`
	TimeRemaining int             `json:"timeRemaining"`
	Difficulty    string          `json:"difficulty"`
	Preview       Preview         `json:"preview"`
	Goal          int             `json:"goal"`
	Platform      Platform        `json:"platform"`
	PlayWidth     float64         `json:"playWidth"`
	Drops         []Drop          `json:"drops"`
	Milestones    []Milestone     `json:"milestones"`
	LastOutcome   *SessionOutcome `json:"lastOutcome,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Running reports whether the snapshot was taken mid-session
func (s Snapshot) Running() bool {
	return s.State == StateRunning
}

// GoalPercent returns the score as a whole percentage of the goal, capped
// at 100
func (s Snapshot) GoalPercent() int {
	if s.Goal <= 0 || s.Score <= 0 {
		return 0
	}
	if s.Score >= s.Goal {
		return 100
	}
	return int(math.Round(float64(s.Score) * 100 / float64(s.Goal)))
}

// DropAt returns the topmost live drop covering point (x, y) on a play area of
// the given height. Later drops are drawn over earlier ones, so the search
// runs newest first.
func (s Snapshot) DropAt(x, y, height float64) (Drop, bool) {
	for i := len(s.Drops) - 1; i >= 0; i-- {
		d := s.Drops[i]
		top := DropTop(d, s.Timestamp, height)
		if x >= d.X && x <= d.X+d.Size && y >= top && y <= top+d.Size {
			return d, true
		}
	}
	return Drop{}, false
}

// DropTop returns the drop's top edge at now on a play area of the given
// height. Drops start fully above the area and finish fully below it.
func DropTop(d Drop, now time.Time, height float64) float64 {
	travel := height + d.Size
	return -d.Size + travel*d.Progress(now)
}
