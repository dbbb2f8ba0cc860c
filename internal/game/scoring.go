package game

import "sort"

// SessionState is the scoring state machine position
type SessionState uint8

const (
	StateIdle SessionState = iota
	StateRunning
	StateEnded
)

func (s SessionState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	default:
		return "idle"
	}
}

// MarshalText encodes the state by name
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *SessionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "running":
		*s = StateRunning
	case "ended":
		*s = StateEnded
	default:
		*s = StateIdle
	}
	return nil
}

// Milestone is a one-time score notification
type Milestone struct {
	Threshold int    `json:"threshold" yaml:"threshold"`
	Message   string `json:"message" yaml:"message"`
}

// HalfwayMessage labels the computed halfway-to-goal milestone
const HalfwayMessage = "Halfway to the goal!"

// DefaultMilestones are the fixed thresholds before the halfway one is added
var DefaultMilestones = []Milestone{
	{Threshold: 5, Message: "Nice start!"},
	{Threshold: 10, Message: "Double digits!"},
	{Threshold: 20, Message: "Unstoppable!"},
}

// BuildMilestones adds the halfway threshold ceil(goal/2) unless present,
// sorts ascending and keeps the first entry for each threshold.
func BuildMilestones(base []Milestone, goal int) []Milestone {
	out := make([]Milestone, 0, len(base)+1)
	out = append(out, base...)
	if goal > 0 {
		half := (goal + 1) / 2
		present := false
		for _, m := range base {
			if m.Threshold == half {
				present = true
				break
			}
		}
		if !present {
			out = append(out, Milestone{Threshold: half, Message: HalfwayMessage})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Threshold < out[j].Threshold })

	deduped := out[:0]
	for i, m := range out {
		if i > 0 && m.Threshold == deduped[len(deduped)-1].Threshold {
			continue
		}
		deduped = append(deduped, m)
	}
	return deduped
}

// Scoreboard owns the score and the milestone latch set for one session.
// The score never drops below zero.
type Scoreboard struct {
	state      SessionState
	score      int
	milestones []Milestone
	shown      map[int]bool
}

// NewScoreboard creates an idle scoreboard with a prepared milestone list
func NewScoreboard(milestones []Milestone) *Scoreboard {
	return &Scoreboard{
		milestones: milestones,
		shown:      make(map[int]bool, len(milestones)),
	}
}

// Begin moves to Running with a zero score and no milestones shown
func (s *Scoreboard) Begin() {
	s.state = StateRunning
	s.score = 0
	s.shown = make(map[int]bool, len(s.milestones))
}

// ApplyDelta sets score = max(0, score+delta) and returns the milestones
// reached for the first time, in ascending order. Milestones only fire while
// Running.
func (s *Scoreboard) ApplyDelta(delta int) []Milestone {
	s.score += delta
	if s.score < 0 {
		s.score = 0
	}
	if s.state != StateRunning {
		return nil
	}

	var fired []Milestone
	for _, m := range s.milestones {
		if s.score < m.Threshold {
			break
		}
		if s.shown[m.Threshold] {
			continue
		}
		s.shown[m.Threshold] = true
		fired = append(fired, m)
	}
	return fired
}

// Finish moves to Ended and returns the final score. The displayed score
// rests at zero afterwards.
func (s *Scoreboard) Finish() int {
	final := s.score
	s.state = StateEnded
	s.score = 0
	return final
}

// Score returns the current score
func (s *Scoreboard) Score() int {
	return s.score
}

// State returns the state machine position
func (s *Scoreboard) State() SessionState {
	return s.state
}

// Milestones returns the prepared milestone list
func (s *Scoreboard) Milestones() []Milestone {
	return append([]Milestone(nil), s.milestones...)
}

// Shown returns the milestones already notified, ascending
func (s *Scoreboard) Shown() []Milestone {
	var out []Milestone
	for _, m := range s.milestones {
		if s.shown[m.Threshold] {
			out = append(out, m)
		}
	}
	return out
}
