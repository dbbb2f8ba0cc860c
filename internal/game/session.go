package game

import (
	"strconv"
	"time"
)

// EndReason is why a session ended
type EndReason uint8

const (
	EndCountdown EndReason = iota
	EndBomb
)

func (r EndReason) String() string {
	if r == EndBomb {
		return "bomb"
	}
	return "countdown"
}

// MarshalText encodes the reason by name
func (r EndReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a reason name
func (r *EndReason) UnmarshalText(text []byte) error {
	*r = EndCountdown
	if string(text) == "bomb" {
		*r = EndBomb
	}
	return nil
}

// Result is the win/lose verdict of a session
type Result uint8

const (
	ResultLose Result = iota
	ResultWin
)

func (r Result) String() string {
	if r == ResultWin {
		return "win"
	}
	return "lose"
}

// MarshalText encodes the result by name
func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a result name
func (r *Result) UnmarshalText(text []byte) error {
	*r = ResultLose
	if string(text) == "win" {
		*r = ResultWin
	}
	return nil
}

// SessionOutcome is the terminal report of a session
type SessionOutcome struct {
	SessionID  uint64    `json:"sessionId"`
	Result     Result    `json:"result"`
	Reason     EndReason `json:"reason"`
	Message    string    `json:"message"`
	FinalScore int       `json:"finalScore"`
	Goal       int       `json:"goal"`
	Celebrate  bool      `json:"celebrate"`
	EndedAt    time.Time `json:"endedAt"`
}

// Text is the user-facing notification body
func (o SessionOutcome) Text() string {
	return o.Message + "\nYour final score is: " + strconv.Itoa(o.FinalScore)
}

// Session is one play-through. The profile is a snapshot taken at start, so
// later difficulty selections never reach a running session.
type Session struct {
	ID            uint64
	Profile       DifficultyProfile
	Platform      Platform
	TimeRemaining int
	StartedAt     time.Time
	board         *Scoreboard
}

func newSession(id uint64, profile DifficultyProfile, platform Platform, milestones []Milestone, now time.Time) *Session {
	s := &Session{
		ID:            id,
		Profile:       profile,
		Platform:      platform,
		TimeRemaining: profile.DurationSeconds,
		StartedAt:     now,
		board:         NewScoreboard(BuildMilestones(milestones, profile.WinScoreThreshold)),
	}
	s.board.Begin()
	return s
}

// State returns the session's state machine position
func (s *Session) State() SessionState {
	return s.board.State()
}

// Score returns the current score
func (s *Session) Score() int {
	return s.board.Score()
}

// countdown decrements the timer and reports whether it reached zero
func (s *Session) countdown() bool {
	if s.TimeRemaining > 0 {
		s.TimeRemaining--
	}
	return s.TimeRemaining == 0
}
