package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeSessionStarted
	EventTypeSessionEnded
	EventTypeDropSpawned
	EventTypeDropRemoved
	EventTypeScoreChanged
	EventTypeTimerChanged
	EventTypeMilestone
	EventTypeSound
	EventTypeCelebrate
	EventTypeDifficultyChanged
)

// EventVersion for backwards compatibility in replay
const EventVersion uint8 = 1

// Event is one engine lifecycle event. It is delivered to observers and
// recorded in the session journal.
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic per engine
	GameID    string          `json:"gameId"`    // Rate limiting key in the journal
	SessionID uint64          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeSessionStarted:
		return "session_started"
	case EventTypeSessionEnded:
		return "session_ended"
	case EventTypeDropSpawned:
		return "drop_spawned"
	case EventTypeDropRemoved:
		return "drop_removed"
	case EventTypeScoreChanged:
		return "score_changed"
	case EventTypeTimerChanged:
		return "timer_changed"
	case EventTypeMilestone:
		return "milestone"
	case EventTypeSound:
		return "sound"
	case EventTypeCelebrate:
		return "celebrate"
	case EventTypeDifficultyChanged:
		return "difficulty_changed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by name
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name; unknown names decode to EventTypeUnknown
func (t *EventType) UnmarshalText(text []byte) error {
	name := string(text)
	for c := EventTypeSessionStarted; c <= EventTypeDifficultyChanged; c++ {
		if c.String() == name {
			*t = c
			return nil
		}
	}
	*t = EventTypeUnknown
	return nil
}

// RemovalReason is why a drop left play
type RemovalReason string

const (
	RemovedCaught  RemovalReason = "caught"
	RemovedExpired RemovalReason = "expired"
	RemovedEvicted RemovalReason = "evicted"
	RemovedCleared RemovalReason = "cleared"
)

// Typed payloads for different event types

// SessionStartedPayload describes a fresh session
type SessionStartedPayload struct {
	Difficulty    string   `json:"difficulty"`
	Platform      Platform `json:"platform"`
	Goal          int      `json:"goal"`
	TimeRemaining int      `json:"timeRemaining"`
	SpawnMs       int      `json:"spawnMs"`
}

// DropSpawnedPayload carries one new drop
type DropSpawnedPayload struct {
	Drop Drop `json:"drop"`
}

// DropRemovedPayload carries a drop leaving play
type DropRemovedPayload struct {
	DropID DropID        `json:"dropId"`
	Kind   DropKind      `json:"kind"`
	Reason RemovalReason `json:"reason"`
}

// ScorePayload carries the new score
type ScorePayload struct {
	Score int `json:"score"`
	Delta int `json:"delta"`
}

// TimerPayload carries the remaining seconds
type TimerPayload struct {
	TimeRemaining int `json:"timeRemaining"`
}

// SoundPayload carries a cue name
type SoundPayload struct {
	Cue SoundCue `json:"cue"`
}

// DifficultyPayload carries the selected profile preview
type DifficultyPayload struct {
	Preview Preview `json:"preview"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// DecodePayload unmarshals an event payload into v
func (ev Event) DecodePayload(v interface{}) error {
	return json.Unmarshal(ev.Payload, v)
}

// NewEvent creates a new event stamped at now
func NewEvent(eventType EventType, now time.Time, gameID string, sessionID uint64, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: now.UnixNano(),
		GameID:    gameID,
		SessionID: sessionID,
		Payload:   EncodePayload(payload),
	}
}
