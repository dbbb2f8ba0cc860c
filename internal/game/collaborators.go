package game

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// SoundCue names one of the fixed sound effects
type SoundCue uint8

const (
	CueNone SoundCue = iota
	CueGoodCatch
	CueBadCatch
	CueBomb
)

// SoundCues lists every playable cue
var SoundCues = []SoundCue{CueGoodCatch, CueBadCatch, CueBomb}

func (c SoundCue) String() string {
	switch c {
	case CueGoodCatch:
		return "good-catch"
	case CueBadCatch:
		return "bad-catch"
	case CueBomb:
		return "bomb"
	default:
		return "none"
	}
}

// ParseSoundCue resolves a cue by name
func ParseSoundCue(name string) (SoundCue, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range SoundCues {
		if c.String() == name {
			return c, nil
		}
	}
	return CueNone, fmt.Errorf("unknown sound cue %q", name)
}

// MarshalText encodes the cue by name
func (c SoundCue) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a cue name; "none" is accepted
func (c *SoundCue) UnmarshalText(text []byte) error {
	if string(text) == "none" {
		*c = CueNone
		return nil
	}
	cue, err := ParseSoundCue(string(text))
	if err != nil {
		return err
	}
	*c = cue
	return nil
}

// SoundPlayer plays sound cues
type SoundPlayer interface {
	Play(cue SoundCue)
}

// SoundPlayerFunc adapts a function to SoundPlayer
type SoundPlayerFunc func(cue SoundCue)

// Play calls f(cue)
func (f SoundPlayerFunc) Play(cue SoundCue) { f(cue) }

// Celebrator shows the win celebration
type Celebrator interface {
	Celebrate()
}

// CelebratorFunc adapts a function to Celebrator
type CelebratorFunc func()

// Celebrate calls f()
func (f CelebratorFunc) Celebrate() { f() }

// Notifier delivers the terminal outcome message. Implementations present it
// as a blocking notification; the engine does not wait for dismissal.
type Notifier interface {
	NotifyOutcome(outcome SessionOutcome)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(outcome SessionOutcome)

// NotifyOutcome calls f(outcome)
func (f NotifierFunc) NotifyOutcome(outcome SessionOutcome) { f(outcome) }

// Observer receives engine lifecycle events. Events are delivered
// synchronously from inside the engine; observers must not call back into it.
type Observer interface {
	OnEvent(ev Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ev Event)

// OnEvent calls f(ev)
func (f ObserverFunc) OnEvent(ev Event) { f(ev) }

// MutePreference reports the persisted global mute flag
type MutePreference interface {
	Muted() bool
}

// MuteGate forwards cues to Player unless Pref reports muted
type MuteGate struct {
	Player SoundPlayer
	Pref   MutePreference
}

// Play forwards cue when not muted
func (g MuteGate) Play(cue SoundCue) {
	if g.Player == nil || cue == CueNone {
		return
	}
	if g.Pref != nil && g.Pref.Muted() {
		return
	}
	g.Player.Play(cue)
}

// safely runs a collaborator call, swallowing panics so a broken sink never
// disturbs the session.
func safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("collaborator", what).Debugf("collaborator failed: %v", r)
		}
	}()
	fn()
}
