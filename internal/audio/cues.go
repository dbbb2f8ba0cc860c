package audio

import (
	"errors"
	"time"

	"github.com/gopxl/beep"

	"drop-catch/internal/game"
)

// ErrUnknownCue is returned for a cue that has no sound
var ErrUnknownCue = errors.New("unknown sound cue")

// Config holds synthesis settings
type Config struct {
	SampleRate int
	Volume     float64 // master volume 0.0 to 1.0
}

// DefaultConfig returns CD-quality synthesis at half volume
func DefaultConfig() Config {
	return Config{SampleRate: 44100, Volume: 0.5}
}

func (c Config) rate() beep.SampleRate {
	if c.SampleRate <= 0 {
		return beep.SampleRate(DefaultConfig().SampleRate)
	}
	return beep.SampleRate(c.SampleRate)
}

// Format returns the beep format cues are synthesized in
func (c Config) Format() beep.Format {
	return beep.Format{SampleRate: c.rate(), NumChannels: 2, Precision: 2}
}

const (
	goodNoteDuration = 90 * time.Millisecond
	badDuration      = 220 * time.Millisecond
	bombDuration     = 600 * time.Millisecond
	attack           = 5 * time.Millisecond
)

// CueDuration returns the length of a cue's sound
func CueDuration(cue game.SoundCue) time.Duration {
	switch cue {
	case game.CueGoodCatch:
		return 2 * goodNoteDuration
	case game.CueBadCatch:
		return badDuration
	case game.CueBomb:
		return bombDuration
	default:
		return 0
	}
}

// NewCue builds a fresh streamer for cue
func NewCue(cue game.SoundCue, cfg Config) (beep.Streamer, error) {
	var s beep.Streamer
	switch cue {
	case game.CueGoodCatch:
		s = goodCatch(cfg.rate())
	case game.CueBadCatch:
		s = badCatch(cfg.rate())
	case game.CueBomb:
		s = bomb(cfg.rate())
	default:
		return nil, ErrUnknownCue
	}
	return newVolume(s, cfg.Volume), nil
}

// goodCatch is a bright rising two-note chime (C6, E6)
func goodCatch(rate beep.SampleRate) beep.Streamer {
	n1 := NewEnvelope(NewOscillator(1046.50, goodNoteDuration, WaveSine, rate), goodNoteDuration, attack, 60*time.Millisecond, rate)
	n2 := NewEnvelope(NewOscillator(1318.51, goodNoteDuration, WaveSine, rate), goodNoteDuration, attack, 70*time.Millisecond, rate)
	return beep.Seq(n1, n2)
}

// badCatch is a falling saw buzz
func badCatch(rate beep.SampleRate) beep.Streamer {
	buzz := NewSweep(220, 140, badDuration, WaveSaw, rate)
	return newVolume(NewEnvelope(buzz, badDuration, attack, 120*time.Millisecond, rate), 0.6)
}

// bomb is a noise burst over a low square rumble
func bomb(rate beep.SampleRate) beep.Streamer {
	noise := NewEnvelope(NewOscillator(0, bombDuration, WaveNoise, rate), bombDuration, attack, 450*time.Millisecond, rate)
	rumble := NewEnvelope(NewSweep(90, 40, bombDuration, WaveSquare, rate), bombDuration, attack, 500*time.Millisecond, rate)
	return beep.Mix(
		newVolume(noise, 0.6),
		newVolume(rumble, 0.4),
	)
}
