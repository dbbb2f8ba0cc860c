package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/sirupsen/logrus"

	"drop-catch/internal/game"
)

// deviceRate is the rate the speaker is opened at; cues are resampled to it
const deviceRate = beep.SampleRate(48000)

// SpeakerPlayer plays cues on the local audio device
type SpeakerPlayer struct {
	mu     sync.Mutex
	cfg    Config
	mixer  *beep.Mixer
	closed bool
}

// NewSpeakerPlayer opens the audio device
func NewSpeakerPlayer(cfg Config) (*SpeakerPlayer, error) {
	if err := speaker.Init(deviceRate, deviceRate.N(100*time.Millisecond)); err != nil {
		return nil, err
	}
	p := &SpeakerPlayer{cfg: cfg, mixer: &beep.Mixer{}}
	speaker.Play(p.mixer)
	return p, nil
}

// Play starts cue without waiting for it to finish
func (p *SpeakerPlayer) Play(cue game.SoundCue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	s, err := NewCue(cue, p.cfg)
	if err != nil {
		return
	}
	if rate := p.cfg.rate(); rate != deviceRate {
		s = beep.Resample(4, rate, deviceRate, s)
	}

	speaker.Lock()
	p.mixer.Add(s)
	speaker.Unlock()
}

// Close stops playback and releases the device
func (p *SpeakerPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	speaker.Clear()
	speaker.Close()
}

// NewPlayer opens the speaker, falling back to a silent player when no audio
// device is available. The returned close function is always safe to call.
func NewPlayer(cfg Config, enabled bool) (game.SoundPlayer, func()) {
	silent := game.SoundPlayerFunc(func(game.SoundCue) {})
	if !enabled {
		return silent, func() {}
	}
	p, err := NewSpeakerPlayer(cfg)
	if err != nil {
		logrus.WithError(err).Warn("🔇 Audio device unavailable, sound disabled")
		return silent, func() {}
	}
	return p, p.Close
}
