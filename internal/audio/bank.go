package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/gopxl/beep/wav"

	"drop-catch/internal/game"
)

// Bank holds every cue pre-encoded as WAV
type Bank struct {
	cfg  Config
	wavs map[game.SoundCue][]byte
}

// NewBank synthesizes and encodes every cue
func NewBank(cfg Config) (*Bank, error) {
	b := &Bank{cfg: cfg, wavs: make(map[game.SoundCue][]byte, len(game.SoundCues))}
	for _, cue := range game.SoundCues {
		data, err := EncodeWAV(cue, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", cue, err)
		}
		b.wavs[cue] = data
	}
	return b, nil
}

// WAV returns the encoded cue
func (b *Bank) WAV(cue game.SoundCue) ([]byte, error) {
	data, ok := b.wavs[cue]
	if !ok {
		return nil, ErrUnknownCue
	}
	return data, nil
}

// Config returns the synthesis settings the bank was built with
func (b *Bank) Config() Config {
	return b.cfg
}

// EncodeWAV renders cue into a WAV file image
func EncodeWAV(cue game.SoundCue, cfg Config) ([]byte, error) {
	s, err := NewCue(cue, cfg)
	if err != nil {
		return nil, err
	}
	buf := &writeSeeker{}
	if err := wav.Encode(buf, s, cfg.Format()); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// writeSeeker is an in-memory io.WriteSeeker for wav.Encode, which seeks back
// to patch the header sizes.
type writeSeeker struct {
	data []byte
	pos  int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.data) {
		if end > cap(w.data) {
			grown := make([]byte, len(w.data), 2*end)
			copy(grown, w.data)
			w.data = grown
		}
		w.data = w.data[:end]
	}
	copy(w.data[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.data)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	w.pos = int(abs)
	return abs, nil
}
