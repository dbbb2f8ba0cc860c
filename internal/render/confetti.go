package render

import (
	"image/color"
	"math"
	"math/rand"

	"github.com/fogleman/gg"
)

const (
	// ConfettiPieces is the number of pieces in one celebration
	ConfettiPieces = 80
	// ConfettiFrames is the celebration length at ConfettiFPS (about 10s)
	ConfettiFrames = 600
	// ConfettiFPS is the animation rate the frame counter assumes
	ConfettiFPS = 60
)

// ConfettiPalette is the celebration color set
var ConfettiPalette = []string{"#FFC907", "#2E9DF7", "#FFD84A", "#8BD1CB", "#FFFFFF"}

// ConfettiPiece is one falling disc
type ConfettiPiece struct {
	X, Y  float64
	R     float64 // radius 4-12
	D     float64 // fall speed 1-3 px/frame
	Tilt  float64 // sway phase -5..5
	Color color.RGBA
}

// Confetti is a deterministic celebration animation. Pieces start above the
// area, sway while falling and wrap back to the top until the last frame.
type Confetti struct {
	Width, Height float64
	Pieces        []ConfettiPiece
	frame         int
	rng           *rand.Rand
}

// NewConfetti scatters pieces above a width x height area
func NewConfetti(width, height float64, seed int64) *Confetti {
	c := &Confetti{
		Width:  width,
		Height: height,
		Pieces: make([]ConfettiPiece, ConfettiPieces),
		rng:    rand.New(rand.NewSource(seed)),
	}
	for i := range c.Pieces {
		c.Pieces[i] = ConfettiPiece{
			X:     c.rng.Float64() * width,
			Y:     c.rng.Float64() * -height,
			R:     c.rng.Float64()*8 + 4,
			D:     c.rng.Float64()*2 + 1,
			Color: parseHexColor(ConfettiPalette[c.rng.Intn(len(ConfettiPalette))]),
			Tilt:  c.rng.Float64()*10 - 5,
		}
	}
	return c
}

// ConfettiAt returns the animation advanced to frame
func ConfettiAt(width, height float64, seed int64, frame int) *Confetti {
	c := NewConfetti(width, height, seed)
	if frame > ConfettiFrames {
		frame = ConfettiFrames
	}
	for c.frame < frame {
		c.Step()
	}
	return c
}

// Step advances one frame; it is a no-op once the animation finished
func (c *Confetti) Step() {
	if !c.Active() {
		return
	}
	for i := range c.Pieces {
		p := &c.Pieces[i]
		sway := math.Sin(float64(c.frame)/10 + p.Tilt)
		p.Y += p.D + sway*2
		p.X += sway * 2
		if p.Y > c.Height {
			p.Y = c.rng.Float64() * -20
		}
		if p.X > c.Width {
			p.X = c.rng.Float64() * c.Width
		}
	}
	c.frame++
}

// Active reports whether frames remain
func (c *Confetti) Active() bool {
	return c.frame < ConfettiFrames
}

// Frame returns the current frame number
func (c *Confetti) Frame() int {
	return c.frame
}

// Draw paints the pieces onto dc
func (c *Confetti) Draw(dc *gg.Context) {
	if !c.Active() {
		return
	}
	for _, p := range c.Pieces {
		dc.SetColor(p.Color)
		dc.DrawCircle(p.X, p.Y, p.R)
		dc.Fill()
	}
}
