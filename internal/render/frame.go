// Package render draws engine snapshots into images with gg.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"drop-catch/internal/game"
)

// Options controls frame rendering
type Options struct {
	Width    int
	Height   int
	FontPath string // optional TTF; the built-in bitmap face is used otherwise
}

// DefaultOptions renders an 800x600 frame
func DefaultOptions() Options {
	return Options{Width: 800, Height: 600}
}

var (
	background = color.RGBA{255, 249, 230, 255}
	hudBar     = color.RGBA{255, 201, 7, 255} // #FFC907
	textDark   = color.RGBA{20, 25, 35, 255}
	overlay    = color.RGBA{0, 0, 0, 140}

	goalBarTrack = color.RGBA{230, 170, 0, 255}
	goalBarFill  = color.RGBA{46, 157, 247, 255} // #2E9DF7

	dropColors = map[game.DropKind]color.RGBA{
		game.DropGood: parseHexColor("#2E9DF7"),
		game.DropBad:  parseHexColor("#8B5E3C"),
		game.DropBomb: parseHexColor("#333333"),
	}
)

const (
	hudHeight     = 40.0
	goalBarHeight = 6.0
)

// Frame draws snap: play area, drops at their current fall progress, the HUD
// and, after a win, the confetti for the elapsed celebration time.
func Frame(snap game.Snapshot, opts Options) image.Image {
	return draw(snap, opts).Image()
}

// WritePNG renders snap and encodes it as PNG
func WritePNG(wr io.Writer, snap game.Snapshot, opts Options) error {
	if err := draw(snap, opts).EncodePNG(wr); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}

func draw(snap game.Snapshot, opts Options) *gg.Context {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultOptions()
	}
	w, h := float64(opts.Width), float64(opts.Height)
	dc := gg.NewContext(opts.Width, opts.Height)

	dc.SetColor(background)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	// drops use engine coordinates; scale them to the frame width
	scale := 1.0
	if snap.PlayWidth > 0 {
		scale = w / snap.PlayWidth
	}
	playHeight := (h - hudHeight) / scale

	dc.Push()
	dc.Translate(0, hudHeight)
	dc.Scale(scale, scale)
	for _, d := range snap.Drops {
		drawDrop(dc, d, game.DropTop(d, snap.Timestamp, playHeight))
	}
	dc.Pop()

	drawHUD(dc, snap, w, opts.FontPath)

	if o := snap.LastOutcome; o != nil && snap.State == game.StateEnded {
		if o.Celebrate {
			elapsed := snap.Timestamp.Sub(o.EndedAt).Seconds()
			ConfettiAt(w, h, int64(o.SessionID), int(elapsed*ConfettiFPS)).Draw(dc)
		}
		drawOutcome(dc, *o, w, h, opts.FontPath)
	}

	return dc
}

func drawDrop(dc *gg.Context, d game.Drop, top float64) {
	r := d.Size / 2
	cx, cy := d.X+r, top+r
	c := dropColors[d.Kind]

	switch d.Kind {
	case game.DropBomb:
		dc.SetColor(c)
		dc.DrawCircle(cx, cy+r*0.1, r*0.85)
		dc.Fill()
		dc.SetColor(color.RGBA{255, 120, 0, 255})
		dc.SetLineWidth(3)
		dc.DrawLine(cx, cy-r*0.7, cx+r*0.4, cy-r)
		dc.Stroke()
	default:
		// teardrop: circle body with a pointed top
		dc.SetColor(c)
		dc.DrawCircle(cx, cy+r*0.25, r*0.75)
		dc.Fill()
		dc.MoveTo(cx, top)
		dc.LineTo(cx-r*0.7, cy+r*0.1)
		dc.LineTo(cx+r*0.7, cy+r*0.1)
		dc.ClosePath()
		dc.Fill()
	}
}

func drawHUD(dc *gg.Context, snap game.Snapshot, w float64, fontPath string) {
	dc.SetColor(hudBar)
	dc.DrawRectangle(0, 0, w, hudHeight)
	dc.Fill()

	setFont(dc, fontPath, 18)
	dc.SetColor(textDark)
	dc.DrawStringAnchored(fmt.Sprintf("Score: %d", snap.Score), 12, hudHeight/2, 0, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("Goal: %d", snap.Goal), w/2, hudHeight/2, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("Time: %ds", snap.TimeRemaining), w-12, hudHeight/2, 1, 0.5)

	drawGoalBar(dc, snap.GoalPercent(), w)
}

// drawGoalBar fills a strip along the bottom of the HUD with the score's
// progress toward the goal
func drawGoalBar(dc *gg.Context, percent int, w float64) {
	y := hudHeight - goalBarHeight
	dc.SetColor(goalBarTrack)
	dc.DrawRectangle(0, y, w, goalBarHeight)
	dc.Fill()
	if percent <= 0 {
		return
	}
	dc.SetColor(goalBarFill)
	dc.DrawRectangle(0, y, w*float64(percent)/100, goalBarHeight)
	dc.Fill()
}

func drawOutcome(dc *gg.Context, o game.SessionOutcome, w, h float64, fontPath string) {
	boxW, boxH := w*0.7, 120.0
	x, y := (w-boxW)/2, (h-boxH)/2

	dc.SetColor(overlay)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 12)
	dc.Fill()

	setFont(dc, fontPath, 22)
	dc.SetColor(color.White)
	for i, line := range strings.Split(o.Text(), "\n") {
		dc.DrawStringAnchored(line, w/2, y+40+float64(i)*36, 0.5, 0.5)
	}
}

var (
	fontOnce  sync.Once
	fontFound string
)

// setFont loads a TTF face at size, falling back to the built-in bitmap face
func setFont(dc *gg.Context, path string, size float64) {
	if path == "" {
		fontOnce.Do(func() { fontFound = findFont() })
		path = fontFound
	}
	if path != "" {
		if err := dc.LoadFontFace(path, size); err == nil {
			return
		}
	}
	var face font.Face = basicfont.Face7x13
	dc.SetFontFace(face)
}

func findFont() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/Library/Fonts/Arial.ttf",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if matches, _ := filepath.Glob("*.ttf"); len(matches) > 0 {
		return matches[0]
	}
	return ""
}

func parseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}

	var r, g, b uint8
	fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b)
	return color.RGBA{r, g, b, 255}
}
