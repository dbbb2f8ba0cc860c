// Package tui renders a drop-catch engine in the terminal with tcell.
// Drops are laid out in a virtual pixel space of cellWidth x cellHeight
// pixels per cell so engine sizes and fall progress map onto the grid.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"drop-catch/internal/game"
	"drop-catch/internal/prefs"
	"drop-catch/internal/render"
)

const (
	cellWidth  = 8.0
	cellHeight = 16.0

	hudRows      = 1
	footerRows   = 1
	goalBarCells = 10

	frameInterval  = 16 * time.Millisecond // ~60 FPS, one confetti frame per tick
	bannerDuration = 2 * time.Second
)

const helpLine = "s start  r reset  1/2/3 difficulty  m mute  click catch  q quit"

var (
	styleDefault = tcell.StyleDefault
	styleHUD     = tcell.StyleDefault.Background(tcell.NewHexColor(0xFFC907)).Foreground(tcell.ColorBlack)
	styleFooter  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleBanner  = tcell.StyleDefault.Foreground(tcell.NewHexColor(0x2E9DF7)).Bold(true)
	styleModal   = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)

	dropStyles = map[game.DropKind]tcell.Style{
		game.DropGood: tcell.StyleDefault.Foreground(tcell.NewHexColor(0x2E9DF7)),
		game.DropBad:  tcell.StyleDefault.Foreground(tcell.NewHexColor(0x8B5E3C)),
		game.DropBomb: tcell.StyleDefault.Foreground(tcell.ColorRed),
	}
	dropGlyphs = map[game.DropKind]rune{
		game.DropGood: '█',
		game.DropBad:  '▓',
		game.DropBomb: '●',
	}
)

// Config wires an App
type Config struct {
	Screen tcell.Screen
	Engine *game.Engine
	// Sound plays cues; it is gated by Mute when both are set
	Sound game.SoundPlayer
	Mute  *prefs.Flag
	// Seed drives the confetti layout
	Seed int64
}

// App is the terminal client. The engine calls back into it from its own
// goroutines, so view state is guarded by mu.
type App struct {
	screen tcell.Screen
	engine *game.Engine
	mute   *prefs.Flag
	keys   []string

	mu          sync.Mutex
	width       int
	height      int
	confetti    *render.Confetti
	modal       *game.SessionOutcome
	banner      string
	bannerUntil time.Time
	seed        int64

	unsubscribe func()
}

// New attaches an App to the engine's collaborator slots
func New(cfg Config) *App {
	a := &App{
		screen: cfg.Screen,
		engine: cfg.Engine,
		mute:   cfg.Mute,
		seed:   cfg.Seed,
	}
	for _, p := range cfg.Engine.Profiles().Profiles() {
		a.keys = append(a.keys, p.Key)
	}

	a.width, a.height = cfg.Screen.Size()
	cfg.Engine.SetPlayWidth(a.playWidth())

	var pref game.MutePreference
	if cfg.Mute != nil {
		pref = cfg.Mute
	}
	cfg.Engine.SetSound(game.MuteGate{Player: cfg.Sound, Pref: pref})
	cfg.Engine.SetCelebrator(game.CelebratorFunc(a.celebrate))
	cfg.Engine.SetNotifier(game.NotifierFunc(a.notify))
	a.unsubscribe = cfg.Engine.Subscribe(a)
	return a
}

// OnEvent implements game.Observer
func (a *App) OnEvent(ev game.Event) {
	switch ev.Type {
	case game.EventTypeSessionStarted:
		a.mu.Lock()
		a.confetti = nil
		a.modal = nil
		a.banner = ""
		a.mu.Unlock()
	case game.EventTypeMilestone:
		var m game.Milestone
		if ev.DecodePayload(&m) == nil {
			a.mu.Lock()
			a.banner = m.Message
			a.bannerUntil = time.Unix(0, ev.Timestamp).Add(bannerDuration)
			a.mu.Unlock()
		}
	}
}

func (a *App) celebrate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seed++
	a.confetti = render.NewConfetti(float64(a.width)*cellWidth, float64(a.height)*cellHeight, a.seed)
}

// notify shows the outcome modal; input stays blocked until it is dismissed
func (a *App) notify(o game.SessionOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.modal = &o
}

// Blocked reports whether the outcome modal is open
func (a *App) Blocked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.modal != nil
}

// Run drives input and drawing until quit or ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	a.screen.EnableMouse()
	a.screen.HideCursor()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok || !a.HandleEvent(ev) {
				return nil
			}
		case <-ticker.C:
			a.Tick()
			a.Draw()
		}
	}
}

// Close detaches from the engine
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// HandleEvent dispatches one tcell event and returns false to quit
func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return a.HandleKey(ev.Key(), ev.Rune())
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 != 0 {
			x, y := ev.Position()
			a.HandleClick(x, y)
		}
	case *tcell.EventResize:
		a.resize()
	}
	return true
}

// HandleKey applies a key press and returns false to quit
func (a *App) HandleKey(key tcell.Key, r rune) bool {
	if key == tcell.KeyEscape || key == tcell.KeyCtrlC {
		return false
	}

	if a.Blocked() {
		if key == tcell.KeyEnter {
			a.mu.Lock()
			a.modal = nil
			a.mu.Unlock()
		}
		return true
	}

	if key != tcell.KeyRune {
		return true
	}

	switch r {
	case 'q':
		return false
	case 's':
		a.engine.StartGame()
	case 'r':
		a.engine.ResetGame()
	case 'm':
		a.toggleMute()
	default:
		if r >= '1' && r <= '9' {
			if i := int(r - '1'); i < len(a.keys) {
				a.engine.SelectDifficulty(a.keys[i])
			}
		}
	}
	return true
}

// HandleClick catches the topmost drop under the cell at (x, y)
func (a *App) HandleClick(x, y int) {
	if a.Blocked() || y < hudRows {
		return
	}
	snap := a.engine.Snapshot()
	if !snap.Running() {
		return
	}
	px := (float64(x) + 0.5) * cellWidth
	py := (float64(y-hudRows) + 0.5) * cellHeight
	if d, ok := snap.DropAt(px, py, a.playHeight()); ok {
		a.engine.Catch(d.ID)
	}
}

func (a *App) toggleMute() {
	if a.mute == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := a.mute.Toggle(ctx); err != nil {
		logrus.WithError(err).Debug("mute preference not saved")
	}
}

// Tick advances animations by one frame
func (a *App) Tick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.confetti == nil {
		return
	}
	a.confetti.Step()
	if !a.confetti.Active() {
		a.confetti = nil
	}
}

func (a *App) resize() {
	a.screen.Sync()
	a.mu.Lock()
	a.width, a.height = a.screen.Size()
	width := a.playWidth()
	a.mu.Unlock()
	a.engine.SetPlayWidth(width)
}

// playWidth expects mu held or the App not yet shared
func (a *App) playWidth() float64 {
	return float64(a.width) * cellWidth
}

func (a *App) playHeight() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	rows := a.height - hudRows - footerRows
	if rows < 1 {
		rows = 1
	}
	return float64(rows) * cellHeight
}

// Draw renders the current engine snapshot
func (a *App) Draw() {
	snap := a.engine.Snapshot()
	playHeight := a.playHeight()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.screen.Clear()
	a.drawDrops(snap, playHeight)
	a.drawConfetti()
	a.drawHUD(snap)
	a.drawText(0, a.height-1, styleFooter, helpLine)
	if a.banner != "" && snap.Timestamp.Before(a.bannerUntil) {
		a.drawCentered(hudRows+1, styleBanner, a.banner)
	}
	if a.modal != nil {
		a.drawModal(*a.modal)
	}
	a.screen.Show()
}

func (a *App) drawHUD(snap game.Snapshot) {
	for x := 0; x < a.width; x++ {
		a.screen.SetContent(x, 0, ' ', nil, styleHUD)
	}
	sound := "sound on"
	if a.mute != nil && a.mute.Muted() {
		sound = "muted"
	}
	percent := snap.GoalPercent()
	hud := fmt.Sprintf(" Score: %d   Time: %ds   Goal: %d %s %d%%   [%s]   %s",
		snap.Score, snap.TimeRemaining, snap.Goal, goalBar(percent), percent, snap.Preview.Label, sound)
	a.drawText(0, 0, styleHUD, hud)
}

// goalBar renders percent as a fixed-width fill bar
func goalBar(percent int) string {
	filled := percent * goalBarCells / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", goalBarCells-filled)
}

func (a *App) drawDrops(snap game.Snapshot, playHeight float64) {
	bottom := a.height - footerRows
	for _, d := range snap.Drops {
		top := game.DropTop(d, snap.Timestamp, playHeight)
		x0, x1 := int(d.X/cellWidth), int((d.X+d.Size)/cellWidth)
		y0 := hudRows + int(math.Floor(top/cellHeight))
		y1 := hudRows + int(math.Ceil((top+d.Size)/cellHeight))
		style, glyph := dropStyles[d.Kind], dropGlyphs[d.Kind]
		for y := y0; y < y1; y++ {
			if y < hudRows || y >= bottom {
				continue
			}
			for x := x0; x < x1 && x < a.width; x++ {
				a.screen.SetContent(x, y, glyph, nil, style)
			}
		}
	}
}

func (a *App) drawConfetti() {
	if a.confetti == nil {
		return
	}
	for _, p := range a.confetti.Pieces {
		x, y := int(p.X/cellWidth), int(p.Y/cellHeight)
		if x < 0 || x >= a.width || y < hudRows || y >= a.height-footerRows {
			continue
		}
		c := p.Color
		style := styleDefault.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
		a.screen.SetContent(x, y, '*', nil, style)
	}
}

func (a *App) drawModal(o game.SessionOutcome) {
	lines := strings.Split(o.Text(), "\n")
	lines = append(lines, "", "Press Enter to continue")

	w := 0
	for _, l := range lines {
		if len(l) > w {
			w = len(l)
		}
	}
	w += 4
	h := len(lines) + 2
	x0, y0 := (a.width-w)/2, (a.height-h)/2

	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			a.screen.SetContent(x, y, ' ', nil, styleModal)
		}
	}
	for i, l := range lines {
		a.drawText(x0+2, y0+1+i, styleModal, l)
	}
}

func (a *App) drawCentered(y int, style tcell.Style, s string) {
	a.drawText((a.width-len([]rune(s)))/2, y, style, s)
}

func (a *App) drawText(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		if x >= a.width {
			return
		}
		if x >= 0 {
			a.screen.SetContent(x, y, r, nil, style)
		}
		x++
	}
}
