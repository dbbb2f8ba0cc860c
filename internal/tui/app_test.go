package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"drop-catch/internal/game"
	"drop-catch/internal/prefs"
)

var testEpoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	screen tcell.SimulationScreen
	sched  *game.ManualScheduler
	engine *game.Engine
	app    *App
	cues   []game.SoundCue
	mute   *prefs.Flag
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init failed: %v", err)
	}
	screen.SetSize(80, 30)
	t.Cleanup(screen.Fini)

	h := &harness{screen: screen, sched: game.NewManualScheduler(testEpoch)}
	h.engine = game.NewEngine(game.EngineConfig{
		GameID:    "TUI",
		Scheduler: h.sched,
		Seed:      1,
	})
	t.Cleanup(h.engine.Stop)

	flag, err := prefs.LoadFlag(context.Background(), prefs.NewMemoryStore(), "local")
	if err != nil {
		t.Fatal(err)
	}
	h.mute = flag

	h.app = New(Config{
		Screen: screen,
		Engine: h.engine,
		Sound:  game.SoundPlayerFunc(func(c game.SoundCue) { h.cues = append(h.cues, c) }),
		Mute:   flag,
		Seed:   7,
	})
	t.Cleanup(h.app.Close)
	return h
}

func (h *harness) row(y int) string {
	w, _ := h.screen.Size()
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := h.screen.GetContent(x, y)
		b.WriteRune(r)
	}
	return b.String()
}

func (h *harness) screenText() string {
	_, rows := h.screen.Size()
	lines := make([]string, rows)
	for y := range lines {
		lines[y] = h.row(y)
	}
	return strings.Join(lines, "\n")
}

// clickableGood advances the session until a good drop can be clicked
// without another drop covering it, and returns its cell.
func (h *harness) clickableGood(t *testing.T) (int, int) {
	t.Helper()
	for i := 0; i < 5; i++ {
		h.sched.Advance(time.Second)
		snap := h.engine.Snapshot()
		height := h.app.playHeight()
		for _, d := range snap.Drops {
			if d.Kind != game.DropGood {
				continue
			}
			top := game.DropTop(d, snap.Timestamp, height)
			x := int((d.X + d.Size/2) / cellWidth)
			y := int((top+d.Size/2)/cellHeight) + hudRows
			if y < hudRows {
				continue
			}
			px := (float64(x) + 0.5) * cellWidth
			py := (float64(y-hudRows) + 0.5) * cellHeight
			if hit, ok := snap.DropAt(px, py, height); ok && hit.ID == d.ID {
				return x, y
			}
		}
	}
	t.Fatal("no clickable good drop")
	return 0, 0
}

func TestDrawIdle(t *testing.T) {
	h := newHarness(t)
	h.app.Draw()

	hud := h.row(0)
	if !strings.Contains(hud, "Score: 0") || !strings.Contains(hud, "Time: 30s") || !strings.Contains(hud, "Goal: 20") {
		t.Errorf("unexpected HUD %q", hud)
	}
	if !strings.Contains(h.row(29), "s start") {
		t.Errorf("help line missing: %q", h.row(29))
	}
	if h.engine.Snapshot().PlayWidth != 80*cellWidth {
		t.Errorf("play width not synced to the terminal: %v", h.engine.Snapshot().PlayWidth)
	}
}

func TestKeysDriveEngine(t *testing.T) {
	h := newHarness(t)

	h.app.HandleKey(tcell.KeyRune, '3')
	if h.engine.Snapshot().Difficulty != "hard" {
		t.Errorf("3 should select hard, got %s", h.engine.Snapshot().Difficulty)
	}
	h.app.HandleKey(tcell.KeyRune, '9')
	if h.engine.Snapshot().Difficulty != "hard" {
		t.Error("keys without a profile are ignored")
	}

	h.app.HandleKey(tcell.KeyRune, 's')
	if h.engine.State() != game.StateRunning {
		t.Fatal("s should start a session")
	}

	h.sched.Advance(3 * time.Second)
	h.app.HandleKey(tcell.KeyRune, 'r')
	snap := h.engine.Snapshot()
	if snap.State != game.StateRunning || snap.Score != 0 || len(snap.Drops) != 0 {
		t.Errorf("r should restart cleanly: %+v", snap)
	}

	h.app.HandleKey(tcell.KeyRune, 'm')
	if !h.mute.Muted() {
		t.Error("m should mute")
	}
	h.app.Draw()
	if !strings.Contains(h.row(0), "muted") {
		t.Errorf("HUD should show mute state: %q", h.row(0))
	}

	if h.app.HandleKey(tcell.KeyRune, 'q') {
		t.Error("q should quit")
	}
	if h.app.HandleKey(tcell.KeyEscape, 0) {
		t.Error("Escape should quit")
	}
}

func TestClickCatchesDrop(t *testing.T) {
	h := newHarness(t)
	h.app.HandleKey(tcell.KeyRune, 's')

	x, y := h.clickableGood(t)
	h.app.HandleClick(x, y)

	if score := h.engine.Snapshot().Score; score != 1 {
		t.Errorf("click should catch the good drop, score %d", score)
	}
	if len(h.cues) != 1 || h.cues[0] != game.CueGoodCatch {
		t.Errorf("unexpected cues %v", h.cues)
	}

	h.app.HandleClick(0, 0)
	if h.engine.Snapshot().Score != 1 {
		t.Error("clicks on the HUD do nothing")
	}
}

func TestMutedClickIsSilent(t *testing.T) {
	h := newHarness(t)
	h.app.HandleKey(tcell.KeyRune, 'm')
	h.app.HandleKey(tcell.KeyRune, 's')

	x, y := h.clickableGood(t)
	h.app.HandleClick(x, y)
	if h.engine.Snapshot().Score != 1 {
		t.Fatal("click should still catch while muted")
	}
	if len(h.cues) != 0 {
		t.Errorf("muted client played %v", h.cues)
	}
}

func TestOutcomeModalBlocksInput(t *testing.T) {
	h := newHarness(t)
	h.app.HandleKey(tcell.KeyRune, '1')
	h.app.HandleKey(tcell.KeyRune, 's')

	h.sched.Advance(time.Duration(h.engine.Snapshot().TimeRemaining) * time.Second)
	if h.engine.State() != game.StateEnded {
		t.Fatalf("session should have ended, state %v", h.engine.State())
	}
	if !h.app.Blocked() {
		t.Fatal("outcome should open the modal")
	}

	h.app.Draw()
	if text := h.screenText(); !strings.Contains(text, "Your final score is: 0") || !strings.Contains(text, "Press Enter") {
		t.Errorf("modal not drawn:\n%s", text)
	}

	h.app.HandleKey(tcell.KeyRune, 's')
	if h.engine.State() != game.StateEnded {
		t.Error("keys must be ignored while the modal is open")
	}

	h.app.HandleKey(tcell.KeyEnter, 0)
	if h.app.Blocked() {
		t.Error("Enter should dismiss the modal")
	}
	h.app.HandleKey(tcell.KeyRune, 's')
	if h.engine.State() != game.StateRunning {
		t.Error("input should work after dismissal")
	}
}

func TestConfettiLifecycle(t *testing.T) {
	h := newHarness(t)

	h.app.celebrate()
	h.app.mu.Lock()
	active := h.app.confetti != nil
	h.app.mu.Unlock()
	if !active {
		t.Fatal("celebrate should start confetti")
	}

	h.app.HandleKey(tcell.KeyRune, 's')
	h.app.mu.Lock()
	cleared := h.app.confetti == nil
	h.app.mu.Unlock()
	if !cleared {
		t.Error("a new session should clear confetti")
	}

	h.app.celebrate()
	for i := 0; i < 600; i++ {
		h.app.Tick()
	}
	h.app.mu.Lock()
	done := h.app.confetti == nil
	h.app.mu.Unlock()
	if !done {
		t.Error("confetti should stop after its last frame")
	}
}

func TestMilestoneBanner(t *testing.T) {
	h := newHarness(t)
	h.app.OnEvent(game.NewEvent(game.EventTypeMilestone, h.engine.Now(), "TUI", 1, game.Milestone{Threshold: 5, Message: "High five!"}))
	h.app.Draw()

	if !strings.Contains(h.row(hudRows+1), "High five!") {
		t.Errorf("banner missing: %q", h.row(hudRows+1))
	}

	h.sched.Advance(3 * time.Second)
	h.app.Draw()
	if strings.Contains(h.row(hudRows+1), "High five!") {
		t.Error("banner should expire")
	}
}

func TestResize(t *testing.T) {
	h := newHarness(t)
	h.screen.SetSize(40, 20)
	h.app.HandleEvent(tcell.NewEventResize(40, 20))
	if h.engine.Snapshot().PlayWidth != 40*cellWidth {
		t.Errorf("play width = %v", h.engine.Snapshot().PlayWidth)
	}
}

func TestHUDGoalBar(t *testing.T) {
	h := newHarness(t)
	h.app.Draw()
	if hud := h.row(0); !strings.Contains(hud, "░░░░░░░░░░ 0%") {
		t.Errorf("idle HUD should show an empty goal bar: %q", hud)
	}

	h.engine.StartGame()
	for i := 0; i < 20 && h.engine.Snapshot().Score < 10; i++ {
		h.sched.Advance(time.Second)
		for _, d := range h.engine.Snapshot().Drops {
			if d.Kind == game.DropGood && h.engine.Snapshot().Score < 10 {
				h.engine.Catch(d.ID)
			}
		}
	}
	if got := h.engine.Snapshot().Score; got != 10 {
		t.Fatalf("score %d, want 10", got)
	}

	h.app.Draw()
	if hud := h.row(0); !strings.Contains(hud, "█████░░░░░ 50%") {
		t.Errorf("HUD should show half the goal: %q", hud)
	}
}
