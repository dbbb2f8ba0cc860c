package game

import (
	"testing"
	"time"
)

// recorder collects observer events
type recorder struct {
	events []Event
}

func (r *recorder) OnEvent(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) count(t EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) removals(reason RemovalReason) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type != EventTypeDropRemoved {
			continue
		}
		var p DropRemovedPayload
		if err := ev.DecodePayload(&p); err == nil && p.Reason == reason {
			n++
		}
	}
	return n
}

type testHarness struct {
	engine    *Engine
	sched     *ManualScheduler
	rec       *recorder
	outcomes  []SessionOutcome
	celebrate int
	cues      []SoundCue
}

func newHarness(t *testing.T, r Random, mutate func(cfg *EngineConfig)) *testHarness {
	t.Helper()
	h := &testHarness{
		sched: NewManualScheduler(testEpoch),
		rec:   &recorder{},
	}
	cfg := EngineConfig{
		GameID:     "TEST",
		Difficulty: "normal",
		PlayWidth:  800,
		Scheduler:  h.sched,
		Random:     r,
		Sound:      SoundPlayerFunc(func(c SoundCue) { h.cues = append(h.cues, c) }),
		Celebrator: CelebratorFunc(func() { h.celebrate++ }),
		Notifier:   NotifierFunc(func(o SessionOutcome) { h.outcomes = append(h.outcomes, o) }),
		Observers:  []Observer{h.rec},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h.engine = NewEngine(cfg)
	return h
}

// catchAll catches every live drop of the given kind
func (h *testHarness) catchAll(kind DropKind) int {
	n := 0
	for _, d := range h.engine.Snapshot().Drops {
		if d.Kind == kind && h.engine.Catch(d.ID) {
			n++
		}
	}
	return n
}

// catchGoodUntil catches good drops while the score is below target
func (h *testHarness) catchGoodUntil(target int) {
	for _, d := range h.engine.Snapshot().Drops {
		if h.engine.Snapshot().Score >= target {
			return
		}
		if d.Kind == DropGood {
			h.engine.Catch(d.ID)
		}
	}
}

// endByCountdown plays a session to its countdown end reaching score
func (h *testHarness) endByCountdown(t *testing.T, score int) {
	t.Helper()
	h.engine.StartGame()
	for i := 0; i < 29; i++ {
		h.sched.Advance(time.Second)
		h.catchGoodUntil(score)
	}
	if got := h.engine.Snapshot().Score; got != score {
		t.Fatalf("score %d before the last tick, want %d", got, score)
	}
	h.sched.Advance(time.Second)
	if h.engine.State() != StateEnded {
		t.Fatalf("state %v after the countdown, want ended", h.engine.State())
	}
}

func contains(pool []string, s string) bool {
	for _, p := range pool {
		if p == s {
			return true
		}
	}
	return false
}

func TestStartGameIsIdempotent(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)

	if !h.engine.StartGame() {
		t.Fatal("first StartGame should start a session")
	}
	h.sched.Advance(3 * time.Second)
	if h.engine.StartGame() {
		t.Error("StartGame while running must be a no-op")
	}

	snap := h.engine.Snapshot()
	if snap.SessionID != 1 || snap.TimeRemaining != 27 {
		t.Errorf("session disturbed: id=%d time=%d", snap.SessionID, snap.TimeRemaining)
	}
	if h.sched.Pending() != 2 {
		t.Errorf("Expected one spawn and one countdown schedule, got %d", h.sched.Pending())
	}
	if h.rec.count(EventTypeSessionStarted) != 1 {
		t.Errorf("Expected one session_started event, got %d", h.rec.count(EventTypeSessionStarted))
	}
}

func TestIdleSnapshotPreviewsSelection(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)

	snap := h.engine.Snapshot()
	if snap.State != StateIdle || snap.TimeRemaining != 30 || snap.Goal != 20 {
		t.Errorf("unexpected idle snapshot: %+v", snap)
	}

	preview := h.engine.SelectDifficulty("easy")
	if preview.Goal != 15 || preview.DurationSeconds != 40 {
		t.Errorf("unexpected preview %+v", preview)
	}
	if h.engine.Snapshot().TimeRemaining != 40 {
		t.Error("idle timer should follow the selected profile")
	}
}

func TestCountdownWin(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)
	h.engine.StartGame()

	caught := 0
	for i := 0; i < 29; i++ {
		h.sched.Advance(time.Second)
		caught += h.catchAll(DropGood)
	}
	if got := h.engine.Snapshot().Score; got != caught {
		t.Fatalf("score %d, caught %d", got, caught)
	}

	h.sched.Advance(time.Second)

	if len(h.outcomes) != 1 {
		t.Fatalf("Expected one outcome, got %d", len(h.outcomes))
	}
	o := h.outcomes[0]
	if o.Result != ResultWin || o.Reason != EndCountdown || !o.Celebrate {
		t.Errorf("unexpected outcome %+v", o)
	}
	if o.FinalScore != caught || o.Goal != 20 {
		t.Errorf("final score %d/%d, want %d/20", o.FinalScore, o.Goal, caught)
	}
	if !contains(WinMessages, o.Message) {
		t.Errorf("message %q not from the win pool", o.Message)
	}
	if h.celebrate != 1 {
		t.Errorf("Expected one celebration, got %d", h.celebrate)
	}

	snap := h.engine.Snapshot()
	if snap.State != StateEnded || snap.Score != 0 || snap.TimeRemaining != 0 || len(snap.Drops) != 0 {
		t.Errorf("unexpected ended snapshot: %+v", snap)
	}
	if snap.LastOutcome == nil || snap.LastOutcome.FinalScore != caught {
		t.Error("snapshot should carry the last outcome")
	}
	if h.sched.Pending() != 0 {
		t.Errorf("schedules left armed: %d", h.sched.Pending())
	}
}

func TestCountdownLose(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)
	h.engine.StartGame()

	h.sched.Advance(10 * time.Second)
	if got := h.engine.Snapshot().TimeRemaining; got != 20 {
		t.Fatalf("TimeRemaining = %d after 10s, want 20", got)
	}
	h.sched.Advance(20 * time.Second)

	if len(h.outcomes) != 1 {
		t.Fatalf("Expected one outcome, got %d", len(h.outcomes))
	}
	o := h.outcomes[0]
	if o.Result != ResultLose || o.Reason != EndCountdown || o.Celebrate {
		t.Errorf("unexpected outcome %+v", o)
	}
	if !contains(LoseMessages, o.Message) {
		t.Errorf("message %q not from the lose pool", o.Message)
	}
	if h.celebrate != 0 {
		t.Error("a loss must not celebrate")
	}

	h.sched.Advance(10 * time.Second)
	if len(h.outcomes) != 1 || len(h.engine.Snapshot().Drops) != 0 {
		t.Error("nothing may happen after the session ended")
	}
}

func TestCountdownThreshold(t *testing.T) {
	tests := []struct {
		name      string
		score     int
		want      Result
		celebrate int
	}{
		{"exactly the goal wins", 20, ResultWin, 1},
		{"one short loses", 19, ResultLose, 0},
		{"partial score loses", 10, ResultLose, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, fixedRandom{f: 0.99}, nil)
			h.endByCountdown(t, tt.score)

			if len(h.outcomes) != 1 {
				t.Fatalf("Expected one outcome, got %d", len(h.outcomes))
			}
			o := h.outcomes[0]
			if o.Result != tt.want || o.FinalScore != tt.score || o.Goal != 20 {
				t.Errorf("unexpected outcome %+v", o)
			}
			if o.Celebrate != (tt.celebrate == 1) || h.celebrate != tt.celebrate {
				t.Errorf("celebrations = %d (flag %v), want %d", h.celebrate, o.Celebrate, tt.celebrate)
			}
		})
	}
}

func TestBombEndsSession(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0}, nil)
	h.engine.StartGame()

	h.sched.Advance(18 * time.Second)
	if got := h.engine.Snapshot().TimeRemaining; got != 12 {
		t.Fatalf("TimeRemaining = %d, want 12", got)
	}
	scored := h.catchAll(DropGood)
	if scored == 0 {
		t.Fatal("Expected good drops on screen")
	}

	var bomb Drop
	for _, d := range h.engine.Snapshot().Drops {
		if d.Kind == DropBomb {
			bomb = d
		}
	}
	if bomb.ID == 0 {
		t.Fatal("Expected a bomb on screen")
	}
	if !h.engine.Catch(bomb.ID) {
		t.Fatal("catching a live bomb should be accepted")
	}

	if len(h.outcomes) != 1 {
		t.Fatalf("Expected one outcome, got %d", len(h.outcomes))
	}
	o := h.outcomes[0]
	if o.Result != ResultLose || o.Reason != EndBomb || o.Celebrate {
		t.Errorf("unexpected outcome %+v", o)
	}
	if o.FinalScore != scored {
		t.Errorf("FinalScore = %d, want %d", o.FinalScore, scored)
	}
	if !contains(BombMessages, o.Message) {
		t.Errorf("message %q not from the bomb pool", o.Message)
	}
	if len(h.cues) == 0 || h.cues[len(h.cues)-1] != CueBomb {
		t.Errorf("Expected the bomb cue last, got %v", h.cues)
	}

	snap := h.engine.Snapshot()
	if snap.State != StateEnded || snap.Score != 0 || snap.TimeRemaining != 0 || len(snap.Drops) != 0 {
		t.Errorf("unexpected snapshot after bomb: %+v", snap)
	}
	if h.sched.Pending() != 0 {
		t.Errorf("schedules left armed: %d", h.sched.Pending())
	}
}

func TestResetGameStartsFresh(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)
	h.engine.StartGame()
	h.sched.Advance(5 * time.Second)
	h.catchAll(DropGood)

	if !h.engine.ResetGame() {
		t.Fatal("ResetGame should start a new session")
	}

	snap := h.engine.Snapshot()
	if snap.State != StateRunning || snap.Score != 0 || snap.TimeRemaining != 30 || len(snap.Drops) != 0 {
		t.Errorf("unexpected snapshot after reset: %+v", snap)
	}
	if snap.SessionID != 2 {
		t.Errorf("Expected a second session, got %d", snap.SessionID)
	}
	if h.sched.Pending() != 2 {
		t.Errorf("Expected exactly one set of schedules, got %d", h.sched.Pending())
	}
	if len(h.outcomes) != 0 {
		t.Error("reset must not report an outcome")
	}
	if h.rec.removals(RemovedCleared) == 0 {
		t.Error("reset should clear the live drops")
	}

	h.sched.Advance(time.Second)
	if got := h.engine.Snapshot().TimeRemaining; got != 29 {
		t.Errorf("old countdown still running: time=%d", got)
	}
}

func TestResetAfterSessionEnded(t *testing.T) {
	tests := []struct {
		name string
		rng  Random
		end  func(t *testing.T, h *testHarness)
	}{
		{"after countdown", fixedRandom{f: 0.99}, func(t *testing.T, h *testHarness) {
			h.endByCountdown(t, 5)
		}},
		{"after bomb", fixedRandom{f: 0}, func(t *testing.T, h *testHarness) {
			h.engine.StartGame()
			h.sched.Advance(4 * time.Second)
			h.catchAll(DropGood)
			for _, d := range h.engine.Snapshot().Drops {
				if d.Kind == DropBomb {
					h.engine.Catch(d.ID)
					break
				}
			}
			if h.engine.State() != StateEnded {
				t.Fatal("bomb should have ended the session")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.rng, nil)
			tt.end(t, h)

			if !h.engine.ResetGame() {
				t.Fatal("ResetGame should start a new session")
			}
			snap := h.engine.Snapshot()
			if snap.State != StateRunning || snap.Score != 0 || snap.TimeRemaining != 30 || len(snap.Drops) != 0 {
				t.Errorf("unexpected snapshot after reset: %+v", snap)
			}
			if snap.SessionID != 2 {
				t.Errorf("SessionID = %d, want 2", snap.SessionID)
			}
			if h.sched.Pending() != 2 {
				t.Errorf("Expected exactly one set of schedules, got %d", h.sched.Pending())
			}
			if len(h.outcomes) != 1 {
				t.Errorf("reset must not report another outcome, got %d", len(h.outcomes))
			}

			h.sched.Advance(time.Second)
			if got := h.engine.Snapshot().TimeRemaining; got != 29 {
				t.Errorf("TimeRemaining = %d one second after reset, want 29", got)
			}
		})
	}
}

func TestStartGameAfterSessionEnded(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)
	h.endByCountdown(t, 3)

	if !h.engine.StartGame() {
		t.Fatal("StartGame after the session ended should start a new one")
	}
	snap := h.engine.Snapshot()
	if snap.State != StateRunning || snap.Score != 0 || snap.TimeRemaining != 30 || snap.SessionID != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if h.sched.Pending() != 2 {
		t.Errorf("Expected exactly one set of schedules, got %d", h.sched.Pending())
	}
	if h.engine.StartGame() {
		t.Error("second StartGame must be a no-op")
	}
}

func TestScoreNeverNegative(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)
	h.engine.StartGame()

	for i := 0; i < 3; i++ {
		h.sched.Advance(time.Second)
		h.catchAll(DropBad)
		if s := h.engine.Snapshot().Score; s != 0 {
			t.Fatalf("score went to %d", s)
		}
	}
	if h.rec.count(EventTypeScoreChanged) != 1 {
		t.Error("unchanged score should not be broadcast")
	}
}

func TestSingleResolutionPerDrop(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)
	h.engine.StartGame()
	h.sched.Advance(time.Second)

	drops := h.engine.Snapshot().Drops
	good := drops[0]

	if !h.engine.Catch(good.ID) {
		t.Fatal("first catch should count")
	}
	if h.engine.Catch(good.ID) || h.engine.Expire(good.ID) {
		t.Error("a resolved drop must ignore further interactions")
	}
	if h.engine.Catch(9999) {
		t.Error("unknown drop must be ignored")
	}
	if h.engine.Snapshot().Score != 1 {
		t.Errorf("Expected score 1, got %d", h.engine.Snapshot().Score)
	}

	if !h.engine.Expire(drops[1].ID) {
		t.Fatal("expiring a live drop should be accepted")
	}
	if h.engine.Snapshot().Score != 1 {
		t.Error("expiry must not change the score")
	}
}

func TestCapRespectedEverySpawn(t *testing.T) {
	h := newHarness(t, NewRandom(3), nil)
	h.engine.StartGame()

	for i := 0; i < 25; i++ {
		h.sched.Advance(time.Second)
		if n := len(h.engine.Snapshot().Drops); n > 15 {
			t.Fatalf("second %d: %d live drops", i+1, n)
		}
	}
	if h.rec.removals(RemovedEvicted) == 0 {
		t.Error("Expected evictions once the cap was reached")
	}
}

func TestAutoExpire(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, func(cfg *EngineConfig) {
		cfg.AutoExpire = true
	})
	h.engine.StartGame()

	// desktop fall is 1.99s: the first batch expires before the third spawn
	h.sched.Advance(3 * time.Second)

	if got := h.rec.removals(RemovedExpired); got != 2 {
		t.Errorf("Expected 2 expirations, got %d", got)
	}
	if got := len(h.engine.Snapshot().Drops); got != 4 {
		t.Errorf("Expected 4 live drops, got %d", got)
	}
	if len(h.cues) != 0 || h.engine.Snapshot().Score != 0 {
		t.Error("expiry must be silent and free")
	}

	h.engine.ResetGame()
	if h.sched.Pending() != 2 {
		t.Errorf("expiry timers must be cancelled on reset, %d pending", h.sched.Pending())
	}
}

func TestDifficultyDoesNotAffectRunningSession(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)
	h.engine.StartGame()

	h.engine.SelectDifficulty("hard")
	snap := h.engine.Snapshot()
	if snap.Goal != 20 || snap.Preview.Goal != 25 {
		t.Errorf("goal=%d preview=%d, want 20 and 25", snap.Goal, snap.Preview.Goal)
	}

	h.engine.ResetGame()
	snap = h.engine.Snapshot()
	if snap.Goal != 25 || snap.TimeRemaining != 25 || snap.Difficulty != "hard" {
		t.Errorf("new session should use hard: %+v", snap)
	}

	if h.engine.SelectDifficulty("bogus").Key != "normal" {
		t.Error("unknown key should select the default profile")
	}
}

func TestMilestoneEvents(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)
	h.engine.StartGame()

	for i := 0; i < 12; i++ {
		h.sched.Advance(time.Second)
		h.catchAll(DropGood)
	}

	if got := h.rec.count(EventTypeMilestone); got != 2 {
		t.Errorf("Expected milestones 5 and 10, got %d events", got)
	}
	shown := thresholds(h.engine.Snapshot().Milestones)
	if !equalInts(shown, []int{5, 10}) {
		t.Errorf("shown milestones %v", shown)
	}
}

func TestPanickingCollaboratorsAreIgnored(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, func(cfg *EngineConfig) {
		cfg.Sound = SoundPlayerFunc(func(SoundCue) { panic("device gone") })
		cfg.Observers = append(cfg.Observers, ObserverFunc(func(Event) { panic("observer") }))
	})
	h.engine.StartGame()
	h.sched.Advance(time.Second)

	if h.catchAll(DropGood) != 1 || h.engine.Snapshot().Score != 1 {
		t.Error("a panicking collaborator must not disturb the session")
	}
}

func TestMissingCollaborators(t *testing.T) {
	sched := NewManualScheduler(testEpoch)
	e := NewEngine(EngineConfig{Scheduler: sched, Random: fixedRandom{f: 0.99}})
	e.StartGame()
	sched.Advance(31 * time.Second)

	if _, ok := e.LastOutcome(); !ok {
		t.Error("session should end without any collaborators")
	}
}

func TestMuteGate(t *testing.T) {
	var played []SoundCue
	player := SoundPlayerFunc(func(c SoundCue) { played = append(played, c) })
	muted := muteFlag(true)

	MuteGate{Player: player, Pref: &muted}.Play(CueGoodCatch)
	if len(played) != 0 {
		t.Error("muted gate played a cue")
	}

	muted = false
	MuteGate{Player: player, Pref: &muted}.Play(CueGoodCatch)
	MuteGate{Player: player}.Play(CueNone)
	if len(played) != 1 {
		t.Errorf("Expected one cue, got %v", played)
	}
}

type muteFlag bool

func (m *muteFlag) Muted() bool { return bool(*m) }

func TestSubscribeUnsubscribe(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)
	extra := &recorder{}
	unsubscribe := h.engine.Subscribe(extra)

	h.engine.StartGame()
	seen := len(extra.events)
	if seen == 0 {
		t.Fatal("subscriber received nothing")
	}

	unsubscribe()
	unsubscribe()
	h.sched.Advance(time.Second)
	if len(extra.events) != seen {
		t.Error("unsubscribed observer still receives events")
	}
	if len(h.rec.events) <= seen {
		t.Error("remaining observers should keep receiving events")
	}
}

func TestStopIsFinal(t *testing.T) {
	h := newHarness(t, fixedRandom{f: 0.99}, nil)
	h.engine.StartGame()
	h.engine.Stop()
	h.engine.Stop()

	if h.sched.Pending() != 0 {
		t.Errorf("Stop left %d schedules", h.sched.Pending())
	}
	if h.engine.StartGame() || h.engine.ResetGame() {
		t.Error("a stopped engine must not start again")
	}
}
