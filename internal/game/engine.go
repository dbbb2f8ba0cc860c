package game

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EngineConfig configures one single-player game. Zero values pick defaults.
type EngineConfig struct {
	GameID     string
	Profiles   *ProfileStore
	Difficulty string
	Platform   Platform
	PlayWidth  float64
	Milestones []Milestone // nil means DefaultMilestones
	Messages   *MessagePools
	Scheduler  Scheduler
	Random     Random
	Seed       int64 // used when Random is nil; zero seeds from the clock

	// AutoExpire schedules each drop's expiry at its fall duration. Hosts
	// that animate drops themselves leave it off and call Expire.
	AutoExpire bool

	Sound      SoundPlayer
	Celebrator Celebrator
	Notifier   Notifier
	Observers  []Observer
}

type observerEntry struct {
	id       uint64
	observer Observer
}

// Engine is the session controller for one game instance. It owns the profile
// selection, the session, the drop population and the clock, and serializes
// every mutation behind one mutex: schedule callbacks and interactions each run
// to completion while holding it.
//
// Collaborators and observers are invoked synchronously with the lock held and
// must not call back into the engine.
type Engine struct {
	mu sync.Mutex

	id         string
	profiles   *ProfileStore
	selected   string
	platform   Platform
	milestones []Milestone
	messages   MessagePools

	scheduler Scheduler
	rng       Random
	clock     *SessionClock
	drops     *Population

	session     *Session
	sessionSeq  uint64
	lastOutcome *SessionOutcome

	autoExpire bool
	expiry     map[DropID]CancelFunc

	// Event callbacks
	sound      SoundPlayer
	celebrator Celebrator
	notifier   Notifier
	observers  []observerEntry
	observerID uint64
	eventSeq   uint64

	lastActivity time.Time
	stopped      bool
}

// NewEngine creates an idle engine
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Profiles == nil {
		cfg.Profiles = DefaultProfileStore()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewRealScheduler()
	}
	if cfg.Random == nil {
		cfg.Random = NewRandom(cfg.Seed)
	}
	if cfg.Milestones == nil {
		cfg.Milestones = DefaultMilestones
	}
	messages := DefaultMessagePools()
	if cfg.Messages != nil {
		messages = *cfg.Messages
	}

	e := &Engine{
		id:           cfg.GameID,
		profiles:     cfg.Profiles,
		selected:     cfg.Profiles.ResolveActive(cfg.Difficulty).Key,
		platform:     cfg.Platform,
		milestones:   append([]Milestone(nil), cfg.Milestones...),
		messages:     messages,
		scheduler:    cfg.Scheduler,
		rng:          cfg.Random,
		clock:        NewSessionClock(cfg.Scheduler),
		autoExpire:   cfg.AutoExpire,
		expiry:       make(map[DropID]CancelFunc),
		sound:        cfg.Sound,
		celebrator:   cfg.Celebrator,
		notifier:     cfg.Notifier,
		lastActivity: cfg.Scheduler.Now(),
	}
	e.drops = NewPopulation(cfg.Random, cfg.PlayWidth, cfg.Scheduler.Now)
	for _, o := range cfg.Observers {
		e.subscribeLocked(o)
	}
	return e
}

// ID returns the game id
func (e *Engine) ID() string {
	return e.id
}

// Profiles returns the profile store the engine selects from
func (e *Engine) Profiles() *ProfileStore {
	return e.profiles
}

// StartGame begins a session with the selected profile. It is a no-op while a
// session is running and returns whether a session was started.
func (e *Engine) StartGame() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.touchLocked()
	if e.stopped || (e.session != nil && e.session.State() == StateRunning) {
		return false
	}
	e.startLocked()
	return true
}

// ResetGame discards the current session without an outcome and starts a
// fresh one: schedules cancelled, drops cleared, score zero, full timer.
func (e *Engine) ResetGame() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.touchLocked()
	if e.stopped {
		return false
	}
	e.haltLocked()
	e.session = nil
	e.startLocked()
	return true
}

// Catch resolves a player interaction with a drop. Returns false for unknown,
// evicted or already-resolved drops and when no session is running.
func (e *Engine) Catch(id DropID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.touchLocked()
	if !e.runningLocked() {
		return false
	}

	delta, ok := e.drops.Resolve(id, ResolutionCaught)
	if !ok {
		return false
	}
	e.cancelExpiryLocked(id)
	e.emitLocked(EventTypeDropRemoved, DropRemovedPayload{DropID: id, Kind: delta.Kind, Reason: RemovedCaught})
	e.playLocked(delta.Cue)

	if delta.Terminal {
		e.endLocked(EndBomb)
		return true
	}
	e.applyScoreLocked(delta.Points)
	return true
}

// Expire reports that a drop fell out of the play area. Expiry never scores.
func (e *Engine) Expire(id DropID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.touchLocked()
	return e.expireLocked(id)
}

// SelectDifficulty changes the profile used by the next session and returns
// its preview. Unknown keys select the default profile. A running session
// keeps the profile it started with.
func (e *Engine) SelectDifficulty(key string) Preview {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.touchLocked()
	e.selected = e.profiles.ResolveActive(key).Key
	preview := e.profiles.Preview(e.selected)
	e.emitLocked(EventTypeDifficultyChanged, DifficultyPayload{Preview: preview})
	return preview
}

// SetPlatform updates the platform class used for upcoming spawns
func (e *Engine) SetPlatform(p Platform) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.platform = p
	if e.session != nil {
		e.session.Platform = p
	}
}

// SetPlayWidth updates the horizontal extent used for upcoming spawns
func (e *Engine) SetPlayWidth(w float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drops.SetPlayWidth(w)
}

// SetSound replaces the sound collaborator
func (e *Engine) SetSound(s SoundPlayer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sound = s
}

// SetCelebrator replaces the celebration collaborator
func (e *Engine) SetCelebrator(c Celebrator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.celebrator = c
}

// SetNotifier replaces the outcome collaborator
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

// Subscribe registers an observer and returns its unsubscribe function
func (e *Engine) Subscribe(o Observer) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.subscribeLocked(o)
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, entry := range e.observers {
				if entry.id == id {
					e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Stop halts the engine for good. The running session, if any, is discarded
// without an outcome. Stopping twice is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	e.haltLocked()
	e.stopped = true
	logrus.WithField("game", e.id).Debug("🛑 Game engine stopped")
}

// Snapshot returns an immutable copy of the engine state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	preview := e.profiles.Preview(e.selected)
	snap := Snapshot{
		GameID:     e.id,
		State:      StateIdle,
		Difficulty: e.selected,
		Preview:    preview,
		Goal:       preview.Goal,
		Platform:   e.platform,
		PlayWidth:  e.drops.PlayWidth(),
		Drops:      e.drops.Live(),
		Timestamp:  e.scheduler.Now(),
	}
	// before the first session the timer previews the selected duration
	snap.TimeRemaining = preview.DurationSeconds

	if s := e.session; s != nil {
		snap.SessionID = s.ID
		snap.State = s.State()
		snap.Score = s.Score()
		snap.TimeRemaining = s.TimeRemaining
		snap.Goal = s.Profile.WinScoreThreshold
		snap.Milestones = s.board.Shown()
	}
	if e.lastOutcome != nil {
		outcome := *e.lastOutcome
		snap.LastOutcome = &outcome
	}
	return snap
}

// State returns the current session state
func (e *Engine) State() SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return StateIdle
	}
	return e.session.State()
}

// LastOutcome returns the outcome of the most recently ended session
func (e *Engine) LastOutcome() (SessionOutcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastOutcome == nil {
		return SessionOutcome{}, false
	}
	return *e.lastOutcome, true
}

// LastActivity returns the time of the last player-driven call
func (e *Engine) LastActivity() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActivity
}

// Now returns the engine's scheduler time
func (e *Engine) Now() time.Time {
	return e.scheduler.Now()
}

// startLocked opens a new session and arms the clock
func (e *Engine) startLocked() {
	profile := e.profiles.ResolveActive(e.selected)
	e.sessionSeq++
	e.session = newSession(e.sessionSeq, profile, e.platform, e.milestones, e.scheduler.Now())

	e.clock.Start(profile.SpawnInterval(), e.onSpawn, e.onCountdown)

	e.emitLocked(EventTypeSessionStarted, SessionStartedPayload{
		Difficulty:    profile.Key,
		Platform:      e.platform,
		Goal:          profile.WinScoreThreshold,
		TimeRemaining: e.session.TimeRemaining,
		SpawnMs:       profile.SpawnIntervalMs,
	})
	e.emitLocked(EventTypeScoreChanged, ScorePayload{Score: 0})
	e.emitLocked(EventTypeTimerChanged, TimerPayload{TimeRemaining: e.session.TimeRemaining})

	logrus.WithFields(logrus.Fields{
		"game":       e.id,
		"session":    e.session.ID,
		"difficulty": profile.Key,
		"platform":   e.platform,
	}).Info("🎮 Session started")
}

// haltLocked stops the clock and clears every drop
func (e *Engine) haltLocked() {
	e.clock.Stop()
	for id, cancel := range e.expiry {
		cancel()
		delete(e.expiry, id)
	}
	for _, d := range e.drops.Clear() {
		e.emitLocked(EventTypeDropRemoved, DropRemovedPayload{DropID: d.ID, Kind: d.Kind, Reason: RemovedCleared})
	}
}

// endLocked finishes the running session and reports its outcome
func (e *Engine) endLocked(reason EndReason) {
	s := e.session
	e.haltLocked()

	final := s.board.Finish()
	s.TimeRemaining = 0

	result := ResultLose
	if reason == EndCountdown && final >= s.Profile.WinScoreThreshold {
		result = ResultWin
	}
	outcome := SessionOutcome{
		SessionID:  s.ID,
		Result:     result,
		Reason:     reason,
		Message:    e.messages.pick(e.rng, result, reason),
		FinalScore: final,
		Goal:       s.Profile.WinScoreThreshold,
		Celebrate:  result == ResultWin,
		EndedAt:    e.scheduler.Now(),
	}
	e.lastOutcome = &outcome

	e.emitLocked(EventTypeScoreChanged, ScorePayload{Score: 0, Delta: -final})
	e.emitLocked(EventTypeTimerChanged, TimerPayload{TimeRemaining: 0})
	e.emitLocked(EventTypeSessionEnded, outcome)

	if outcome.Celebrate {
		e.emitLocked(EventTypeCelebrate, nil)
		if e.celebrator != nil {
			safely("celebrator", e.celebrator.Celebrate)
		}
	}
	if e.notifier != nil {
		safely("notifier", func() { e.notifier.NotifyOutcome(outcome) })
	}

	logrus.WithFields(logrus.Fields{
		"game":    e.id,
		"session": s.ID,
		"result":  result,
		"reason":  reason,
		"score":   final,
		"goal":    outcome.Goal,
	}).Info("🏁 Session ended")
}

// onSpawn is the spawn schedule callback
func (e *Engine) onSpawn(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.clock.Live(epoch) {
		return
	}

	ev := e.drops.Spawn(e.session.Profile, e.platform)
	for _, d := range ev.Evicted {
		e.cancelExpiryLocked(d.ID)
		e.emitLocked(EventTypeDropRemoved, DropRemovedPayload{DropID: d.ID, Kind: d.Kind, Reason: RemovedEvicted})
	}
	for _, d := range ev.Spawned {
		e.emitLocked(EventTypeDropSpawned, DropSpawnedPayload{Drop: d})
		if e.autoExpire {
			id := d.ID
			e.expiry[id] = e.scheduler.After(d.FallDuration, func() { e.onExpiry(epoch, id) })
		}
	}
}

// onCountdown is the countdown schedule callback
func (e *Engine) onCountdown(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.clock.Live(epoch) {
		return
	}

	done := e.session.countdown()
	e.emitLocked(EventTypeTimerChanged, TimerPayload{TimeRemaining: e.session.TimeRemaining})
	if done {
		e.endLocked(EndCountdown)
	}
}

// onExpiry is a per-drop expiry timer callback
func (e *Engine) onExpiry(epoch uint64, id DropID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.clock.Live(epoch) {
		return
	}
	e.expireLocked(id)
}

func (e *Engine) expireLocked(id DropID) bool {
	if !e.runningLocked() {
		return false
	}
	delta, ok := e.drops.Resolve(id, ResolutionExpired)
	if !ok {
		return false
	}
	e.cancelExpiryLocked(id)
	e.emitLocked(EventTypeDropRemoved, DropRemovedPayload{DropID: id, Kind: delta.Kind, Reason: RemovedExpired})
	return true
}

func (e *Engine) applyScoreLocked(points int) {
	before := e.session.Score()
	reached := e.session.board.ApplyDelta(points)
	after := e.session.Score()
	if after != before {
		e.emitLocked(EventTypeScoreChanged, ScorePayload{Score: after, Delta: after - before})
	}
	for _, m := range reached {
		e.emitLocked(EventTypeMilestone, m)
	}
}

func (e *Engine) playLocked(cue SoundCue) {
	if cue == CueNone {
		return
	}
	e.emitLocked(EventTypeSound, SoundPayload{Cue: cue})
	if e.sound != nil {
		safely("sound", func() { e.sound.Play(cue) })
	}
}

func (e *Engine) cancelExpiryLocked(id DropID) {
	if cancel, ok := e.expiry[id]; ok {
		cancel()
		delete(e.expiry, id)
	}
}

func (e *Engine) runningLocked() bool {
	return e.session != nil && e.session.State() == StateRunning
}

func (e *Engine) touchLocked() {
	e.lastActivity = e.scheduler.Now()
}

func (e *Engine) subscribeLocked(o Observer) uint64 {
	e.observerID++
	e.observers = append(e.observers, observerEntry{id: e.observerID, observer: o})
	return e.observerID
}

// emitLocked stamps an event and fans it out to observers in subscription order
func (e *Engine) emitLocked(t EventType, payload interface{}) {
	if len(e.observers) == 0 {
		return
	}

	var sessionID uint64
	if e.session != nil {
		sessionID = e.session.ID
	}
	e.eventSeq++
	ev := NewEvent(t, e.scheduler.Now(), e.id, sessionID, payload)
	ev.Sequence = e.eventSeq

	for _, entry := range e.observers {
		o := entry.observer
		safely("observer", func() { o.OnEvent(ev) })
	}
}
