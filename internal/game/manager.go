package game

import (
	"crypto/rand"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrTooManyGames = errors.New("too many active games")
)

const gameIDChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GameIDLength is the length of generated game ids
const GameIDLength = 8

// ManagerConfig configures the game host
type ManagerConfig struct {
	Profiles    *ProfileStore
	Milestones  []Milestone
	MaxGames    int           // zero means unlimited
	IdleTimeout time.Duration // zero disables reaping
	ReapEvery   time.Duration
	AutoExpire  bool

	// NewScheduler builds a scheduler per game; nil uses RealScheduler
	NewScheduler func() Scheduler
	// Now is the reaper's clock; nil uses time.Now
	Now func() time.Time

	// Observers are subscribed to every game on creation
	Observers []Observer
	// OnCreate and OnRemove let hosts attach and detach per-game sinks
	OnCreate func(g *Game)
	OnRemove func(g *Game)
}

// GameOptions are the client-supplied parameters of a new game
type GameOptions struct {
	Difficulty    string  `json:"difficulty"`
	ViewportWidth int     `json:"viewportWidth"`
	UserAgent     string  `json:"userAgent"`
	PlayerID      string  `json:"playerId"`
	PlayWidth     float64 `json:"playWidth"`
	Seed          int64   `json:"seed,omitempty"`
}

// Game is one hosted engine plus its metadata
type Game struct {
	ID        string
	PlayerID  string
	CreatedAt time.Time
	Engine    *Engine
}

// GameInfo is the listing view of a hosted game
type GameInfo struct {
	ID            string       `json:"id"`
	PlayerID      string       `json:"playerId,omitempty"`
	State         SessionState `json:"state"`
	Difficulty    string       `json:"difficulty"`
	Platform      Platform     `json:"platform"`
	Score         int          `json:"score"`
	TimeRemaining int          `json:"timeRemaining"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Manager hosts many independent single-player games keyed by id
type Manager struct {
	mu    sync.RWMutex
	cfg   ManagerConfig
	games map[string]*Game

	stopChan chan struct{}
	stopOnce sync.Once
	running  bool
	wg       sync.WaitGroup
}

// NewManager creates an empty game host
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Profiles == nil {
		cfg.Profiles = DefaultProfileStore()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ReapEvery <= 0 {
		cfg.ReapEvery = time.Minute
	}
	return &Manager{
		cfg:      cfg,
		games:    make(map[string]*Game),
		stopChan: make(chan struct{}),
	}
}

// Profiles returns the profile store shared by every game
func (m *Manager) Profiles() *ProfileStore {
	return m.cfg.Profiles
}

// Create builds a new idle game. The platform is classified from the
// viewport width and user agent.
func (m *Manager) Create(opts GameOptions) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxGames > 0 && len(m.games) >= m.cfg.MaxGames {
		return nil, ErrTooManyGames
	}

	id := generateGameID(GameIDLength)
	for m.games[id] != nil {
		id = generateGameID(GameIDLength)
	}

	var scheduler Scheduler
	if m.cfg.NewScheduler != nil {
		scheduler = m.cfg.NewScheduler()
	}

	engine := NewEngine(EngineConfig{
		GameID:     id,
		Profiles:   m.cfg.Profiles,
		Difficulty: opts.Difficulty,
		Platform:   ClassifyPlatform(opts.ViewportWidth, opts.UserAgent),
		PlayWidth:  opts.PlayWidth,
		Milestones: m.cfg.Milestones,
		Scheduler:  scheduler,
		Seed:       opts.Seed,
		AutoExpire: m.cfg.AutoExpire,
		Observers:  m.cfg.Observers,
	})

	g := &Game{
		ID:        id,
		PlayerID:  opts.PlayerID,
		CreatedAt: m.cfg.Now(),
		Engine:    engine,
	}
	m.games[id] = g

	if m.cfg.OnCreate != nil {
		m.cfg.OnCreate(g)
	}

	logrus.WithFields(logrus.Fields{
		"game":       id,
		"player":     opts.PlayerID,
		"difficulty": engine.Snapshot().Difficulty,
	}).Info("🆕 Game created")
	return g, nil
}

// Get returns a hosted game
func (m *Manager) Get(id string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g, nil
}

// Remove stops and forgets a game
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	g, ok := m.games[id]
	if ok {
		delete(m.games, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrGameNotFound
	}
	m.release(g)
	return nil
}

// List returns every hosted game ordered by creation time
func (m *Manager) List() []GameInfo {
	m.mu.RLock()
	games := make([]*Game, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	m.mu.RUnlock()

	out := make([]GameInfo, 0, len(games))
	for _, g := range games {
		snap := g.Engine.Snapshot()
		out = append(out, GameInfo{
			ID:            g.ID,
			PlayerID:      g.PlayerID,
			State:         snap.State,
			Difficulty:    snap.Difficulty,
			Platform:      snap.Platform,
			Score:         snap.Score,
			TimeRemaining: snap.TimeRemaining,
			CreatedAt:     g.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of hosted games
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}

// Start begins the idle reaper when an idle timeout is configured
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running || m.cfg.IdleTimeout <= 0 {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.ReapEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.ReapIdle(); n > 0 {
					logrus.WithField("count", n).Info("🧹 Reaped idle games")
				}
			case <-m.stopChan:
				return
			}
		}
	}()
}

// Stop halts the reaper and every hosted game
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()

		m.mu.Lock()
		games := make([]*Game, 0, len(m.games))
		for id, g := range m.games {
			games = append(games, g)
			delete(m.games, id)
		}
		m.mu.Unlock()

		for _, g := range games {
			m.release(g)
		}
	})
}

// ReapIdle removes games with no player activity for IdleTimeout and returns
// how many were removed.
func (m *Manager) ReapIdle() int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.cfg.Now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var idle []*Game
	for id, g := range m.games {
		if g.Engine.LastActivity().Before(cutoff) {
			idle = append(idle, g)
			delete(m.games, id)
		}
	}
	m.mu.Unlock()

	for _, g := range idle {
		m.release(g)
	}
	return len(idle)
}

func (m *Manager) release(g *Game) {
	g.Engine.Stop()
	if m.cfg.OnRemove != nil {
		m.cfg.OnRemove(g)
	}
}

func generateGameID(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(gameIDChars)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = gameIDChars[idx.Int64()]
	}
	return string(b)
}
