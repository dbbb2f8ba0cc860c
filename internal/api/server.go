package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"drop-catch/internal/audio"
	"drop-catch/internal/game"
	"drop-catch/internal/prefs"
	"drop-catch/internal/render"
)

// ServerConfig contains the dependencies and limits of a Server
type ServerConfig struct {
	Games        GameHost
	Sounds       *audio.Bank
	Prefs        prefs.Store
	RateLimit    RateLimitConfig
	Hub          HubConfig
	CORSOrigins  []string
	MaxBodyBytes int64
	Frame        render.Options
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RenderWorkers sizes the frame render pool; zero means NumCPU
	RenderWorkers int
}

// Server is the HTTP API server with WebSocket support.
//
// IMPORTANT: no listener is opened until Start is called, so a Server can be
// built in tests and driven through Router().
type Server struct {
	cfg         ServerConfig
	router      *chi.Mux
	hub         *Hub
	flags       *prefs.Registry
	rateLimiter *IPRateLimiter
	renderer    *render.Pool

	mu       sync.Mutex
	httpSrv  *http.Server
	detaches map[string]func()
}

// NewServer builds the router, hub and preference registry
func NewServer(cfg ServerConfig) *Server {
	if cfg.Prefs == nil {
		cfg.Prefs = prefs.NewMemoryStore()
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit = DefaultRateLimitConfig
	}
	if cfg.Hub.AllowedOrigins == nil {
		cfg.Hub.AllowedOrigins = cfg.CORSOrigins
	}

	s := &Server{
		cfg:         cfg,
		hub:         NewHub(cfg.Hub),
		flags:       prefs.NewRegistry(cfg.Prefs),
		rateLimiter: NewIPRateLimiter(cfg.RateLimit),
		renderer:    render.NewPool(cfg.RenderWorkers),
		detaches:    make(map[string]func()),
	}
	s.renderer.Start()

	s.router = NewRouter(RouterConfig{
		Games:        cfg.Games,
		Sounds:       cfg.Sounds,
		Flags:        s.flags,
		Hub:          s.hub,
		RateLimiter:  s.rateLimiter,
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Frame:        cfg.Frame,
		Renderer:     s.renderer,
	})

	return s
}

// AttachGame wires a newly hosted game to the event stream and, for games
// with a player id, routes sound cues through the player's mute flag.
// Use it as the manager's OnCreate hook.
func (s *Server) AttachGame(g *game.Game) {
	unsubscribe := g.Engine.Subscribe(s.hub)

	if g.PlayerID != "" {
		flag, err := s.flags.Flag(context.Background(), g.PlayerID)
		if err != nil {
			logrus.WithError(err).WithField("player", g.PlayerID).Warn("⚠️ Mute preference unavailable, sound unmuted")
		}
		var pref game.MutePreference
		if flag != nil {
			pref = flag
		}
		g.Engine.SetSound(game.MuteGate{Player: s.hub.SoundRelay(g.ID), Pref: pref})
	} else {
		g.Engine.SetSound(s.hub.SoundRelay(g.ID))
	}

	s.mu.Lock()
	s.detaches[g.ID] = unsubscribe
	count := len(s.detaches)
	s.mu.Unlock()
	UpdateActiveGames(count)
}

// DetachGame disconnects the clients of a removed game.
// Use it as the manager's OnRemove hook.
func (s *Server) DetachGame(g *game.Game) {
	s.mu.Lock()
	unsubscribe := s.detaches[g.ID]
	delete(s.detaches, g.ID)
	count := len(s.detaches)
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.hub.CloseGame(g.ID)
	UpdateActiveGames(count)
}

// Start listens on addr and blocks until the server stops. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	logrus.Infof("🌐 API server starting on %s", addr)
	return srv.ListenAndServe()
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Renderer returns the frame render pool
func (s *Server) Renderer() *render.Pool {
	return s.renderer
}

// Shutdown stops accepting requests, closes every WebSocket and waits for
// in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	s.rateLimiter.Stop()
	defer s.renderer.Stop()

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
