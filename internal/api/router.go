// Package api exposes hosted drop-catch games over HTTP and WebSocket.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"drop-catch/internal/audio"
	"drop-catch/internal/game"
	"drop-catch/internal/prefs"
	"drop-catch/internal/render"
)

// GameHost defines the game manager methods used by the API.
// *game.Manager satisfies it; tests may substitute their own.
type GameHost interface {
	Profiles() *game.ProfileStore
	Create(opts game.GameOptions) (*game.Game, error)
	Get(id string) (*game.Game, error)
	Remove(id string) error
	List() []game.GameInfo
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Games: manager,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Games hosts the engines (required)
	Games GameHost

	// Sounds serves cue audio; nil disables /api/sounds
	Sounds *audio.Bank

	// Prefs stores mute preferences; nil uses an in-memory store
	Prefs prefs.Store

	// Flags caches mute flags shared with hosted games; nil creates one
	// over Prefs
	Flags *prefs.Registry

	// Hub serves /api/games/{id}/ws; nil disables the event stream
	Hub *Hub

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is the list of allowed CORS origins; nil allows all
	CORSOrigins []string

	// MaxBodyBytes bounds JSON request bodies; zero uses 4 KiB
	MaxBodyBytes int64

	// Frame sets the default size of rendered frames
	Frame render.Options

	// Renderer bounds concurrent frame renders; nil renders on the request goroutine
	Renderer *render.Pool

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

type routerHandlers struct {
	games        GameHost
	sounds       *audio.Bank
	flags        *prefs.Registry
	hub          *Hub
	maxBodyBytes int64
	frame        render.Options
	renderer     *render.Pool
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: apart from a rate limiter built from RateLimitConfig, this
// function has no side effects: no listeners are opened and no games are
// touched. That makes it safe to use with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	flags := cfg.Flags
	if flags == nil {
		store := cfg.Prefs
		if store == nil {
			store = prefs.NewMemoryStore()
		}
		flags = prefs.NewRegistry(store)
	}

	h := &routerHandlers{
		games:        cfg.Games,
		sounds:       cfg.Sounds,
		flags:        flags,
		hub:          cfg.Hub,
		maxBodyBytes: cfg.MaxBodyBytes,
		frame:        cfg.Frame,
		renderer:     cfg.Renderer,
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = 4096
	}

	r.Route("/api", func(r chi.Router) {
		// Difficulty profiles
		r.Get("/profiles", h.handleListProfiles)
		r.Get("/profiles/{key}/preview", h.handleProfilePreview)

		// Games
		r.Post("/games", h.handleCreateGame)
		r.Get("/games", h.handleListGames)
		r.Route("/games/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetGame)
			r.Delete("/", h.handleDeleteGame)
			r.Post("/start", h.handleStartGame)
			r.Post("/reset", h.handleResetGame)
			r.Put("/difficulty", h.handleSelectDifficulty)
			r.Post("/drops/{dropId}/catch", h.handleCatch)
			r.Post("/drops/{dropId}/expire", h.handleExpire)
			r.Get("/frame.png", h.handleFrame)
			if h.hub != nil {
				r.Get("/ws", h.handleWS)
			}
		})

		// Sound cues
		r.Get("/sounds/{cue}.wav", h.handleSound)

		// Preferences
		r.Get("/preferences/{playerId}/mute", h.handleGetMute)
		r.Put("/preferences/{playerId}/mute", h.handleSetMute)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	return r
}
