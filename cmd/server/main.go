package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"drop-catch/internal/api"
	"drop-catch/internal/audio"
	"drop-catch/internal/config"
	"drop-catch/internal/game"
	"drop-catch/internal/prefs"
	"drop-catch/internal/render"
)

func main() {
	appConfig, err := config.Load()
	if err != nil {
		logrus.Fatalf("❌ Invalid configuration: %v", err)
	}
	config.ConfigureLogging(appConfig.Log)

	logrus.Info("💧 ================================")
	logrus.Info("💧  DROP CATCH - GAME SERVER")
	logrus.Info("💧 ================================")

	serverCfg := appConfig.Server
	gameCfg := appConfig.Game
	limits := appConfig.Limits

	// Difficulty profiles
	profiles, err := game.LoadProfiles(gameCfg.ProfilesPath)
	if err != nil {
		logrus.Fatalf("❌ Failed to load profiles: %v", err)
	}
	logrus.Infof("🎚️ Profiles: %v (default %s)", profiles.Keys(), profiles.DefaultKey())

	// Preference store: redis when configured, memory otherwise
	var store prefs.Store = prefs.NewMemoryStore()
	if appConfig.Redis.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		client, err := prefs.Connect(ctx, prefs.ConnectOptions{
			Addr:       appConfig.Redis.Addr,
			Password:   appConfig.Redis.Password,
			DB:         appConfig.Redis.DB,
			MaxRetries: uint64(appConfig.Redis.MaxRetries),
		})
		cancel()
		if err != nil {
			logrus.WithError(err).Warn("⚠️ Redis unavailable, preferences kept in memory")
		} else {
			defer client.Close()
			store = prefs.NewRedisStore(client)
		}
	}

	// Sound cues
	var sounds *audio.Bank
	if appConfig.Audio.Enabled {
		sounds, err = audio.NewBank(audio.Config{SampleRate: appConfig.Audio.SampleRate, Volume: appConfig.Audio.Volume})
		if err != nil {
			logrus.WithError(err).Warn("⚠️ Sound cues disabled")
			sounds = nil
		}
	}

	// Session journal
	eventLog := game.NewEventLog()
	if err := eventLog.Start(gameCfg.EventLogPath); err != nil {
		logrus.WithError(err).Warn("⚠️ Session journal file disabled")
		if err := eventLog.Start(""); err != nil {
			logrus.Fatalf("❌ Failed to start session journal: %v", err)
		}
	}

	// Game host and API server; the hooks need the server, which needs the host
	var server *api.Server
	manager := game.NewManager(game.ManagerConfig{
		Profiles:    profiles,
		MaxGames:    limits.MaxGames,
		IdleTimeout: limits.IdleTimeout,
		AutoExpire:  gameCfg.AutoExpire,
		Observers:   []game.Observer{eventLog, api.MetricsObserver{}},
		OnCreate:    func(g *game.Game) { server.AttachGame(g) },
		OnRemove:    func(g *game.Game) { server.DetachGame(g) },
	})

	server = api.NewServer(api.ServerConfig{
		Games:  manager,
		Sounds: sounds,
		Prefs:  store,
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: limits.RequestsPerSecond,
			Burst:             limits.RequestBurst,
			CleanupInterval:   5 * time.Minute,
		},
		Hub: api.HubConfig{
			MaxClientsPerGame: limits.MaxClientsPerGame,
			CommandsPerSec:    limits.MaxCommandsPerSec,
			AllowedOrigins:    serverCfg.AllowedOrigins,
		},
		CORSOrigins:  serverCfg.AllowedOrigins,
		MaxBodyBytes: limits.MaxRequestBodyBytes,
		Frame:        render.DefaultOptions(),
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,

		RenderWorkers: limits.RenderWorkers,
	})

	logrus.Infof("🛡️ Limits: %d games, idle %v, %.0f req/s per IP, %d clients per game",
		limits.MaxGames, limits.IdleTimeout, limits.RequestsPerSecond, limits.MaxClientsPerGame)

	// Debug server
	debugCfg := api.DefaultDebugConfig()
	debugCfg.Enabled = appConfig.Observability.MetricsEnabled
	debugCfg.ListenAddr = appConfig.Observability.DebugAddr
	debugCfg.Stats = map[string]func() map[string]interface{}{
		"journal": eventLog.GetStats,
		"render":  server.Renderer().GetStats,
		"games": func() map[string]interface{} {
			return map[string]interface{}{"active": manager.Count(), "clients": server.Hub().ClientCount()}
		},
	}
	debugServer := api.StartDebugServer(debugCfg)

	manager.Start()
	logrus.Info("✅ Game host started")

	go func() {
		if err := server.Start(serverCfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logrus.Info("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	logrus.Info("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("⚠️ API server shutdown incomplete")
	}
	if debugServer != nil {
		debugServer.Shutdown(ctx)
	}
	manager.Stop()
	eventLog.Stop()
	logrus.Info("👋 Goodbye!")
}
