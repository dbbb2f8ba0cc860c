package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"drop-catch/internal/audio"
	"drop-catch/internal/config"
	"drop-catch/internal/game"
	"drop-catch/internal/prefs"
	"drop-catch/internal/tui"
)

// localPlayer is the preference key of the single terminal player
const localPlayer = "local"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "drop-catch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	appConfig, err := config.Load()
	if err != nil {
		return err
	}
	config.ConfigureLogging(appConfig.Log)

	prefsPath := appConfig.Game.PrefsPath
	if prefsPath == "" {
		if prefsPath, err = prefs.DefaultFilePath(); err != nil {
			return err
		}
	}

	// The screen owns stdout; logs go next to the preference file
	if err := os.MkdirAll(filepath.Dir(prefsPath), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(prefsPath), err)
	}
	logFile, err := os.OpenFile(filepath.Join(filepath.Dir(prefsPath), "terminal.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logrus.SetOutput(logFile)

	profiles, err := game.LoadProfiles(appConfig.Game.ProfilesPath)
	if err != nil {
		return err
	}

	mute, err := prefs.LoadFlag(context.Background(), prefs.NewFileStore(prefsPath), localPlayer)
	if err != nil {
		logrus.WithError(err).Warn("⚠️ Mute preference unreadable, starting unmuted")
	}

	player, closeAudio := audio.NewPlayer(audio.Config{
		SampleRate: appConfig.Audio.SampleRate,
		Volume:     appConfig.Audio.Volume,
	}, appConfig.Audio.Enabled)
	defer closeAudio()

	eventLog := game.NewEventLog()
	if err := eventLog.Start(appConfig.Game.EventLogPath); err != nil {
		logrus.WithError(err).Warn("⚠️ Session journal file disabled")
		if err := eventLog.Start(""); err != nil {
			return fmt.Errorf("failed to start session journal: %w", err)
		}
	}
	defer eventLog.Stop()

	engine := game.NewEngine(game.EngineConfig{
		GameID:     "local",
		Profiles:   profiles,
		Difficulty: appConfig.Game.DefaultDifficulty,
		Platform:   game.PlatformDesktop,
		AutoExpire: true,
		Seed:       time.Now().UnixNano(),
		Observers:  []game.Observer{eventLog},
	})
	defer engine.Stop()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()

	app := tui.New(tui.Config{
		Screen: screen,
		Engine: engine,
		Sound:  player,
		Mute:   mute,
		Seed:   time.Now().UnixNano(),
	})
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.Info("🎮 Terminal client started")
	if err := app.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
