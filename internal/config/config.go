// Package config provides centralized configuration management.
// Every setting is read from the environment (optionally seeded from a .env
// file) into AppConfig; defaults live in the struct tags below.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:""`
	Port            int           `env:"PORT" envDefault:"3000"`
	AllowedOrigins  []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// =============================================================================
// GAME CONFIGURATION
// =============================================================================

// GameConfig holds difficulty and session settings.
type GameConfig struct {
	ProfilesPath      string `env:"PROFILES_PATH" envDefault:"config/profiles.yaml"`
	DefaultDifficulty string `env:"DEFAULT_DIFFICULTY" envDefault:"normal"`
	// AutoExpire lets the server expire drops on its own clock instead of
	// waiting for clients to report them.
	AutoExpire   bool   `env:"GAME_AUTO_EXPIRE" envDefault:"false"`
	EventLogPath string `env:"EVENT_LOG_PATH" envDefault:""`
	PrefsPath    string `env:"PREFS_PATH" envDefault:""`
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// LimitsConfig controls DoS protection and host capacity.
type LimitsConfig struct {
	MaxGames            int           `env:"MAX_GAMES" envDefault:"1000"`
	IdleTimeout         time.Duration `env:"GAME_IDLE_TIMEOUT" envDefault:"10m"`
	RequestsPerSecond   float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RequestBurst        int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	MaxClientsPerGame   int           `env:"MAX_WS_CLIENTS_PER_GAME" envDefault:"8"`
	MaxCommandsPerSec   float64       `env:"WS_COMMANDS_PER_SEC" envDefault:"30"`
	MaxRequestBodyBytes int64         `env:"MAX_REQUEST_BODY_BYTES" envDefault:"4096"`
	RenderWorkers       int           `env:"RENDER_WORKERS" envDefault:"0"` // 0 = NumCPU
}

// =============================================================================
// AUDIO CONFIGURATION
// =============================================================================

// AudioConfig holds sound cue synthesis settings.
type AudioConfig struct {
	SampleRate int     `env:"AUDIO_SAMPLE_RATE" envDefault:"44100"`
	Volume     float64 `env:"AUDIO_VOLUME" envDefault:"0.5"` // 0.0 to 1.0
	Enabled    bool    `env:"AUDIO_ENABLED" envDefault:"true"`
}

// =============================================================================
// REDIS CONFIGURATION
// =============================================================================

// RedisConfig holds the preference store connection. An empty Addr keeps
// preferences in memory.
type RedisConfig struct {
	Addr       string `env:"REDIS_ADDR" envDefault:""`
	Password   string `env:"REDIS_PASSWORD"`
	DB         int    `env:"REDIS_DB" envDefault:"0"`
	MaxRetries int    `env:"REDIS_MAX_RETRIES" envDefault:"5"`
}

// Enabled reports whether a redis address is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig holds the debug server settings.
type ObservabilityConfig struct {
	DebugAddr      string `env:"DEBUG_ADDR" envDefault:"127.0.0.1:6060"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
}

// =============================================================================
// LOG CONFIGURATION
// =============================================================================

// LogConfig holds logrus settings.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"` // text or json
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server        ServerConfig
	Game          GameConfig
	Limits        LimitsConfig
	Audio         AudioConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	Log           LogConfig
}

// Load reads a .env file when present, parses the environment and validates
// the result.
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("no .env file loaded: %v", err)
	} else {
		logrus.Info("📄 Loaded environment variables from .env file")
	}

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("failed to parse config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Parse builds a configuration from an explicit variable set instead of the
// process environment.
func Parse(environ map[string]string) (AppConfig, error) {
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return AppConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field constraints.
func (c AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Limits.MaxGames < 0 {
		return fmt.Errorf("invalid MAX_GAMES: %d (must be non-negative)", c.Limits.MaxGames)
	}
	if c.Limits.IdleTimeout < 0 {
		return fmt.Errorf("invalid GAME_IDLE_TIMEOUT: %v", c.Limits.IdleTimeout)
	}
	if c.Limits.RequestsPerSecond <= 0 || c.Limits.RequestBurst < 1 {
		return fmt.Errorf("invalid rate limit: %g rps, burst %d", c.Limits.RequestsPerSecond, c.Limits.RequestBurst)
	}
	if c.Limits.MaxClientsPerGame < 1 {
		return fmt.Errorf("invalid MAX_WS_CLIENTS_PER_GAME: %d", c.Limits.MaxClientsPerGame)
	}
	if c.Limits.RenderWorkers < 0 {
		return fmt.Errorf("invalid RENDER_WORKERS: %d", c.Limits.RenderWorkers)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		return fmt.Errorf("invalid AUDIO_VOLUME: %g (must be 0-1)", c.Audio.Volume)
	}
	if c.Audio.SampleRate < 8000 {
		return fmt.Errorf("invalid AUDIO_SAMPLE_RATE: %d", c.Audio.SampleRate)
	}
	if c.Redis.MaxRetries < 0 {
		return fmt.Errorf("invalid REDIS_MAX_RETRIES: %d", c.Redis.MaxRetries)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %q (must be text or json)", c.Log.Format)
	}
	return nil
}
