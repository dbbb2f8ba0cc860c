package game

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultProfileKey is used when the selection is empty or unknown
const DefaultProfileKey = "normal"

// maxSpawnBatch is the largest number of drops one spawn can produce
// (good + bad + bomb). A profile cap below it could never hold a full batch.
const maxSpawnBatch = 3

// Range is an inclusive-exclusive [Min, Max) sampling interval
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (r Range) validate(name string, lower float64) error {
	if r.Min < lower || r.Max < r.Min {
		return fmt.Errorf("%s range [%g, %g) is invalid", name, r.Min, r.Max)
	}
	return nil
}

// DifficultyProfile is an immutable difficulty configuration bundle.
// Fall ranges are in seconds.
type DifficultyProfile struct {
	Key                  string  `yaml:"key" json:"key"`
	Label                string  `yaml:"label" json:"label"`
	DurationSeconds      int     `yaml:"durationSeconds" json:"durationSeconds"`
	WinScoreThreshold    int     `yaml:"winScoreThreshold" json:"winScoreThreshold"`
	SpawnIntervalMs      int     `yaml:"spawnIntervalMs" json:"spawnIntervalMs"`
	MaxConcurrentDrops   int     `yaml:"maxConcurrentDrops" json:"maxConcurrentDrops"`
	BombSpawnProbability float64 `yaml:"bombSpawnProbability" json:"bombSpawnProbability"`
	SizeMultiplier       Range   `yaml:"sizeMultiplier" json:"sizeMultiplier"`
	FallSecondsMobile    Range   `yaml:"fallSecondsMobile" json:"fallSecondsMobile"`
	FallSecondsDesktop   Range   `yaml:"fallSecondsDesktop" json:"fallSecondsDesktop"`
}

// Validate checks the profile invariants
func (p DifficultyProfile) Validate() error {
	switch {
	case strings.TrimSpace(p.Key) == "":
		return errors.New("profile key is required")
	case p.DurationSeconds <= 0:
		return fmt.Errorf("profile %q: durationSeconds must be positive", p.Key)
	case p.WinScoreThreshold <= 0:
		return fmt.Errorf("profile %q: winScoreThreshold must be positive", p.Key)
	case p.SpawnIntervalMs <= 0:
		return fmt.Errorf("profile %q: spawnIntervalMs must be positive", p.Key)
	case p.MaxConcurrentDrops < maxSpawnBatch:
		return fmt.Errorf("profile %q: maxConcurrentDrops must be at least %d", p.Key, maxSpawnBatch)
	case p.BombSpawnProbability < 0 || p.BombSpawnProbability > 1:
		return fmt.Errorf("profile %q: bombSpawnProbability must be within [0, 1]", p.Key)
	}
	if err := p.SizeMultiplier.validate("sizeMultiplier", 0); err != nil {
		return fmt.Errorf("profile %q: %w", p.Key, err)
	}
	if err := p.FallSecondsMobile.validate("fallSecondsMobile", 0); err != nil {
		return fmt.Errorf("profile %q: %w", p.Key, err)
	}
	if err := p.FallSecondsDesktop.validate("fallSecondsDesktop", 0); err != nil {
		return fmt.Errorf("profile %q: %w", p.Key, err)
	}
	return nil
}

// Duration returns the session length
func (p DifficultyProfile) Duration() time.Duration {
	return time.Duration(p.DurationSeconds) * time.Second
}

// SpawnInterval returns the spawn schedule period
func (p DifficultyProfile) SpawnInterval() time.Duration {
	return time.Duration(p.SpawnIntervalMs) * time.Millisecond
}

// FallRange returns the fall-duration range for a platform
func (p DifficultyProfile) FallRange(platform Platform) Range {
	if platform.IsMobile() {
		return p.FallSecondsMobile
	}
	return p.FallSecondsDesktop
}

// Preview is what the idle screen shows for a selected profile
type Preview struct {
	Key             string `json:"key"`
	Label           string `json:"label"`
	Goal            int    `json:"goal"`
	DurationSeconds int    `json:"durationSeconds"`
}

// DefaultProfiles returns the built-in easy/normal/hard profiles.
// "normal" carries the classic tuning: 30s, goal 20, one spawn per second.
func DefaultProfiles() []DifficultyProfile {
	return []DifficultyProfile{
		{
			Key:                  "easy",
			Label:                "Easy",
			DurationSeconds:      40,
			WinScoreThreshold:    15,
			SpawnIntervalMs:      1200,
			MaxConcurrentDrops:   12,
			BombSpawnProbability: 0.10,
			SizeMultiplier:       Range{Min: 1.0, Max: 1.3},
			FallSecondsMobile:    Range{Min: 2.0, Max: 3.6},
			FallSecondsDesktop:   Range{Min: 1.4, Max: 2.4},
		},
		{
			Key:                  "normal",
			Label:                "Normal",
			DurationSeconds:      30,
			WinScoreThreshold:    20,
			SpawnIntervalMs:      1000,
			MaxConcurrentDrops:   15,
			BombSpawnProbability: 0.17,
			SizeMultiplier:       Range{Min: 0.95, Max: 1.2},
			FallSecondsMobile:    Range{Min: 1.5, Max: 3.2},
			FallSecondsDesktop:   Range{Min: 1.0, Max: 2.0},
		},
		{
			Key:                  "hard",
			Label:                "Hard",
			DurationSeconds:      25,
			WinScoreThreshold:    25,
			SpawnIntervalMs:      750,
			MaxConcurrentDrops:   18,
			BombSpawnProbability: 0.25,
			SizeMultiplier:       Range{Min: 0.8, Max: 1.05},
			FallSecondsMobile:    Range{Min: 1.2, Max: 2.4},
			FallSecondsDesktop:   Range{Min: 0.8, Max: 1.5},
		},
	}
}

// ProfileStore holds the named profiles and resolves the active one.
// It is read-only after construction and safe for concurrent use.
type ProfileStore struct {
	profiles   map[string]DifficultyProfile
	order      []string
	defaultKey string
}

// NewProfileStore validates profiles and builds a store. defaultKey must name
// one of them.
func NewProfileStore(profiles []DifficultyProfile, defaultKey string) (*ProfileStore, error) {
	if len(profiles) == 0 {
		return nil, errors.New("at least one difficulty profile is required")
	}

	s := &ProfileStore{
		profiles:   make(map[string]DifficultyProfile, len(profiles)),
		order:      make([]string, 0, len(profiles)),
		defaultKey: normalizeKey(defaultKey),
	}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		p.Key = normalizeKey(p.Key)
		if p.Label == "" {
			p.Label = p.Key
		}
		if _, dup := s.profiles[p.Key]; dup {
			return nil, fmt.Errorf("duplicate profile key %q", p.Key)
		}
		s.profiles[p.Key] = p
		s.order = append(s.order, p.Key)
	}
	if _, ok := s.profiles[s.defaultKey]; !ok {
		return nil, fmt.Errorf("default profile %q is not defined", defaultKey)
	}
	return s, nil
}

// DefaultProfileStore returns a store over DefaultProfiles
func DefaultProfileStore() *ProfileStore {
	s, err := NewProfileStore(DefaultProfiles(), DefaultProfileKey)
	if err != nil {
		panic(fmt.Sprintf("built-in profiles are invalid: %v", err))
	}
	return s
}

// profileFile is the on-disk YAML layout
type profileFile struct {
	Default  string              `yaml:"default"`
	Profiles []DifficultyProfile `yaml:"profiles"`
}

// LoadProfiles reads a YAML profile file. A missing file yields the built-in
// profiles; a malformed one is an error.
func LoadProfiles(path string) (*ProfileStore, error) {
	if path == "" {
		return DefaultProfileStore(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultProfileStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles %s: %w", path, err)
	}

	return ParseProfiles(data)
}

// ParseProfiles decodes a YAML profile document
func ParseProfiles(data []byte) (*ProfileStore, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	if file.Default == "" {
		file.Default = DefaultProfileKey
	}
	return NewProfileStore(file.Profiles, file.Default)
}

// ResolveActive returns the profile for key, or the default profile when key
// is empty or unrecognized.
func (s *ProfileStore) ResolveActive(key string) DifficultyProfile {
	if p, ok := s.profiles[normalizeKey(key)]; ok {
		return p
	}
	return s.profiles[s.defaultKey]
}

// Has reports whether key names a profile
func (s *ProfileStore) Has(key string) bool {
	_, ok := s.profiles[normalizeKey(key)]
	return ok
}

// EffectiveRange returns the platform-appropriate fall-duration bounds
func (s *ProfileStore) EffectiveRange(p DifficultyProfile, mobile bool) (min, max time.Duration) {
	platform := PlatformDesktop
	if mobile {
		platform = PlatformMobile
	}
	r := p.FallRange(platform)
	return seconds(r.Min), seconds(r.Max)
}

// Preview returns the goal/timer preview for key
func (s *ProfileStore) Preview(key string) Preview {
	p := s.ResolveActive(key)
	return Preview{
		Key:             p.Key,
		Label:           p.Label,
		Goal:            p.WinScoreThreshold,
		DurationSeconds: p.DurationSeconds,
	}
}

// DefaultKey returns the fallback profile key
func (s *ProfileStore) DefaultKey() string {
	return s.defaultKey
}

// Profiles returns all profiles in definition order
func (s *ProfileStore) Profiles() []DifficultyProfile {
	out := make([]DifficultyProfile, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.profiles[k])
	}
	return out
}

// Keys returns the profile keys sorted alphabetically
func (s *ProfileStore) Keys() []string {
	keys := append([]string(nil), s.order...)
	sort.Strings(keys)
	return keys
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
