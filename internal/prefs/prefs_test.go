package prefs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func storeImplementations(t *testing.T) map[string]Store {
	client, _ := setupTestRedis(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested", "prefs.json")),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			muted, err := store.Muted(ctx, "player-1")
			if err != nil || muted {
				t.Fatalf("unknown player should be unmuted, got %v, %v", muted, err)
			}

			if err := store.SetMuted(ctx, "player-1", true); err != nil {
				t.Fatalf("SetMuted failed: %v", err)
			}
			if muted, _ := store.Muted(ctx, "player-1"); !muted {
				t.Error("Expected muted after SetMuted(true)")
			}
			if muted, _ := store.Muted(ctx, "player-2"); muted {
				t.Error("preferences must be per player")
			}

			if err := store.SetMuted(ctx, "player-1", false); err != nil {
				t.Fatalf("SetMuted failed: %v", err)
			}
			if muted, _ := store.Muted(ctx, "player-1"); muted {
				t.Error("Expected unmuted after SetMuted(false)")
			}
		})
	}
}

func TestStoreRejectsInvalidPlayer(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("x", maxPlayerIDLength+1)

	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"", "   ", long} {
				if _, err := store.Muted(ctx, id); !errors.Is(err, ErrInvalidPlayer) {
					t.Errorf("Muted(%q) error = %v", id, err)
				}
				if err := store.SetMuted(ctx, id, true); !errors.Is(err, ErrInvalidPlayer) {
					t.Errorf("SetMuted(%q) error = %v", id, err)
				}
			}
		})
	}
}

func TestRedisStoreKeys(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	if err := store.SetMuted(ctx, "alice", true); err != nil {
		t.Fatal(err)
	}
	if got, err := mr.Get(KeyPrefix + "alice"); err != nil || got != "1" {
		t.Errorf("stored value %q, %v", got, err)
	}

	store.SetMuted(ctx, "alice", false)
	if mr.Exists(KeyPrefix + "alice") {
		t.Error("unmute should delete the key")
	}

	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewRedisStore(client)
	mr.Close()

	if _, err := store.Muted(context.Background(), "alice"); err == nil {
		t.Error("Expected an error with redis down")
	}
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}

	client, err := Connect(context.Background(), ConnectOptions{Addr: mr.Addr(), MaxRetries: 1})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	client.Close()

	addr := mr.Addr()
	mr.Close()
	if _, err := Connect(context.Background(), ConnectOptions{Addr: addr, MaxRetries: 0}); err == nil {
		t.Error("Expected Connect to fail against a closed server")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileStore(path).Muted(context.Background(), "p"); err == nil {
		t.Error("Expected a parse error")
	}
}

func TestFlag(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.SetMuted(ctx, "p", true)

	flag, err := LoadFlag(ctx, store, "p")
	if err != nil {
		t.Fatalf("LoadFlag failed: %v", err)
	}
	if !flag.Muted() {
		t.Fatal("Expected the stored value to be loaded")
	}

	muted, err := flag.Toggle(ctx)
	if err != nil || muted {
		t.Fatalf("Toggle = %v, %v", muted, err)
	}
	if stored, _ := store.Muted(ctx, "p"); stored {
		t.Error("Toggle should write through")
	}
}

func TestFlagLoadFailure(t *testing.T) {
	flag, err := LoadFlag(context.Background(), NewMemoryStore(), "")
	if err == nil {
		t.Error("Expected an error for an invalid player")
	}
	if flag == nil || flag.Muted() {
		t.Error("a failed load should still return an unmuted flag")
	}
}

func TestRegistrySharesFlags(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	reg := NewRegistry(store)

	a, err := reg.Flag(ctx, "p1")
	if err != nil {
		t.Fatalf("Flag failed: %v", err)
	}
	b, _ := reg.Flag(ctx, " p1 ")
	if a != b {
		t.Error("same player should share one flag")
	}

	if err := reg.SetMuted(ctx, "p1", true); err != nil {
		t.Fatalf("SetMuted failed: %v", err)
	}
	if !a.Muted() {
		t.Error("cached flag should see the change")
	}
	if muted, _ := store.Muted(ctx, "p1"); !muted {
		t.Error("change should be persisted")
	}

	if _, err := reg.Flag(ctx, ""); !errors.Is(err, ErrInvalidPlayer) {
		t.Errorf("Expected ErrInvalidPlayer, got %v", err)
	}
	if err := reg.SetMuted(ctx, "", true); !errors.Is(err, ErrInvalidPlayer) {
		t.Errorf("Expected ErrInvalidPlayer, got %v", err)
	}
}
