package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// KeyPrefix namespaces preference keys in redis
const KeyPrefix = "dropcatch:mute:"

// RedisStore keeps preferences in redis, one key per player
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing client
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// ConnectOptions configures Connect
type ConnectOptions struct {
	Addr       string
	Password   string
	DB         int
	MaxRetries uint64
}

// Connect dials redis and pings it with exponential backoff. The client is
// closed when every attempt fails.
func Connect(ctx context.Context, opts ConnectOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), opts.MaxRetries), ctx)
	err := backoff.Retry(func() error {
		if _, err := client.Ping(ctx).Result(); err != nil {
			logrus.Warnf("Redis connection failed: %v, retrying...", err)
			return err
		}
		return nil
	}, policy)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	logrus.WithField("addr", opts.Addr).Info("🗄️ Connected to redis")
	return client, nil
}

// Muted returns the stored flag
func (s *RedisStore) Muted(ctx context.Context, playerID string) (bool, error) {
	id, err := ValidatePlayerID(playerID)
	if err != nil {
		return false, err
	}
	val, err := s.client.Get(ctx, KeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read mute preference: %w", err)
	}
	return val == "1", nil
}

// SetMuted stores the flag; unmuting deletes the key
func (s *RedisStore) SetMuted(ctx context.Context, playerID string, muted bool) error {
	id, err := ValidatePlayerID(playerID)
	if err != nil {
		return err
	}
	if muted {
		err = s.client.Set(ctx, KeyPrefix+id, "1", 0).Err()
	} else {
		err = s.client.Del(ctx, KeyPrefix+id).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to write mute preference: %w", err)
	}
	return nil
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
