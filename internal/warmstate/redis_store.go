package warmstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore persists warm state as a single JSON value under one key,
// for deployments that already run Redis and would rather not manage a
// local file (e.g. ephemeral container filesystems).
type RedisStore struct {
	log    zerolog.Logger
	client *redis.Client
	key    string
}

// NewRedisStore constructs a Redis-backed warm-state store using key as
// the storage key.
func NewRedisStore(client *redis.Client, key string, logger zerolog.Logger) *RedisStore {
	return &RedisStore{log: logger.With().Str("component", "warmstate-redis").Logger(), client: client, key: key}
}

// Load reads and validates the warm state stored under the configured
// key. Missing key, parse failure, or staleness are all "start cold".
func (r *RedisStore) Load(now time.Time) (*State, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.log.Warn().Err(err).Msg("warm state: redis read failed, starting cold")
		return nil, nil
	}

	state, err := unmarshal(data)
	if err != nil {
		r.log.Warn().Err(err).Msg("warm state: parse failed, starting cold")
		return nil, nil
	}
	if isStale(state.Timestamp, now) {
		r.log.Info().Msg("warm state: discarding stale state")
		return nil, nil
	}
	return &state, nil
}

// Save writes the warm state as a single Redis value. Redis's SET is
// itself atomic, so no separate temp-key dance is needed.
func (r *RedisStore) Save(state State) error {
	data, err := marshal(state)
	if err != nil {
		return fmt.Errorf("warmstate: marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := r.client.Set(ctx, r.key, data, maxAge).Err(); err != nil {
		return fmt.Errorf("warmstate: redis write: %w", err)
	}
	return nil
}
