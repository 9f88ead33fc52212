package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"did_alerts/internal/snapshot"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps the snapshot in a hash of sheet name to JSON rows, next
// to a key holding the write time.
type RedisStore struct {
	client    *redis.Client
	sheetsKey string
	stampKey  string
	clock     func() time.Time
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "did_alerts"
	}
	return &RedisStore{
		client:    client,
		sheetsKey: prefix + ":sheets",
		stampKey:  prefix + ":updated_at",
		clock:     time.Now,
	}, nil
}

func (r *RedisStore) IsFresh(ctx context.Context, lifetime time.Duration) (bool, time.Time) {
	value, err := r.client.Get(ctx, r.stampKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, Never
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read cache timestamp from redis")
		return false, Never
	}
	last, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		log.Warn().Err(err).Str("value", value).Msg("Invalid cache timestamp in redis")
		return false, Never
	}
	return fresh(last, r.clock(), lifetime), last
}

func (r *RedisStore) ReadAll(ctx context.Context) snapshot.Snapshot {
	fields, err := r.client.HGetAll(ctx, r.sheetsKey).Result()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read cache from redis, starting empty")
		return snapshot.New()
	}

	snap := snapshot.New()
	for sheet, data := range fields {
		var rows [][]string
		if err := json.Unmarshal([]byte(data), &rows); err != nil {
			log.Warn().Err(err).Str("sheet", sheet).Msg("Skipping malformed cached sheet")
			continue
		}
		if rows == nil {
			rows = [][]string{}
		}
		snap[sheet] = rows
	}
	log.Debug().Int("sheets", len(snap)).Msg("Loaded cache from redis")
	return snap
}

// WriteAll swaps the whole hash and the timestamp inside MULTI/EXEC.
func (r *RedisStore) WriteAll(ctx context.Context, snap snapshot.Snapshot) error {
	values := make(map[string]any, len(snap))
	for sheet, rows := range snap {
		if rows == nil {
			rows = [][]string{}
		}
		data, err := json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("failed to marshal sheet %s: %w", sheet, err)
		}
		values[sheet] = data
	}

	stamp := r.clock().UTC().Format(time.RFC3339Nano)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sheetsKey)
		if len(values) > 0 {
			pipe.HSet(ctx, r.sheetsKey, values)
		}
		pipe.Set(ctx, r.stampKey, stamp, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write cache to redis: %w", err)
	}
	log.Debug().Int("sheets", len(values)).Msg("Saved cache to redis")
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.sheetsKey, r.stampKey).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
