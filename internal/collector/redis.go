package collector

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/miradorstack/mirador-ids/internal/utils"
)

// RedisConfig configures the Redis queue collector.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

// RedisQueue pops JSON snapshots pushed by node agents onto a Redis list.
type RedisQueue struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
	now          func() time.Time
}

// NewRedisQueue creates a Redis-backed collector.
func NewRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, utils.NewAppError(utils.OpCollectRedis, "redis key is required", nil)
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisQueue(client, cfg.Key, cfg.BlockTimeout), nil
}

func newRedisQueue(client *redis.Client, key string, blockTimeout time.Duration) *RedisQueue {
	return &RedisQueue{
		client:       client,
		key:          key,
		blockTimeout: blockTimeout,
		now:          time.Now,
	}
}

// Collect blocks for up to the configured timeout waiting for a snapshot.
func (q *RedisQueue) Collect(ctx context.Context) (Snapshot, error) {
	res, err := q.client.BLPop(ctx, q.blockTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(res) < 2) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, utils.NewAppError(utils.OpCollectRedis, "pop snapshot", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(res[1]), &snap); err != nil {
		return Snapshot{}, utils.NewAppError(utils.OpCollectRedis, "decode snapshot", err)
	}
	if snap.CollectedAt.IsZero() {
		snap.CollectedAt = q.now()
	}
	return snap, nil
}

// Close closes the Redis client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
