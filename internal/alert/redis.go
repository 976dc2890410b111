package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/miradorstack/mirador-ids/internal/models"
)

// RedisConfig configures the Redis list writer.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Timeout  time.Duration
}

// RedisWriter pushes alerts onto a Redis list for downstream consumers.
type RedisWriter struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisWriter creates a Redis list writer.
func NewRedisWriter(cfg RedisConfig) (*RedisWriter, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisWriter{client: client, key: cfg.Key, timeout: cfg.Timeout}, nil
}

// WriteAlerts RPUSHes one JSON document per alert.
func (w *RedisWriter) WriteAlerts(alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	values := make([]any, 0, len(alerts))
	for _, alert := range alerts {
		data, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		values = append(values, data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.client.RPush(ctx, w.key, values...).Err(); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (w *RedisWriter) Close() error {
	return w.client.Close()
}
