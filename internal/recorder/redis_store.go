package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
)

// RedisStore persists the history buffer to Redis, for deployments where the
// history should survive restarts of any single process.
type RedisStore struct {
	client  goredis.UniversalClient
	key     string
	timeout time.Duration
}

// NewRedisStore wraps an existing client. The caller keeps ownership of the
// client's lifecycle; Close is a no-op.
func NewRedisStore(client goredis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = "relay:execution_history"
	}
	return &RedisStore{
		client:  client,
		key:     key,
		timeout: 3 * time.Second,
	}
}

// Load reads the persisted buffer.
func (s *RedisStore) Load() ([]Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	payload, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return records, nil
}

// Save overwrites the persisted buffer. No TTL: the history is bounded by the
// recorder's capacity, not by age.
func (s *RedisStore) Save(records []Record) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStore) Close() error {
	return nil
}
