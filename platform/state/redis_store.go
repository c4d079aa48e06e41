package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/GoCodeAlone/appsyncctl/platform"
)

// DefaultRedisPrefix namespaces snapshot keys.
const DefaultRedisPrefix = "appsyncctl:state:"

// RedisStore keeps snapshots as JSON strings in Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects using a redis:// URL and verifies the connection.
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis state: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis state: ping failed: %w", err)
	}
	return NewRedisStoreWithClient(client, prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Load returns the snapshot stored for stack.
func (s *RedisStore) Load(ctx context.Context, stack string) (*platform.Snapshot, error) {
	data, err := s.client.Get(ctx, s.prefix+stack).Bytes()
	if errors.Is(err, redis.Nil) {
		return &platform.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis state: load %q: %w", stack, err)
	}
	return platform.DecodeSnapshot(data)
}

// Save overwrites the snapshot for stack. Snapshots never expire.
func (s *RedisStore) Save(ctx context.Context, stack string, snap *platform.Snapshot) error {
	data, err := platform.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+stack, data, 0).Err(); err != nil {
		return fmt.Errorf("redis state: save %q: %w", stack, err)
	}
	return nil
}

// Delete removes the snapshot for stack.
func (s *RedisStore) Delete(ctx context.Context, stack string) error {
	if err := s.client.Del(ctx, s.prefix+stack).Err(); err != nil {
		return fmt.Errorf("redis state: delete %q: %w", stack, err)
	}
	return nil
}

var _ platform.StateStore = (*RedisStore)(nil)
