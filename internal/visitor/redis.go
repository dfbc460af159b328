package visitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "blog:visitor:"

// RedisStore keeps one JSON document per visitor and lets Redis expire it.
type RedisStore struct {
	client *redis.Client
	prefix string
	// owned reports whether Close should close the client too.
	owned bool
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromAddr dials Redis and checks the connection.
func NewRedisStoreFromAddr(ctx context.Context, addr, password string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}
	s := NewRedisStore(client, "")
	s.owned = true
	return s, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: encode visitor: %w", err)
	}
	var ttl time.Duration
	if !rec.ExpiresAt.IsZero() {
		ttl = time.Until(rec.ExpiresAt)
		if ttl <= 0 {
			return s.Delete(ctx, rec.ID)
		}
	}
	if err := s.client.Set(ctx, s.key(rec.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to save visitor: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get visitor: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("redis: decode visitor: %w", err)
	}
	if rec.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete visitor: %w", err)
	}
	return nil
}

func (s *RedisStore) Touch(ctx context.Context, id string, seen time.Time, ttl time.Duration) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.LastSeen = seen
	rec.ExpiresAt = seen.Add(ttl)
	return s.Save(ctx, rec)
}

// Purge is a no-op: keys carry their own TTL.
func (s *RedisStore) Purge(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
