// Package cache provides the JSON key/value cache used by the catalog.
//
// Redis is the production driver. When REDIS_ADDR is unset or unreachable
// the process falls back to an in-memory store so reads keep working on a
// single instance.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buddyengineerz/storefront/config"
	"github.com/buddyengineerz/storefront/pkg/metrics"
)

// Store is the cache contract services depend on.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelPrefix removes every key starting with prefix.
	DelPrefix(ctx context.Context, prefix string) error
}

// RDB is the shared Redis client, nil when Redis is not connected. The cart
// store and queue reuse it.
var RDB *redis.Client

var (
	mu       sync.RWMutex
	defaultS Store = NewMemory()
)

// Connect dials Redis and, on success, makes it the default store.
func Connect(ctx context.Context) error {
	addr := config.RedisAddr()
	if addr == "" {
		return fmt.Errorf("cache: REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.RedisPassword(),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("cache: redis ping: %w", err)
	}

	RDB = client
	mu.Lock()
	defaultS = NewRedis(client)
	mu.Unlock()
	return nil
}

// Ping reports Redis health; nil when Redis is not in use.
func Ping(ctx context.Context) error {
	if RDB == nil {
		return nil
	}
	return RDB.Ping(ctx).Err()
}

// Default returns the process-wide store.
func Default() Store {
	mu.RLock()
	defer mu.RUnlock()
	return defaultS
}

// ── Redis driver ────────────────────────────────────────────────────────────

type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis { return &Redis{client: client} }

func (r *Redis) Get(ctx context.Context, key string, dest interface{}) bool {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil || json.Unmarshal(val, dest) != nil {
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues("redis").Inc()
	return true
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *Redis) DelPrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return r.Del(ctx, keys...)
}

// ── Memory driver ───────────────────────────────────────────────────────────

type entry struct {
	data    []byte
	expires time.Time
}

type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
}

func NewMemory() *Memory { return &Memory{items: map[string]entry{}} }

func (m *Memory) Get(_ context.Context, key string, dest interface{}) bool {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || (!e.expires.IsZero() && time.Now().After(e.expires)) || json.Unmarshal(e.data, dest) != nil {
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues("memory").Inc()
	return true
}

func (m *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	e := entry{data: data}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) DelPrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
	m.mu.Unlock()
	return nil
}
