package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL is how long an untouched cart survives.
const TTL = 30 * 24 * time.Hour

const maxTxRetries = 5

// RedisStore keeps each cart in a hash "cart:{owner}" whose fields are line
// keys and whose values are JSON lines.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func hashKey(owner Owner) string { return "cart:" + string(owner) }

func (s *RedisStore) Items(ctx context.Context, owner Owner) ([]Item, error) {
	raw, err := s.rdb.HGetAll(ctx, hashKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart/redis: items: %w", err)
	}
	out := make([]Item, 0, len(raw))
	for _, v := range raw {
		var it Item
		if err := json.Unmarshal([]byte(v), &it); err != nil {
			return nil, fmt.Errorf("cart/redis: decode line: %w", err)
		}
		out = append(out, it)
	}
	sortItems(out)
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, owner Owner, key string) (Item, bool, error) {
	raw, err := s.rdb.HGet(ctx, hashKey(owner), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, fmt.Errorf("cart/redis: get: %w", err)
	}
	var it Item
	if err := json.Unmarshal(raw, &it); err != nil {
		return Item{}, false, fmt.Errorf("cart/redis: decode line: %w", err)
	}
	return it, true, nil
}

// Add merges under WATCH so concurrent adds of the same line both count.
func (s *RedisStore) Add(ctx context.Context, owner Owner, item Item) (Item, error) {
	if item.Quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}
	item = normalize(item)
	hk := hashKey(owner)

	var result Item
	txf := func(tx *redis.Tx) error {
		next := item
		raw, err := tx.HGet(ctx, hk, item.Key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var existing Item
			if err := json.Unmarshal(raw, &existing); err != nil {
				return err
			}
			next.Quantity += existing.Quantity
			next.AddedAt = existing.AddedAt
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, hk, next.Key, payload)
			p.Expire(ctx, hk, TTL)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, hk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Item{}, fmt.Errorf("cart/redis: add: %w", err)
		}
		return result, nil
	}
	return Item{}, errors.New("cart/redis: add: too much contention")
}

func (s *RedisStore) SetQuantity(ctx context.Context, owner Owner, key string, qty int) (bool, error) {
	hk := hashKey(owner)
	it, ok, err := s.Get(ctx, owner, key)
	if err != nil || !ok {
		return ok, err
	}
	if qty <= 0 {
		return true, s.Remove(ctx, owner, key)
	}
	it.Quantity = qty
	payload, err := json.Marshal(it)
	if err != nil {
		return false, err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, hk, key, payload)
		p.Expire(ctx, hk, TTL)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("cart/redis: set quantity: %w", err)
	}
	return true, nil
}

func (s *RedisStore) Remove(ctx context.Context, owner Owner, key string) error {
	if err := s.rdb.HDel(ctx, hashKey(owner), key).Err(); err != nil {
		return fmt.Errorf("cart/redis: remove: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, owner Owner) error {
	if err := s.rdb.Del(ctx, hashKey(owner)).Err(); err != nil {
		return fmt.Errorf("cart/redis: clear: %w", err)
	}
	return nil
}
