package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buddyengineerz/storefront/pkg/logger"
)

const (
	redisQueueKey   = "storefront:queue:jobs"
	redisDelayedKey = "storefront:queue:delayed"
)

// RedisDriver keeps immediate jobs in a list (LPUSH/BRPOP) and delayed jobs
// in a sorted set scored by the Unix time they become due.
type RedisDriver struct {
	rdb *redis.Client
	ctx context.Context
}

// NewRedisDriver shares the client used by pkg/cache. The delayed-job
// promoter runs until ctx is cancelled.
func NewRedisDriver(ctx context.Context, rdb *redis.Client) *RedisDriver {
	d := &RedisDriver{rdb: rdb, ctx: ctx}
	go d.promoteDelayedJobs()
	return d
}

func (d *RedisDriver) Push(payload []byte) error {
	if err := d.rdb.LPush(d.ctx, redisQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

// Pop blocks up to five seconds; (nil, nil) means nothing was ready.
func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	result, err := d.rdb.BRPop(ctx, 5*time.Second, redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue/redis: pop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

func (d *RedisDriver) PushDelayed(payload []byte, delay time.Duration) error {
	runAt := float64(time.Now().Add(delay).Unix())
	if err := d.rdb.ZAdd(d.ctx, redisDelayedKey, redis.Z{
		Score:  runAt,
		Member: string(payload),
	}).Err(); err != nil {
		return fmt.Errorf("queue/redis: push delayed: %w", err)
	}
	return nil
}

// promoteScript moves up to ARGV[2] due jobs from the delayed set to the
// list in one step, so two processes never both promote the same job.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, job in ipairs(due) do
  redis.call('ZREM', KEYS[1], job)
  redis.call('LPUSH', KEYS[2], job)
end
return #due
`)

const promoteBatch = 100

func (d *RedisDriver) promoteDelayedJobs() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
		}
		now := strconv.FormatInt(time.Now().Unix(), 10)
		n, err := promoteScript.Run(d.ctx, d.rdb, []string{redisDelayedKey, redisQueueKey}, now, promoteBatch).Int()
		switch {
		case err != nil && d.ctx.Err() == nil:
			logger.Warn("queue/redis: promote delayed jobs", "error", err)
		case n > 0:
			logger.Debug("queue/redis: promoted delayed jobs", "count", n)
		}
	}
}
