package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// quotaCounter 是 Redis 客户端中按天计数所需的命令子集。
type quotaCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Decr(ctx context.Context, key string) *redis.IntCmd
	ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd
}

var _ quotaCounter = (*redis.Client)(nil)

// dailyQuota 以 UTC 自然日为窗口计数，键在次日零点过期。
type dailyQuota struct {
	counter quotaCounter
	prefix  string
	limit   int64
}

func quotaKey(prefix string, now time.Time) string {
	return prefix + ":" + now.UTC().Format("2006-01-02")
}

func nextUTCMidnight(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// take 占用一次额度。超额的调用会立即归还，不挤占当天的计数。
func (q dailyQuota) take(ctx context.Context, now time.Time) (used int64, ok bool, err error) {
	key := quotaKey(q.prefix, now)
	used, err = q.counter.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	if used == 1 {
		_ = q.counter.ExpireAt(ctx, key, nextUTCMidnight(now)).Err()
	}
	if used > q.limit {
		_ = q.counter.Decr(ctx, key).Err()
		return used - 1, false, nil
	}
	return used, true, nil
}

// refund 归还一次已占用的额度，用于入队失败。
func (q dailyQuota) refund(ctx context.Context, now time.Time) error {
	return q.counter.Decr(ctx, quotaKey(q.prefix, now)).Err()
}
