package quota

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/riftwatch/riftwatch/internal/metrics"
)

const (
	redisLockTTL       = 5 * time.Second
	redisLockRetryWait = 25 * time.Millisecond
)

// RedisLedger shares the request history through a Redis sorted set per API
// key (score = unix milliseconds, member = region|method|nonce), serialised
// with a SET NX lock. Useful where runners cannot reach a shared SQL server.
type RedisLedger struct {
	rdb   *redis.Client
	log   *AdmissionLog
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func NewRedisLedger(rdb *redis.Client, log *AdmissionLog) *RedisLedger {
	return &RedisLedger{rdb: rdb, log: log, now: time.Now, sleep: sleep}
}

func (r *RedisLedger) Permit(ctx context.Context, apiKey, region, method, uri string, quotas []Quota) error {
	start := r.now()
	wMax := maxWindow(quotas)
	historyKey := "riftwatch:requesthistory:" + apiKey
	lockKey := historyKey + ":lock"
	lockToken := uuid.NewString()

	for {
		if err := r.lock(ctx, lockKey, lockToken); err != nil {
			return err
		}

		now := r.now()
		cutoff := now.Add(-wMax)

		// Drop aged-out members, then read the rest of the window.
		if err := r.rdb.ZRemRangeByScore(ctx, historyKey, "0", strconv.FormatInt(cutoff.UnixMilli(), 10)).Err(); err != nil {
			r.unlock(ctx, lockKey, lockToken)
			return fmt.Errorf("quota: trim redis history: %w", err)
		}
		members, err := r.rdb.ZRangeByScoreWithScores(ctx, historyKey, &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
		if err != nil {
			r.unlock(ctx, lockKey, lockToken)
			return fmt.Errorf("quota: read redis history: %w", err)
		}

		entries := make([]entry, 0, len(members))
		for _, m := range members {
			member, ok := m.Member.(string)
			if !ok {
				continue
			}
			parts := strings.SplitN(member, "|", 3)
			if len(parts) != 3 {
				continue
			}
			entries = append(entries, entry{
				At:     time.UnixMilli(int64(m.Score)),
				Region: parts[0],
				Method: parts[1],
			})
		}

		decisions := evaluate(now, entries, quotas)
		r.log.Record(now, region, decisions)

		if wait := firstWait(decisions); wait > 0 {
			if err := r.unlock(ctx, lockKey, lockToken); err != nil {
				return err
			}
			if err := r.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		member := fmt.Sprintf("%s|%s|%s", region, method, uuid.NewString())
		pipe := r.rdb.TxPipeline()
		pipe.ZAdd(ctx, historyKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		pipe.Expire(ctx, historyKey, wMax+time.Minute)
		if _, err := pipe.Exec(ctx); err != nil {
			r.unlock(ctx, lockKey, lockToken)
			return fmt.Errorf("quota: record request: %w", err)
		}
		if err := r.unlock(ctx, lockKey, lockToken); err != nil {
			return err
		}
		metrics.PermitWaitSeconds.Observe(r.now().Sub(start).Seconds())
		return nil
	}
}

func (r *RedisLedger) lock(ctx context.Context, key, token string) error {
	for {
		ok, err := r.rdb.SetNX(ctx, key, token, redisLockTTL).Result()
		if err != nil {
			return fmt.Errorf("quota: acquire redis lock: %w", err)
		}
		if ok {
			return nil
		}
		if err := r.sleep(ctx, redisLockRetryWait); err != nil {
			return err
		}
	}
}

// unlock releases the lock only if we still hold it (the TTL may have fired).
var redisUnlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

func (r *RedisLedger) unlock(ctx context.Context, key, token string) error {
	if err := redisUnlockScript.Run(ctx, r.rdb, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("quota: release redis lock: %w", err)
	}
	return nil
}

func (r *RedisLedger) Close() error {
	r.log.Close()
	return r.rdb.Close()
}
