package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"sigef-backend/internal/model"
)

const (
	reportKey     = "sigef:report"
	generationKey = "sigef:report:generation"
)

// ReportCache keeps the last computed report until a mutation invalidates it.
// Every Invalidate bumps a generation counter; Set only stores a report built at
// the current generation, so a build that raced a write is never cached.
type ReportCache interface {
	Get(ctx context.Context) (*model.ReportData, bool, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, report *model.ReportData, generation int64) error
	Invalidate(ctx context.Context) error
}

type redisReportCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewReportCache returns a redis-backed cache, or a no-op one when rdb is nil.
func NewReportCache(rdb *redis.Client, ttl time.Duration) ReportCache {
	if rdb == nil {
		return NoopReportCache{}
	}
	return &redisReportCache{rdb: rdb, ttl: ttl}
}

func (c *redisReportCache) Get(ctx context.Context) (*model.ReportData, bool, error) {
	val, err := c.rdb.Get(ctx, reportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report model.ReportData
	if err := json.Unmarshal(val, &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *redisReportCache) Generation(ctx context.Context) (int64, error) {
	return readGeneration(ctx, c.rdb)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, cmd getter) (int64, error) {
	gen, err := cmd.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *redisReportCache) Set(ctx context.Context, report *model.ReportData, generation int64) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx)
		if err != nil {
			return err
		}
		if current != generation {
			return nil // invalidated while the report was being built
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, reportKey, payload, c.ttl)
			return nil
		})
		return err
	}, generationKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *redisReportCache) Invalidate(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, reportKey)
		return nil
	})
	return err
}

// NoopReportCache never holds anything.
type NoopReportCache struct{}

func (NoopReportCache) Get(context.Context) (*model.ReportData, bool, error) { return nil, false, nil }
func (NoopReportCache) Generation(context.Context) (int64, error)            { return 0, nil }
func (NoopReportCache) Set(context.Context, *model.ReportData, int64) error   { return nil }
func (NoopReportCache) Invalidate(context.Context) error                      { return nil }
