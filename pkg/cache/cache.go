package cache

import (
	"context"
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func ProductDetailKey(productID int64) string {
	return fmt.Sprintf("product:detail:%d", productID)
}

type Evictor interface {
	Evict(ctx context.Context, keys ...string) error
}

// RedisEvictor deletes cache-aside entries. It never repopulates them; the
// next read does.
type RedisEvictor struct {
	rdb    redis.Cmdable
	logger *zap.Logger
	tracer trace.Tracer
}

func NewRedisEvictor(rdb redis.Cmdable, logger *zap.Logger) *RedisEvictor {
	return &RedisEvictor{
		rdb:    rdb,
		logger: logger,
		tracer: otel.Tracer("pkg/cache"),
	}
}

func (e *RedisEvictor) Evict(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, span := e.tracer.Start(ctx, "RedisEvictor.Evict")
	defer span.End()

	span.SetAttributes(attribute.StringSlice("cache.keys", keys))

	if err := e.rdb.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			e.logger,
			"Cache eviction failed",
			zap.Strings("keys", keys),
			zap.Error(err),
		)

		return fmt.Errorf("failed to evict %v: %w", keys, err)
	}

	return nil
}

func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error pinging redis at %s: %w", addr, err)
	}

	return rdb, nil
}
