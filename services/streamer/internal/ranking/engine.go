// Package ranking keeps the daily product ranking in Redis sorted sets and
// recomputes the weekly and monthly snapshots from the daily metrics.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	keyPrefix    = "ranking:all:"
	memberPrefix = "product:"
	carryPrefix  = "ranking:carried:"

	// scorePrecision is the number of decimals scores are read back with.
	// ZINCRBY adds float64 steps, so a view followed by a like and an unlike
	// is stored as 0.10000000000000003.
	scorePrecision = 6
)

type Engine struct {
	rdb     redis.Cmdable
	weights domain.Weights
	ttl     time.Duration
	loc     *time.Location
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewEngine(rdb redis.Cmdable, weights domain.Weights, ttl time.Duration, loc *time.Location, logger *zap.Logger) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Engine{
		rdb:     rdb,
		weights: weights,
		ttl:     ttl,
		loc:     loc,
		logger:  logger,
		tracer:  otel.Tracer("ranking/engine"),
	}, nil
}

// Key is the sorted set holding the ranking of the day containing at.
func (e *Engine) Key(at time.Time) string {
	return keyPrefix + at.In(e.loc).Format("20060102")
}

func Member(productID int64) string {
	return memberPrefix + strconv.FormatInt(productID, 10)
}

func productOf(member string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(member, memberPrefix), 10, 64)
}

// ApplyDelta moves productID on the ranking of occurredAt's day by the
// weighted score of delta.
func (e *Engine) ApplyDelta(ctx context.Context, productID int64, delta domain.Delta, occurredAt time.Time) error {
	score := e.weights.Score(delta)
	if score == 0 {
		return nil
	}

	ctx, span := e.tracer.Start(ctx, "Engine.ApplyDelta")
	defer span.End()

	key := e.Key(occurredAt)

	span.SetAttributes(
		attribute.String("ranking.key", key),
		attribute.Int64("product_id", productID),
		attribute.Float64("score", score),
	)

	_, err := e.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZIncrBy(ctx, key, score, Member(productID))
		pipe.Expire(ctx, key, e.ttl)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update ranking %s: %w", key, err)
	}

	return nil
}

// Top returns one page of the day's ranking, best first. Pages are 0-based.
func (e *Engine) Top(ctx context.Context, date time.Time, page, size int) ([]domain.RankItem, error) {
	if page < 0 || size <= 0 {
		return nil, domain.ErrInvalidPage
	}

	ctx, span := e.tracer.Start(ctx, "Engine.Top")
	defer span.End()

	start := int64(page * size)
	members, err := e.rdb.ZRevRangeWithScores(ctx, e.Key(date), start, start+int64(size)-1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read ranking: %w", err)
	}

	items := make([]domain.RankItem, 0, len(members))
	for i, z := range members {
		member, _ := z.Member.(string)

		productID, err := productOf(member)
		if err != nil {
			mylogger.Warn(ctx, e.logger, "Skipping malformed ranking member", zap.String("member", member))
			continue
		}

		items = append(items, domain.RankItem{
			ProductID: productID,
			Rank:      start + int64(i) + 1,
			Score:     roundScore(z.Score),
		})
	}

	return items, nil
}

func (e *Engine) Count(ctx context.Context, date time.Time) (int64, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Count")
	defer span.End()

	n, err := e.rdb.ZCard(ctx, e.Key(date)).Result()
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count ranking: %w", err)
	}

	return n, nil
}

// RankOf reports productID's 1-based position on the day's ranking. A product
// absent from the ranking is not ranked, which is not an error.
func (e *Engine) RankOf(ctx context.Context, date time.Time, productID int64) (domain.RankItem, bool, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.RankOf")
	defer span.End()

	key, member := e.Key(date), Member(productID)

	pipe := e.rdb.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, key, member)
	scoreCmd := pipe.ZScore(ctx, key, member)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		return domain.RankItem{}, false, fmt.Errorf("failed to read rank of product %d: %w", productID, err)
	}

	rank, err := rankCmd.Result()
	if errors.Is(err, redis.Nil) {
		return domain.RankItem{ProductID: productID}, false, nil
	}
	if err != nil {
		return domain.RankItem{}, false, err
	}

	return domain.RankItem{
		ProductID: productID,
		Rank:      rank + 1,
		Score:     roundScore(scoreCmd.Val()),
	}, true, nil
}

// CarryOver seeds to's ranking with from's scores scaled by weight, so a
// new day does not start empty. It runs at most once per target day.
func (e *Engine) CarryOver(ctx context.Context, from, to time.Time, weight float64) (bool, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.CarryOver")
	defer span.End()

	fromKey, toKey := e.Key(from), e.Key(to)
	if fromKey == toKey {
		return false, nil
	}

	span.SetAttributes(
		attribute.String("ranking.from", fromKey),
		attribute.String("ranking.to", toKey),
		attribute.Float64("weight", weight),
	)

	marker := carryPrefix + strings.TrimPrefix(toKey, keyPrefix)

	first, err := e.rdb.SetNX(ctx, marker, fromKey, e.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to claim carry-over %s: %w", marker, err)
	}
	if !first {
		return false, nil
	}

	_, err = e.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZUnionStore(ctx, toKey, &redis.ZStore{
			Keys:    []string{toKey, fromKey},
			Weights: []float64{1, weight},
		})
		pipe.Expire(ctx, toKey, e.ttl)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		e.rdb.Del(ctx, marker)
		return false, fmt.Errorf("failed to carry %s over to %s: %w", fromKey, toKey, err)
	}

	mylogger.Info(
		ctx,
		e.logger,
		"Ranking carried over",
		zap.String("from", fromKey),
		zap.String("to", toKey),
		zap.Float64("weight", weight),
	)

	return true, nil
}

func roundScore(score float64) float64 {
	return decimal.NewFromFloat(score).Round(scorePrecision).InexactFloat64()
}

// Location is the zone ranking days are cut in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

