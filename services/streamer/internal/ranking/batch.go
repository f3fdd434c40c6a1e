package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var Periods = []domain.Period{domain.PeriodWeekly, domain.PeriodMonthly}

// Batch rebuilds the weekly and monthly snapshots from the daily metrics.
type Batch struct {
	uow       *db.UnitOfWork
	metrics   repository.MetricsRepository
	snapshots repository.SnapshotRepository
	weights   domain.Weights
	loc       *time.Location
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewBatch(
	uow *db.UnitOfWork,
	metrics repository.MetricsRepository,
	snapshots repository.SnapshotRepository,
	weights domain.Weights,
	loc *time.Location,
	logger *zap.Logger,
) (*Batch, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Batch{
		uow:       uow,
		metrics:   metrics,
		snapshots: snapshots,
		weights:   weights,
		loc:       loc,
		logger:    logger,
		tracer:    otel.Tracer("ranking/batch"),
	}, nil
}

// Run recomputes every period ending at target's day concurrently.
func (b *Batch) Run(ctx context.Context, target time.Time) error {
	ctx, span := b.tracer.Start(ctx, "Batch.Run")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	for _, period := range Periods {
		g.Go(func() error {
			return b.RunPeriod(gctx, period, target)
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

func (b *Batch) RunPeriod(ctx context.Context, period domain.Period, target time.Time) error {
	ctx, span := b.tracer.Start(ctx, "Batch.RunPeriod")
	defer span.End()

	day := target.In(b.loc)
	from := day.AddDate(0, 0, -(period.Days() - 1))
	key := domain.PeriodKey(day)

	span.SetAttributes(
		attribute.String("period", string(period)),
		attribute.String("period_key", key),
	)

	totals, err := b.metrics.SumDaily(ctx, from, day)
	if err != nil {
		span.RecordError(err)
		return err
	}

	rows := Rank(period, key, totals, b.weights)

	err = b.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		return b.snapshots.Replace(ctx, tx, period, key, rows)
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to store %s ranking %s: %w", period, key, err)
	}

	mylogger.Info(
		ctx,
		b.logger,
		"Ranking snapshot rebuilt",
		zap.String("period", string(period)),
		zap.String("period_key", key),
		zap.Int("products", len(rows)),
	)

	return nil
}

// Rank scores totals and orders them by score descending, ties broken by
// product id ascending. Ranks start at 1.
func Rank(period domain.Period, key string, totals []domain.Totals, weights domain.Weights) []domain.Snapshot {
	rows := make([]domain.Snapshot, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, domain.Snapshot{
			Period:     period,
			PeriodKey:  key,
			ProductID:  t.ProductID,
			Score:      weights.ScoreOf(t),
			LikeCount:  t.Likes,
			SalesCount: t.Sales,
			ViewCount:  t.Views,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Score.Cmp(rows[j].Score); c != 0 {
			return c > 0
		}

		return rows[i].ProductID < rows[j].ProductID
	})

	for i := range rows {
		rows[i].Rank = i + 1
	}

	return rows
}

// Top reads a stored snapshot page. Pages are 0-based.
func (b *Batch) Top(ctx context.Context, period domain.Period, key string, page, size int) ([]domain.Snapshot, error) {
	if page < 0 || size <= 0 {
		return nil, domain.ErrInvalidPage
	}

	return b.snapshots.Top(ctx, period, key, size, page*size)
}
