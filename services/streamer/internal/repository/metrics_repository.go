package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type MetricsRepository interface {
	// EnsureRow creates the counters row if it does not exist yet.
	EnsureRow(ctx context.Context, tx pgx.Tx, productID int64) error
	Get(ctx context.Context, tx pgx.Tx, productID int64) (*domain.ProductMetrics, error)
	// CompareAndSwap stores m only if its version is still current and
	// reports whether it did.
	CompareAndSwap(ctx context.Context, tx pgx.Tx, m *domain.ProductMetrics) (bool, error)
	AddDaily(ctx context.Context, tx pgx.Tx, productID int64, day time.Time, delta domain.Delta) error
	// SumDaily totals daily deltas for every product over [from, to].
	SumDaily(ctx context.Context, from, to time.Time) ([]domain.Totals, error)
	GetByProductID(ctx context.Context, productID int64) (*domain.ProductMetrics, error)
}

type metricsRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewMetricsRepository(pool *pgxpool.Pool) MetricsRepository {
	return &metricsRepo{
		pool:   pool,
		tracer: otel.Tracer("repository/metrics_repo"),
	}
}

func (r *metricsRepo) EnsureRow(ctx context.Context, tx pgx.Tx, productID int64) error {
	ctx, span := r.tracer.Start(ctx, "MetricsRepository.EnsureRow")
	defer span.End()

	query := `
		INSERT INTO product_metrics (product_id)
		VALUES ($1)
		ON CONFLICT (product_id) DO NOTHING;
	`

	if _, err := tx.Exec(ctx, query, productID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to ensure metrics row for product %d: %w", productID, err)
	}

	return nil
}

func (r *metricsRepo) Get(ctx context.Context, tx pgx.Tx, productID int64) (*domain.ProductMetrics, error) {
	ctx, span := r.tracer.Start(ctx, "MetricsRepository.Get")
	defer span.End()

	return r.get(ctx, tx, productID)
}

func (r *metricsRepo) GetByProductID(ctx context.Context, productID int64) (*domain.ProductMetrics, error) {
	ctx, span := r.tracer.Start(ctx, "MetricsRepository.GetByProductID")
	defer span.End()

	return r.get(ctx, r.pool, productID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *metricsRepo) get(ctx context.Context, q querier, productID int64) (*domain.ProductMetrics, error) {
	query := `
		SELECT product_id, like_count, view_count, sales_count, version, updated_at
		FROM product_metrics
		WHERE product_id = $1;
	`

	rows, err := q.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics of product %d: %w", productID, err)
	}

	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[domain.ProductMetrics])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMetricsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan metrics of product %d: %w", productID, err)
	}

	return m, nil
}

func (r *metricsRepo) CompareAndSwap(ctx context.Context, tx pgx.Tx, m *domain.ProductMetrics) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "MetricsRepository.CompareAndSwap")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", m.ProductID),
		attribute.Int64("version", m.Version),
	)

	query := `
		UPDATE product_metrics
		SET like_count = $3,
			view_count = $4,
			sales_count = $5,
			version = version + 1,
			updated_at = NOW()
		WHERE product_id = $1 AND version = $2;
	`

	tag, err := tx.Exec(ctx, query, m.ProductID, m.Version, m.LikeCount, m.ViewCount, m.SalesCount)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to update metrics of product %d: %w", m.ProductID, err)
	}

	if tag.RowsAffected() == 0 {
		return false, nil
	}

	m.Version++

	return true, nil
}

func (r *metricsRepo) AddDaily(ctx context.Context, tx pgx.Tx, productID int64, day time.Time, delta domain.Delta) error {
	ctx, span := r.tracer.Start(ctx, "MetricsRepository.AddDaily")
	defer span.End()

	query := `
		INSERT INTO product_metrics_daily (product_id, metric_date, like_delta, view_delta, sales_delta)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, metric_date) DO UPDATE
		SET like_delta = product_metrics_daily.like_delta + EXCLUDED.like_delta,
			view_delta = product_metrics_daily.view_delta + EXCLUDED.view_delta,
			sales_delta = product_metrics_daily.sales_delta + EXCLUDED.sales_delta;
	`

	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	if _, err := tx.Exec(ctx, query, productID, date, delta.Like, delta.View, delta.Sales); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to add daily metrics of product %d: %w", productID, err)
	}

	return nil
}

func (r *metricsRepo) SumDaily(ctx context.Context, from, to time.Time) ([]domain.Totals, error) {
	ctx, span := r.tracer.Start(ctx, "MetricsRepository.SumDaily")
	defer span.End()

	span.SetAttributes(
		attribute.String("from", from.Format(time.DateOnly)),
		attribute.String("to", to.Format(time.DateOnly)),
	)

	query := `
		SELECT product_id,
			GREATEST(COALESCE(SUM(like_delta), 0), 0)::BIGINT  AS like_count,
			GREATEST(COALESCE(SUM(sales_delta), 0), 0)::BIGINT AS sales_count,
			GREATEST(COALESCE(SUM(view_delta), 0), 0)::BIGINT  AS view_count
		FROM product_metrics_daily
		WHERE metric_date BETWEEN $1 AND $2
		GROUP BY product_id;
	`

	rows, err := r.pool.Query(ctx, query, from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to sum daily metrics: %w", err)
	}

	totals, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Totals])
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan daily totals: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(totals)))

	return totals, nil
}
