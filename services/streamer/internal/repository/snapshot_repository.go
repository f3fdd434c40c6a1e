package repository

import (
	"context"
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type SnapshotRepository interface {
	// Replace swaps the whole (period, key) snapshot for rows inside tx.
	Replace(ctx context.Context, tx pgx.Tx, period domain.Period, key string, rows []domain.Snapshot) error
	Top(ctx context.Context, period domain.Period, key string, limit, offset int) ([]domain.Snapshot, error)
}

type snapshotRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewSnapshotRepository(pool *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepo{
		pool:   pool,
		tracer: otel.Tracer("repository/snapshot_repo"),
	}
}

func (r *snapshotRepo) Replace(ctx context.Context, tx pgx.Tx, period domain.Period, key string, rows []domain.Snapshot) error {
	ctx, span := r.tracer.Start(ctx, "SnapshotRepository.Replace")
	defer span.End()

	span.SetAttributes(
		attribute.String("period", string(period)),
		attribute.String("period_key", key),
		attribute.Int("rows", len(rows)),
	)

	if _, err := tx.Exec(ctx, `DELETE FROM product_rank_snapshots WHERE period = $1 AND period_key = $2;`, period, key); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear %s snapshot %s: %w", period, key, err)
	}

	if len(rows) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"product_rank_snapshots"},
		[]string{"period", "period_key", "rank", "product_id", "score", "like_count", "sales_count", "view_count"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			s := rows[i]

			var score pgtype.Numeric
			if err := score.Scan(s.Score.String()); err != nil {
				return nil, fmt.Errorf("invalid score %s: %w", s.Score, err)
			}

			return []any{string(period), key, s.Rank, s.ProductID, score, s.LikeCount, s.SalesCount, s.ViewCount}, nil
		}),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to copy %s snapshot %s: %w", period, key, err)
	}

	return nil
}

func (r *snapshotRepo) Top(ctx context.Context, period domain.Period, key string, limit, offset int) ([]domain.Snapshot, error) {
	ctx, span := r.tracer.Start(ctx, "SnapshotRepository.Top")
	defer span.End()

	query := `
		SELECT period, period_key, rank, product_id, score, like_count, sales_count, view_count
		FROM product_rank_snapshots
		WHERE period = $1 AND period_key = $2
		ORDER BY rank ASC
		LIMIT $3 OFFSET $4;
	`

	rows, err := r.pool.Query(ctx, query, period, key, limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query %s snapshot %s: %w", period, key, err)
	}

	snapshots, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Snapshot])
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan %s snapshot %s: %w", period, key, err)
	}

	return snapshots, nil
}
