package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PointRepository interface {
	Create(ctx context.Context, tx pgx.Tx, userID int64) error
	Get(ctx context.Context, userID int64) (*domain.Point, error)
	// GetForUpdate row-locks the wallet until tx ends.
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Point, error)
	Update(ctx context.Context, tx pgx.Tx, point *domain.Point) error
}

type pointRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewPointRepository(pool *pgxpool.Pool) PointRepository {
	return &pointRepo{
		pool:   pool,
		tracer: otel.Tracer("point_repository"),
	}
}

func (r *pointRepo) Create(ctx context.Context, tx pgx.Tx, userID int64) error {
	ctx, span := r.tracer.Start(ctx, "PointRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	_, err := tx.Exec(ctx, `INSERT INTO points (user_id, balance, updated_at) VALUES ($1, 0, NOW())`, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to open point wallet: %w", err)
	}

	return nil
}

func (r *pointRepo) Get(ctx context.Context, userID int64) (*domain.Point, error) {
	ctx, span := r.tracer.Start(ctx, "PointRepository.Get")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	return r.scan(r.pool.QueryRow(ctx, `SELECT user_id, balance, updated_at FROM points WHERE user_id = $1`, userID))
}

func (r *pointRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Point, error) {
	ctx, span := r.tracer.Start(ctx, "PointRepository.GetForUpdate")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	return r.scan(tx.QueryRow(ctx, `SELECT user_id, balance, updated_at FROM points WHERE user_id = $1 FOR UPDATE`, userID))
}

func (r *pointRepo) scan(row pgx.Row) (*domain.Point, error) {
	var p domain.Point
	if err := row.Scan(&p.UserID, &p.Balance, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPointNotFound
		}

		return nil, fmt.Errorf("failed to scan point wallet: %w", err)
	}

	return &p, nil
}

func (r *pointRepo) Update(ctx context.Context, tx pgx.Tx, point *domain.Point) error {
	ctx, span := r.tracer.Start(ctx, "PointRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", point.UserID),
		attribute.Int64("balance", point.Balance),
	)

	err := tx.QueryRow(
		ctx,
		`UPDATE points SET balance = $1, updated_at = NOW() WHERE user_id = $2 RETURNING updated_at`,
		point.Balance,
		point.UserID,
	).Scan(&point.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPointNotFound
		}

		return fmt.Errorf("failed to update point wallet: %w", err)
	}

	return nil
}
