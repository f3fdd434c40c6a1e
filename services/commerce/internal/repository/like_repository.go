package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type LikeRepository interface {
	// Insert reports false when the like already existed.
	Insert(ctx context.Context, tx pgx.Tx, userID, productID int64) (bool, error)
	// Delete reports false when there was nothing to remove.
	Delete(ctx context.Context, tx pgx.Tx, userID, productID int64) (bool, error)
}

type likeRepo struct {
	tracer trace.Tracer
}

func NewLikeRepository() LikeRepository {
	return &likeRepo{
		tracer: otel.Tracer("like_repository"),
	}
}

func (r *likeRepo) Insert(ctx context.Context, tx pgx.Tx, userID, productID int64) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "LikeRepository.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
	)

	tag, err := tx.Exec(ctx, `
		INSERT INTO likes (user_id, product_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, product_id) DO NOTHING
	`, userID, productID)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to insert like: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *likeRepo) Delete(ctx context.Context, tx pgx.Tx, userID, productID int64) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "LikeRepository.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
	)

	tag, err := tx.Exec(ctx, `DELETE FROM likes WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to delete like: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
