package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type CouponRepository interface {
	// GetOwned returns the coupon definition only if userID holds it.
	GetOwned(ctx context.Context, tx pgx.Tx, userID, couponID int64) (*domain.Coupon, error)
	GetUserCouponForUpdate(ctx context.Context, tx pgx.Tx, userID, couponID int64) (*domain.UserCoupon, error)
	UpdateUserCoupon(ctx context.Context, tx pgx.Tx, coupon *domain.UserCoupon) error
}

type couponRepo struct {
	tracer trace.Tracer
}

func NewCouponRepository() CouponRepository {
	return &couponRepo{
		tracer: otel.Tracer("coupon_repository"),
	}
}

func (r *couponRepo) GetOwned(ctx context.Context, tx pgx.Tx, userID, couponID int64) (*domain.Coupon, error) {
	ctx, span := r.tracer.Start(ctx, "CouponRepository.GetOwned")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("coupon_id", couponID),
	)

	query := `
		SELECT c.id, c.name, c.discount_type, c.discount_value
		FROM coupons c
		JOIN user_coupons uc ON uc.coupon_id = c.id
		WHERE c.id = $1 AND uc.user_id = $2
	`

	var c domain.Coupon
	err := tx.QueryRow(ctx, query, couponID, userID).Scan(&c.ID, &c.Name, &c.DiscountType, &c.DiscountValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: coupon %d for user %d", ErrCouponNotFound, couponID, userID)
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}

	return &c, nil
}

func (r *couponRepo) GetUserCouponForUpdate(ctx context.Context, tx pgx.Tx, userID, couponID int64) (*domain.UserCoupon, error) {
	ctx, span := r.tracer.Start(ctx, "CouponRepository.GetUserCouponForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("coupon_id", couponID),
	)

	query := `
		SELECT id, user_id, coupon_id, status, expires_at, used_at
		FROM user_coupons
		WHERE user_id = $1 AND coupon_id = $2
		FOR UPDATE
	`

	rows, err := tx.Query(ctx, query, userID, couponID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query user coupon: %w", err)
	}

	uc, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[domain.UserCoupon])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: coupon %d for user %d", ErrCouponNotFound, couponID, userID)
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan user coupon: %w", err)
	}

	return uc, nil
}

func (r *couponRepo) UpdateUserCoupon(ctx context.Context, tx pgx.Tx, coupon *domain.UserCoupon) error {
	ctx, span := r.tracer.Start(ctx, "CouponRepository.UpdateUserCoupon")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_coupon_id", coupon.ID),
		attribute.String("status", string(coupon.Status)),
	)

	tag, err := tx.Exec(ctx, `UPDATE user_coupons SET status = $1, used_at = $2 WHERE id = $3`,
		string(coupon.Status), coupon.UsedAt, coupon.ID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update user coupon: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrCouponNotFound
	}

	return nil
}
