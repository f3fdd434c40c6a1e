package service

import (
	"context"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CouponService interface {
	// Quote returns the discount couponID gives on total. It checks
	// ownership only; usability is checked when the coupon is consumed.
	Quote(ctx context.Context, tx *db.Tx, userID, couponID, total int64) (int64, error)
	// OnOrderPlaced consumes the coupon. It runs as a before-commit hook of
	// the placement, so a failure rolls the whole order back.
	OnOrderPlaced(ctx context.Context, tx *db.Tx, userID, couponID int64) error
}

type couponService struct {
	couponRepo repository.CouponRepository
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewCouponService(couponRepo repository.CouponRepository, logger *zap.Logger) CouponService {
	return &couponService{
		couponRepo: couponRepo,
		logger:     logger,
		tracer:     otel.Tracer("service/coupon_service"),
		now:        time.Now,
	}
}

func (s *couponService) Quote(ctx context.Context, tx *db.Tx, userID, couponID, total int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "CouponService.Quote")
	defer span.End()

	coupon, err := s.couponRepo.GetOwned(ctx, tx, userID, couponID)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	return coupon.Discount(total), nil
}

func (s *couponService) OnOrderPlaced(ctx context.Context, tx *db.Tx, userID, couponID int64) error {
	ctx, span := s.tracer.Start(ctx, "CouponService.OnOrderPlaced")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("coupon_id", couponID),
	)

	userCoupon, err := s.couponRepo.GetUserCouponForUpdate(ctx, tx, userID, couponID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := userCoupon.Use(s.now()); err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			s.logger,
			"Coupon not usable, rolling back order",
			zap.Int64("user_id", userID),
			zap.Int64("coupon_id", couponID),
			zap.String("status", string(userCoupon.Status)),
			zap.Error(err),
		)

		return err
	}

	return s.couponRepo.UpdateUserCoupon(ctx, tx, userCoupon)
}
