package service

import (
	"context"
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type PointService interface {
	Get(ctx context.Context, userID int64) (*domain.Point, error)
	Charge(ctx context.Context, userID, amount int64) (*domain.Point, error)
	// Use and Refund run inside the caller's transaction and hold the
	// wallet row lock until it ends.
	Use(ctx context.Context, tx *db.Tx, userID, amount int64) error
	Refund(ctx context.Context, tx *db.Tx, userID, amount int64) error
}

type pointService struct {
	uow       *db.UnitOfWork
	pointRepo repository.PointRepository
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewPointService(uow *db.UnitOfWork, pointRepo repository.PointRepository, logger *zap.Logger) PointService {
	return &pointService{
		uow:       uow,
		pointRepo: pointRepo,
		logger:    logger,
		tracer:    otel.Tracer("service/point_service"),
	}
}

func (s *pointService) Get(ctx context.Context, userID int64) (*domain.Point, error) {
	ctx, span := s.tracer.Start(ctx, "PointService.Get")
	defer span.End()

	return s.pointRepo.Get(ctx, userID)
}

func (s *pointService) Charge(ctx context.Context, userID, amount int64) (*domain.Point, error) {
	ctx, span := s.tracer.Start(ctx, "PointService.Charge")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("amount", amount),
	)

	var point *domain.Point
	err := s.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		var err error
		point, err = s.pointRepo.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		if err := point.Charge(amount); err != nil {
			return err
		}

		return s.pointRepo.Update(ctx, tx, point)
	})
	if err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			s.logger,
			"Point charge failed",
			zap.Int64("user_id", userID),
			zap.Int64("amount", amount),
			zap.Error(err),
		)

		return nil, err
	}

	return point, nil
}

func (s *pointService) Use(ctx context.Context, tx *db.Tx, userID, amount int64) error {
	ctx, span := s.tracer.Start(ctx, "PointService.Use")
	defer span.End()

	return s.apply(ctx, tx, userID, func(p *domain.Point) error { return p.Use(amount) })
}

func (s *pointService) Refund(ctx context.Context, tx *db.Tx, userID, amount int64) error {
	ctx, span := s.tracer.Start(ctx, "PointService.Refund")
	defer span.End()

	return s.apply(ctx, tx, userID, func(p *domain.Point) error { return p.Refund(amount) })
}

func (s *pointService) apply(ctx context.Context, tx *db.Tx, userID int64, change func(p *domain.Point) error) error {
	point, err := s.pointRepo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("failed to lock wallet of user %d: %w", userID, err)
	}

	if err := change(point); err != nil {
		return err
	}

	return s.pointRepo.Update(ctx, tx, point)
}
