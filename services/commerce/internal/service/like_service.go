package service

import (
	"context"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/cache"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/config"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	generalDomain "github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/event"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type LikeService interface {
	// Like and Unlike are idempotent and report whether anything changed.
	Like(ctx context.Context, userID, productID int64) (bool, error)
	Unlike(ctx context.Context, userID, productID int64) (bool, error)
}

type likeService struct {
	uow         *db.UnitOfWork
	likeRepo    repository.LikeRepository
	productRepo repository.ProductRepository
	publisher   event.Publisher
	evictor     cache.Evictor
	topics      config.Kafka
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func NewLikeService(
	uow *db.UnitOfWork,
	likeRepo repository.LikeRepository,
	productRepo repository.ProductRepository,
	publisher event.Publisher,
	evictor cache.Evictor,
	topics config.Kafka,
	logger *zap.Logger,
) LikeService {
	return &likeService{
		uow:         uow,
		likeRepo:    likeRepo,
		productRepo: productRepo,
		publisher:   publisher,
		evictor:     evictor,
		topics:      topics,
		logger:      logger,
		tracer:      otel.Tracer("service/like_service"),
		now:         time.Now,
	}
}

func (s *likeService) Like(ctx context.Context, userID, productID int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "LikeService.Like")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
	)

	return s.toggle(ctx, productID, func(ctx context.Context, tx *db.Tx) (bool, error) {
		return s.likeRepo.Insert(ctx, tx, userID, productID)
	}, func(at time.Time) event.Event {
		return generalDomain.LikeAddedEvent{
			UserID:     userID,
			TargetID:   productID,
			LikeType:   generalDomain.LikeTypeProduct,
			OccurredAt: at,
		}
	})
}

func (s *likeService) Unlike(ctx context.Context, userID, productID int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "LikeService.Unlike")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
	)

	return s.toggle(ctx, productID, func(ctx context.Context, tx *db.Tx) (bool, error) {
		return s.likeRepo.Delete(ctx, tx, userID, productID)
	}, func(at time.Time) event.Event {
		return generalDomain.LikeRemovedEvent{
			UserID:     userID,
			TargetID:   productID,
			LikeType:   generalDomain.LikeTypeProduct,
			OccurredAt: at,
		}
	})
}

// toggle applies write and, only if it changed a row, publishes the event
// built by newEvent once the transaction commits.
func (s *likeService) toggle(
	ctx context.Context,
	productID int64,
	write func(ctx context.Context, tx *db.Tx) (bool, error),
	newEvent func(at time.Time) event.Event,
) (bool, error) {
	var (
		changed bool
		evt     event.Event
	)

	err := s.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		if _, err := s.productRepo.GetDetail(ctx, productID); err != nil {
			return err
		}

		var err error
		changed, err = write(ctx, tx)
		if err != nil || !changed {
			return err
		}

		evt = newEvent(s.now().UTC())
		s.publisher.PublishAfterCommit(tx, s.topics.CatalogTopic, productKey(productID), evt)
		evictProductsAfterCommit(tx, s.evictor, productID)

		return nil
	})
	if err != nil {
		return false, err
	}

	if changed {
		mylogger.Debug(
			ctx,
			s.logger,
			"Like toggled",
			zap.String("event_type", evt.EventType()),
			zap.Int64("product_id", productID),
		)
	}

	return changed, nil
}
