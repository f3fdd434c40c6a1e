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
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/utils"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CreateProductCommand struct {
	Name  string `json:"name" validate:"required,max=255"`
	Price int64  `json:"price" validate:"gte=0"`
	Stock int64  `json:"stock" validate:"gte=0"`
}

type ProductService interface {
	Create(ctx context.Context, cmd CreateProductCommand) (*domain.Product, error)
	GetDetail(ctx context.Context, id int64) (*domain.ProductDetail, error)
	// RecordView publishes a view signal. It never fails the read that
	// triggered it.
	RecordView(ctx context.Context, userID, id int64)
	Restock(ctx context.Context, id, quantity int64) (*domain.StockChange, error)
}

type productService struct {
	uow         *db.UnitOfWork
	productRepo repository.ProductRepository
	publisher   event.Publisher
	evictor     cache.Evictor
	topics      config.Kafka
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func NewProductService(
	uow *db.UnitOfWork,
	productRepo repository.ProductRepository,
	publisher event.Publisher,
	evictor cache.Evictor,
	topics config.Kafka,
	logger *zap.Logger,
) ProductService {
	return &productService{
		uow:         uow,
		productRepo: productRepo,
		publisher:   publisher,
		evictor:     evictor,
		topics:      topics,
		logger:      logger,
		tracer:      otel.Tracer("service/product_service"),
		now:         time.Now,
	}
}

func (s *productService) Create(ctx context.Context, cmd CreateProductCommand) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Create")
	defer span.End()

	if err := utils.Validate(cmd); err != nil {
		return nil, err
	}

	product := &domain.Product{
		Name:  cmd.Name,
		Price: cmd.Price,
		Stock: cmd.Stock,
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		return s.productRepo.Create(ctx, tx, product)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	mylogger.Info(ctx, s.logger, "Product created", zap.Int64("product_id", product.ID))

	return product, nil
}

func (s *productService) GetDetail(ctx context.Context, id int64) (*domain.ProductDetail, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.GetDetail")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", id))

	return s.productRepo.GetDetail(ctx, id)
}

func (s *productService) RecordView(ctx context.Context, userID, id int64) {
	err := s.publisher.Publish(ctx, s.topics.CatalogTopic, productKey(id), generalDomain.ProductViewedEvent{
		ProductID:  id,
		UserID:     userID,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Failed to publish product view",
			zap.Int64("product_id", id),
			zap.Error(err),
		)
	}
}

func (s *productService) Restock(ctx context.Context, id, quantity int64) (*domain.StockChange, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Restock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", id),
		attribute.Int64("quantity", quantity),
	)

	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var change *domain.StockChange
	err := s.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		var err error
		change, err = s.productRepo.IncreaseStock(ctx, tx, id, quantity)
		if err != nil {
			return err
		}

		s.publisher.PublishAfterCommit(tx, s.topics.CatalogTopic, productKey(id), generalDomain.StockIncreasedEvent{
			ProductID:     change.ProductID,
			PreviousStock: change.PreviousStock,
			CurrentStock:  change.CurrentStock,
			Quantity:      change.Quantity,
			Reason:        generalDomain.StockReasonRestock,
			OccurredAt:    s.now().UTC(),
		})
		evictProductsAfterCommit(tx, s.evictor, id)

		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Product restocked",
		zap.Int64("product_id", id),
		zap.Int64("stock", change.CurrentStock),
	)

	return change, nil
}
