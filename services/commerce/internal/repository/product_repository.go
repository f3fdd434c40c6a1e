package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProductRepository interface {
	Create(ctx context.Context, tx pgx.Tx, product *domain.Product) error
	GetDetail(ctx context.Context, id int64) (*domain.ProductDetail, error)
	DecreaseStock(ctx context.Context, tx pgx.Tx, id, quantity int64) (*domain.StockChange, error)
	IncreaseStock(ctx context.Context, tx pgx.Tx, id, quantity int64) (*domain.StockChange, error)
}

type productRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewProductRepository(pool *pgxpool.Pool, logger *zap.Logger) ProductRepository {
	return &productRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("product_repository"),
	}
}

func (r *productRepo) Create(ctx context.Context, tx pgx.Tx, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	query := `
		INSERT INTO products (name, price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(ctx, query, product.Name, product.Price, product.Stock).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert product: %w", err)
	}

	return nil
}

func (r *productRepo) GetDetail(ctx context.Context, id int64) (*domain.ProductDetail, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetDetail")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", id))

	query := `
		SELECT p.id, p.name, p.price, p.stock, p.created_at, p.updated_at,
			GREATEST(COALESCE(m.like_count, 0), 0)
		FROM products p
		LEFT JOIN product_metrics m ON m.product_id = p.id
		WHERE p.id = $1
	`

	var d domain.ProductDetail
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.Name,
		&d.Price,
		&d.Stock,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.LikeCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to query product %d: %w", id, err)
	}

	return &d, nil
}

// DecreaseStock takes quantity units in a single guarded statement. The
// returned price is the snapshot recorded on the order line.
func (r *productRepo) DecreaseStock(ctx context.Context, tx pgx.Tx, id, quantity int64) (*domain.StockChange, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.DecreaseStock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
		attribute.Int64("quantity", quantity),
	)

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING price, stock
	`

	change := &domain.StockChange{ProductID: id, Quantity: quantity}
	err := tx.QueryRow(ctx, query, id, quantity).Scan(&change.Price, &change.CurrentStock)
	if err == nil {
		change.PreviousStock = change.CurrentStock + quantity
		return change, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error decreasing stock",
			zap.Int64("id", id),
			zap.Int64("quantity", quantity),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error decreasing stock for product %d: %w", id, err)
	}

	var stock int64
	if err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
		}

		return nil, fmt.Errorf("failed to query product %d: %w", id, err)
	}

	return nil, fmt.Errorf("%w: product %d has %d, requested %d", domain.ErrInsufficientStock, id, stock, quantity)
}

func (r *productRepo) IncreaseStock(ctx context.Context, tx pgx.Tx, id, quantity int64) (*domain.StockChange, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.IncreaseStock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
		attribute.Int64("quantity", quantity),
	)

	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING price, stock
	`

	change := &domain.StockChange{ProductID: id, Quantity: quantity}
	err := tx.QueryRow(ctx, query, id, quantity).Scan(&change.Price, &change.CurrentStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			mylogger.Warn(ctx, r.logger, "Product not found", zap.Int64("product_id", id))
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
		}

		span.RecordError(err)
		mylogger.Warn(ctx, r.logger, "Failed to update stock", zap.Error(err))

		return nil, fmt.Errorf("error increasing stock for product %d: %w", id, err)
	}

	change.PreviousStock = change.CurrentStock - quantity

	return change, nil
}
