package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID int64) (*domain.Payment, error)
	GetByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error)
	Update(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	ListStale(ctx context.Context, status domain.PaymentStatus, olderThan time.Time, limit int) ([]domain.Payment, error)
}

type paymentRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewPaymentRepository(pool *pgxpool.Pool, logger *zap.Logger) PaymentRepository {
	return &paymentRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("payment_repository"),
	}
}

const paymentColumns = `id, order_id, user_id, transaction_key, amount, status, payment_type,
	card_type, card_no, reason, created_at, updated_at`

func (r *paymentRepo) Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", payment.OrderID),
		attribute.String("status", string(payment.Status)),
	)

	query := `
		INSERT INTO payments (order_id, user_id, transaction_key, amount, status, payment_type, card_type, card_no, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(
		ctx,
		query,
		payment.OrderID,
		payment.UserID,
		payment.TransactionKey,
		payment.Amount,
		string(payment.Status),
		string(payment.PaymentType),
		payment.CardType,
		payment.CardNo,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	return nil
}

func (r *paymentRepo) GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID int64) (*domain.Payment, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.GetByOrderIDForUpdate")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	rows, err := tx.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 FOR UPDATE`, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}

	return collectPayment(rows)
}

func (r *paymentRepo) GetByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.GetByOrderID")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}

	return collectPayment(rows)
}

func collectPayment(rows pgx.Rows) (*domain.Payment, error) {
	payment, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[domain.Payment])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}

		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	return payment, nil
}

func (r *paymentRepo) Update(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.Update")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", payment.OrderID),
		attribute.String("status", string(payment.Status)),
	)

	query := `
		UPDATE payments
		SET status = $1, transaction_key = $2, reason = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`

	err := tx.QueryRow(ctx, query, string(payment.Status), payment.TransactionKey, payment.Reason, payment.ID).
		Scan(&payment.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPaymentNotFound
		}

		return fmt.Errorf("failed to update payment: %w", err)
	}

	return nil
}

func (r *paymentRepo) ListStale(ctx context.Context, status domain.PaymentStatus, olderThan time.Time, limit int) ([]domain.Payment, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.ListStale")
	defer span.End()

	span.SetAttributes(
		attribute.String("status", string(status)),
		attribute.Int("limit", limit),
	)

	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, string(status), olderThan, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query stale payments: %w", err)
	}

	payments, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Payment])
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan stale payments: %w", err)
	}

	return payments, nil
}
