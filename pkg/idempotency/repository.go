package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const uniqueViolation = "23505"

var ErrAlreadyHandled = errors.New("event already handled")

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

type Record struct {
	EventID      string
	EventType    string
	AggregateKey string
	Status       Status
	HandledAt    time.Time
	LastError    *string
}

type Repository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	Get(ctx context.Context, eventID string) (*Record, error)
	Insert(ctx context.Context, tx pgx.Tx, record *Record) error
}

type repo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repo{
		pool:   pool,
		tracer: otel.Tracer("pkg/idempotency/repository"),
	}
}

func (r *repo) Exists(ctx context.Context, eventID string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "EventHandledRepository.Exists")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM event_handled WHERE event_id = $1)`, eventID).
		Scan(&exists)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check event_handled: %w", err)
	}

	return exists, nil
}

func (r *repo) Get(ctx context.Context, eventID string) (*Record, error) {
	ctx, span := r.tracer.Start(ctx, "EventHandledRepository.Get")
	defer span.End()

	query := `
		SELECT event_id, event_type, aggregate_key, status, handled_at, last_error
		FROM event_handled
		WHERE event_id = $1
	`

	var rec Record
	err := r.pool.QueryRow(ctx, query, eventID).
		Scan(&rec.EventID, &rec.EventType, &rec.AggregateKey, &rec.Status, &rec.HandledAt, &rec.LastError)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to load event_handled: %w", err)
	}

	return &rec, nil
}

// Insert claims eventID. A second insert of the same id returns ErrAlreadyHandled.
func (r *repo) Insert(ctx context.Context, tx pgx.Tx, record *Record) error {
	ctx, span := r.tracer.Start(ctx, "EventHandledRepository.Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", record.EventID),
		attribute.String("event_type", record.EventType),
		attribute.String("status", string(record.Status)),
	)

	query := `
		INSERT INTO event_handled (event_id, event_type, aggregate_key, status, handled_at, last_error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := tx.Exec(
		ctx,
		query,
		record.EventID,
		record.EventType,
		record.AggregateKey,
		record.Status,
		record.HandledAt,
		record.LastError,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyHandled
		}

		span.RecordError(err)
		return fmt.Errorf("failed to insert event_handled: %w", err)
	}

	return nil
}
