package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// BeforeCommitFunc runs inside the caller's transaction. A returned error
// rolls the whole unit of work back.
type BeforeCommitFunc func(ctx context.Context, tx *Tx) error

// AfterCommitFunc runs once the transaction has committed. Its error is
// logged and never reaches the caller.
type AfterCommitFunc func(ctx context.Context) error

// Tx is a pgx transaction that collects commit hooks. It satisfies pgx.Tx,
// so repositories keep taking pgx.Tx.
type Tx struct {
	pgx.Tx

	beforeCommit []namedBefore
	afterCommit  []namedAfter
}

type namedBefore struct {
	name string
	fn   BeforeCommitFunc
}

type namedAfter struct {
	name string
	fn   AfterCommitFunc
}

func (t *Tx) BeforeCommit(name string, fn BeforeCommitFunc) {
	t.beforeCommit = append(t.beforeCommit, namedBefore{name: name, fn: fn})
}

func (t *Tx) AfterCommit(name string, fn AfterCommitFunc) {
	t.afterCommit = append(t.afterCommit, namedAfter{name: name, fn: fn})
}

type UnitOfWork struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewUnitOfWork(pool *pgxpool.Pool, logger *zap.Logger) *UnitOfWork {
	return &UnitOfWork{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("pkg/db/uow"),
	}
}

func (u *UnitOfWork) Pool() *pgxpool.Pool {
	return u.pool
}

// Do runs fn in a transaction, then the before-commit hooks, commits, and
// finally runs the after-commit hooks.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	ctx, span := u.tracer.Start(ctx, "UnitOfWork.Do")
	defer span.End()

	pgTx, err := u.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{Tx: pgTx}

	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := pgTx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				u.logger,
				"Failed to rollback transaction",
				zap.Error(err),
			)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		span.RecordError(err)
		return err
	}

	// hooks may register more hooks, so the slice is re-read on every step
	for i := 0; i < len(tx.beforeCommit); i++ {
		hook := tx.beforeCommit[i]
		if err := hook.fn(ctx, tx); err != nil {
			span.RecordError(err)

			mylogger.Warn(
				ctx,
				u.logger,
				"Before-commit hook failed, rolling back",
				zap.String("hook", hook.name),
				zap.Error(err),
			)

			return err
		}
	}

	if err := pgTx.Commit(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.runAfterCommit(context.WithoutCancel(ctx), tx)

	return nil
}

func (u *UnitOfWork) runAfterCommit(ctx context.Context, tx *Tx) {
	for i := 0; i < len(tx.afterCommit); i++ {
		u.runHook(ctx, tx.afterCommit[i])
	}
}

func (u *UnitOfWork) runHook(ctx context.Context, hook namedAfter) {
	defer func() {
		if r := recover(); r != nil {
			mylogger.Error(
				ctx,
				u.logger,
				"After-commit hook panicked",
				zap.String("hook", hook.name),
				zap.Any("panic", r),
			)
		}
	}()

	if err := hook.fn(ctx); err != nil {
		mylogger.Warn(
			ctx,
			u.logger,
			"After-commit hook failed",
			zap.String("hook", hook.name),
			zap.Error(err),
		)
	}
}
