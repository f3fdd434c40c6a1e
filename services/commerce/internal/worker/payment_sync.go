package worker

import (
	"context"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
	"go.uber.org/zap"
)

// PaymentSync reconciles card payments whose callback never arrived.
type PaymentSync struct {
	service   service.PaymentService
	logger    *zap.Logger
	interval  time.Duration
	olderThan time.Duration
}

func NewPaymentSync(service service.PaymentService, logger *zap.Logger, interval, olderThan time.Duration) *PaymentSync {
	if interval <= 0 {
		interval = time.Minute
	}
	if olderThan <= 0 {
		olderThan = 5 * time.Minute
	}

	return &PaymentSync{
		service:   service,
		logger:    logger,
		interval:  interval,
		olderThan: olderThan,
	}
}

func (w *PaymentSync) Start(ctx context.Context) {
	mylogger.Info(
		ctx,
		w.logger,
		"Starting payment sync",
		zap.Duration("interval", w.interval),
		zap.Duration("older_than", w.olderThan),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, w.logger, "Payment sync stopping")
			return
		case <-ticker.C:
			settled, err := w.service.SyncPending(ctx, w.olderThan)
			if err != nil {
				mylogger.Error(ctx, w.logger, "Error syncing pending payments", zap.Error(err))
				continue
			}

			if settled > 0 {
				mylogger.Info(ctx, w.logger, "Pending payments settled", zap.Int("count", settled))
			}
		}
	}
}
