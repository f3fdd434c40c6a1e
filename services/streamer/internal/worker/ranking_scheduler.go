package worker

import (
	"context"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"go.uber.org/zap"
)

type BatchRunner interface {
	Run(ctx context.Context, target time.Time) error
}

type CarryOverer interface {
	CarryOver(ctx context.Context, from, to time.Time, weight float64) (bool, error)
}

// RankingScheduler rebuilds the ranking snapshots on a ticker and seeds
// each new day's real-time ranking from the previous day.
type RankingScheduler struct {
	batch     BatchRunner
	engine    CarryOverer
	logger    *zap.Logger
	interval  time.Duration
	carryOver float64
	now       func() time.Time
}

func NewRankingScheduler(batch BatchRunner, engine CarryOverer, logger *zap.Logger, interval time.Duration, carryOver float64) *RankingScheduler {
	if interval <= 0 {
		interval = time.Hour
	}

	return &RankingScheduler{
		batch:     batch,
		engine:    engine,
		logger:    logger,
		interval:  interval,
		carryOver: carryOver,
		now:       time.Now,
	}
}

func (s *RankingScheduler) Start(ctx context.Context) {
	mylogger.Info(
		ctx,
		s.logger,
		"Starting ranking scheduler",
		zap.Duration("interval", s.interval),
	)

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, s.logger, "Ranking scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one round: carry-over for today if still pending, then the batch.
func (s *RankingScheduler) Tick(ctx context.Context) {
	now := s.now()

	if s.carryOver > 0 {
		if _, err := s.engine.CarryOver(ctx, now.AddDate(0, 0, -1), now, s.carryOver); err != nil {
			mylogger.Error(ctx, s.logger, "Error carrying ranking over", zap.Error(err))
		}
	}

	if err := s.batch.Run(ctx, now); err != nil {
		mylogger.Error(ctx, s.logger, "Error rebuilding ranking snapshots", zap.Error(err))
	}
}
