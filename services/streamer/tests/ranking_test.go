package tests

import (
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/ranking"
)

func (s *IntegrationTestSuite) TestEngine_TopAndRankOf() {
	today := time.Now()

	s.Require().NoError(s.Engine.ApplyDelta(s.Ctx, 1, domain.Delta{View: 3}, today))
	s.Require().NoError(s.Engine.ApplyDelta(s.Ctx, 2, domain.Delta{Sales: 1}, today))
	s.Require().NoError(s.Engine.ApplyDelta(s.Ctx, 3, domain.Delta{Like: 1}, today))

	top, err := s.Engine.Top(s.Ctx, today, 0, 2)
	s.Require().NoError(err)
	s.Require().Len(top, 2)
	s.Equal(int64(2), top[0].ProductID)
	s.Equal(int64(1), top[0].Rank)
	s.Equal(int64(1), top[1].ProductID)
	s.InDelta(0.3, top[1].Score, 1e-9)

	next, err := s.Engine.Top(s.Ctx, today, 1, 2)
	s.Require().NoError(err)
	s.Require().Len(next, 1)
	s.Equal(int64(3), next[0].ProductID)
	s.Equal(int64(3), next[0].Rank)

	n, err := s.Engine.Count(s.Ctx, today)
	s.Require().NoError(err)
	s.Equal(int64(3), n)

	_, ranked, err := s.Engine.RankOf(s.Ctx, today, 99)
	s.Require().NoError(err)
	s.False(ranked)

	_, err = s.Engine.Top(s.Ctx, today, -1, 10)
	s.Require().ErrorIs(err, domain.ErrInvalidPage)

	ttl, err := s.Redis.TTL(s.Ctx, s.Engine.Key(today)).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *IntegrationTestSuite) TestEngine_DaysAreSeparate() {
	today := time.Now()
	yesterday := today.AddDate(0, 0, -1)

	s.Require().NoError(s.Engine.ApplyDelta(s.Ctx, 1, domain.Delta{Sales: 1}, yesterday))

	_, ranked, err := s.Engine.RankOf(s.Ctx, today, 1)
	s.Require().NoError(err)
	s.False(ranked)

	item, ranked, err := s.Engine.RankOf(s.Ctx, yesterday, 1)
	s.Require().NoError(err)
	s.True(ranked)
	s.Equal(int64(1), item.Rank)
}

func (s *IntegrationTestSuite) TestEngine_CarryOverRunsOnce() {
	today := time.Now()
	yesterday := today.AddDate(0, 0, -1)

	s.Require().NoError(s.Engine.ApplyDelta(s.Ctx, 1, domain.Delta{Sales: 10}, yesterday))
	s.Require().NoError(s.Engine.ApplyDelta(s.Ctx, 2, domain.Delta{View: 1}, today))

	carried, err := s.Engine.CarryOver(s.Ctx, yesterday, today, 0.1)
	s.Require().NoError(err)
	s.True(carried)

	carried, err = s.Engine.CarryOver(s.Ctx, yesterday, today, 0.1)
	s.Require().NoError(err)
	s.False(carried)

	item, ranked, err := s.Engine.RankOf(s.Ctx, today, 1)
	s.Require().NoError(err)
	s.True(ranked)
	s.InDelta(10*weights.Sales*0.1, item.Score, 1e-9)

	item, _, err = s.Engine.RankOf(s.Ctx, today, 2)
	s.Require().NoError(err)
	s.InDelta(weights.View, item.Score, 1e-9)
}

func (s *IntegrationTestSuite) TestBatch_BuildsSnapshots() {
	target := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.apply(1, domain.Delta{Sales: 2}, target))
	s.Require().NoError(s.apply(2, domain.Delta{Like: 3, View: 1}, target.AddDate(0, 0, -2)))
	// outside the weekly horizon, inside the monthly one
	s.Require().NoError(s.apply(3, domain.Delta{Sales: 10}, target.AddDate(0, 0, -7)))
	// removes only: clamped at zero
	s.Require().NoError(s.apply(4, domain.Delta{Like: -2}, target))

	s.Require().NoError(s.Batch.Run(s.Ctx, target))

	key := domain.PeriodKey(target)

	weekly, err := s.Batch.Top(s.Ctx, domain.PeriodWeekly, key, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(weekly, 3)
	s.Equal(int64(1), weekly[0].ProductID)
	s.Equal("1.2", weekly[0].Score.String())
	s.Equal(int64(2), weekly[1].ProductID)
	s.Equal("0.7", weekly[1].Score.String())
	s.Equal(int64(4), weekly[2].ProductID)
	s.True(weekly[2].Score.IsZero())
	s.Zero(weekly[2].LikeCount)

	monthly, err := s.Batch.Top(s.Ctx, domain.PeriodMonthly, key, 0, 1)
	s.Require().NoError(err)
	s.Require().Len(monthly, 1)
	s.Equal(int64(3), monthly[0].ProductID)
	s.Equal(1, monthly[0].Rank)

	// rebuilding replaces the stored rows
	s.Require().NoError(s.Batch.RunPeriod(s.Ctx, domain.PeriodWeekly, target))

	weekly, err = s.Batch.Top(s.Ctx, domain.PeriodWeekly, key, 0, 10)
	s.Require().NoError(err)
	s.Len(weekly, 3)
}

func (s *IntegrationTestSuite) TestBatch_RejectsNegativeWeights() {
	_, err := ranking.NewBatch(s.UoW, s.MetricsRepo, nil, domain.Weights{Sales: -1}, time.UTC, nil)
	s.Require().ErrorIs(err, domain.ErrNegativeWeight)
}
