package tests

import (
	"sync"
	"time"

	generalDomain "github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func (s *IntegrationTestSuite) TestAggregator_ConcurrentDeltas() {
	const (
		productID = int64(42)
		adds      = 20
		removes   = 5
	)

	now := time.Now()

	var wg sync.WaitGroup
	errs := make(chan error, adds+removes)

	for i := 0; i < adds+removes; i++ {
		delta := domain.Delta{Like: 1}
		if i < removes {
			delta = domain.Delta{Like: -1}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.apply(productID, delta, now)
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}

	m := s.metricsOf(productID)
	s.Equal(int64(adds-removes), m.Likes())
	s.Equal(int64(adds+removes), m.Version)
}

func (s *IntegrationTestSuite) TestAggregator_RemoveBeforeAdd() {
	now := time.Now()

	s.Require().NoError(s.apply(7, domain.Delta{Like: -1}, now))
	s.Zero(s.metricsOf(7).Likes())

	s.Require().NoError(s.apply(7, domain.Delta{Like: 1}, now))
	s.Zero(s.metricsOf(7).Likes())

	s.Require().NoError(s.apply(7, domain.Delta{Like: 1}, now))
	s.Equal(int64(1), s.metricsOf(7).Likes())
}

func (s *IntegrationTestSuite) TestAggregator_ZeroDeltaIsNoop() {
	s.Require().NoError(s.apply(9, domain.Delta{}, time.Now()))

	_, err := s.MetricsRepo.GetByProductID(s.Ctx, 9)
	s.Require().Error(err)
}

func (s *IntegrationTestSuite) TestConsumer_DuplicateSaleCountedOnce() {
	value := s.envelope(generalDomain.StockDecreasedEvent{
		ProductID:     5,
		PreviousStock: 10,
		CurrentStock:  7,
		Quantity:      3,
		Reason:        generalDomain.StockReasonOrder,
		OccurredAt:    time.Now(),
	})

	s.Require().NoError(s.process(5, value))
	s.Require().NoError(s.process(5, value))

	s.Equal(int64(3), s.metricsOf(5).Sales())

	item, ranked, err := s.Engine.RankOf(s.Ctx, time.Now(), 5)
	s.Require().NoError(err)
	s.True(ranked)
	s.InDelta(3*weights.Sales, item.Score, 1e-9)

	s.Equal(float64(1), testutil.ToFloat64(s.Metrics.DuplicateEvents.WithLabelValues(generalDomain.TypeStockDecreased)))
}

func (s *IntegrationTestSuite) TestConsumer_IgnoresNonOrderStockChanges() {
	s.Require().NoError(s.process(6, s.envelope(generalDomain.StockDecreasedEvent{
		ProductID:  6,
		Quantity:   2,
		Reason:     generalDomain.StockReasonDamage,
		OccurredAt: time.Now(),
	})))

	_, err := s.MetricsRepo.GetByProductID(s.Ctx, 6)
	s.Require().Error(err)

	_, ranked, err := s.Engine.RankOf(s.Ctx, time.Now(), 6)
	s.Require().NoError(err)
	s.False(ranked)
}

func (s *IntegrationTestSuite) TestConsumer_LikeToggleIsSymmetric() {
	now := time.Now()

	s.Require().NoError(s.process(8, s.envelope(generalDomain.ProductViewedEvent{ProductID: 8, OccurredAt: now})))
	s.Require().NoError(s.process(8, s.envelope(generalDomain.LikeAddedEvent{
		UserID: 1, TargetID: 8, LikeType: generalDomain.LikeTypeProduct, OccurredAt: now,
	})))
	s.Require().NoError(s.process(8, s.envelope(generalDomain.LikeRemovedEvent{
		UserID: 1, TargetID: 8, LikeType: generalDomain.LikeTypeProduct, OccurredAt: now,
	})))

	m := s.metricsOf(8)
	s.Zero(m.Likes())
	s.Equal(int64(1), m.Views())

	item, ranked, err := s.Engine.RankOf(s.Ctx, now, 8)
	s.Require().NoError(err)
	s.True(ranked)
	s.Equal(weights.View, item.Score)
}

func (s *IntegrationTestSuite) TestConsumer_MalformedPayloadDeadLettered() {
	s.Require().NoError(s.process(1, []byte(`{"eventId":"x-1","eventType":"LikeAddedEvent","payload":"not an object"}`)))
	s.Len(s.DLT.sent, 1)
}
