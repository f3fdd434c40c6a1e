package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/event"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/kafka"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/metrics"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/outbox/repository"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/outbox/worker"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/testsuite"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// switchableProducer fails every send while down is set.
type switchableProducer struct {
	mu   sync.Mutex
	down bool
	sent []kafka.Message
}

func (p *switchableProducer) Send(_ context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.down {
		return errors.New("broker unavailable")
	}

	p.sent = append(p.sent, msg)
	return nil
}

func (p *switchableProducer) Close() error { return nil }

func (p *switchableProducer) setDown(down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.down = down
}

type OutboxTestSuite struct {
	testsuite.BaseSuite

	Producer  *switchableProducer
	Metrics   *metrics.Metrics
	UoW       *db.UnitOfWork
	Publisher event.Publisher
	Processor *worker.OutboxProcessor
}

func (s *OutboxTestSuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure("../../../migrations")
}

func (s *OutboxTestSuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *OutboxTestSuite) SetupTest() {
	s.BaseSuite.TruncateTable("outbox")

	logger := zap.NewNop()
	repo := repository.NewOutboxRepository()

	s.Producer = &switchableProducer{}
	s.Metrics = metrics.New()
	s.UoW = db.NewUnitOfWork(s.DbPool, logger)
	s.Publisher = event.NewPublisher(s.Producer, s.UoW, repo, s.Metrics, logger)
	s.Processor = worker.NewOutboxProcessor(s.DbPool, repo, s.Producer, logger, 10, 0)
}

func (s *OutboxTestSuite) publishAfterCommit(evt event.Event) {
	err := s.UoW.Do(s.Ctx, func(ctx context.Context, tx *db.Tx) error {
		s.Publisher.PublishAfterCommit(tx, "catalog-events", "3", evt)
		return nil
	})
	s.Require().NoError(err)
}

func (s *OutboxTestSuite) TestPublishAfterCommit_SendsDirectly() {
	s.publishAfterCommit(domain.LikeAddedEvent{UserID: 1, TargetID: 3, LikeType: domain.LikeTypeProduct})

	s.Require().Len(s.Producer.sent, 1)
	s.Equal("catalog-events", s.Producer.sent[0].Topic)
	s.Equal("3", s.Producer.sent[0].Key)

	n, err := s.Processor.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *OutboxTestSuite) TestPublishAfterCommit_RolledBackNeverSent() {
	err := s.UoW.Do(s.Ctx, func(ctx context.Context, tx *db.Tx) error {
		s.Publisher.PublishAfterCommit(tx, "catalog-events", "3", domain.LikeAddedEvent{TargetID: 3})
		return errors.New("rollback")
	})
	s.Require().Error(err)
	s.Empty(s.Producer.sent)
}

func (s *OutboxTestSuite) TestFailedPublish_ParkedAndRelayed() {
	s.Producer.setDown(true)
	s.publishAfterCommit(domain.StockIncreasedEvent{ProductID: 3, Quantity: 2, Reason: domain.StockReasonRestock})

	s.Empty(s.Producer.sent)
	s.Equal(float64(1), testutil.ToFloat64(s.Metrics.PublishFailures.WithLabelValues("catalog-events", domain.TypeStockIncreased)))

	var parkedID string
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT event_id FROM outbox WHERE published_at IS NULL`).Scan(&parkedID))

	// still down: the row stays and counts an attempt
	n, err := s.Processor.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Zero(n)

	s.Producer.setDown(false)

	n, err = s.Processor.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Require().Len(s.Producer.sent, 1)

	env, evt, err := event.NewDomainRegistry().Decode(s.Producer.sent[0].Value)
	s.Require().NoError(err)
	s.Equal(parkedID, env.EventID)
	s.Equal(int64(2), evt.(domain.StockIncreasedEvent).Quantity)

	var attempts int64
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT attempts FROM outbox WHERE event_id = $1`, parkedID).Scan(&attempts))
	s.Equal(int64(2), attempts)

	n, err = s.Processor.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func TestOutboxSuite(t *testing.T) {
	suite.Run(t, new(OutboxTestSuite))
}
