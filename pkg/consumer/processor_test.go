package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/event"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/idempotency"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGuard struct {
	seen     map[string]bool
	failures []idempotency.Meta
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{seen: make(map[string]bool)}
}

func (g *fakeGuard) Handle(ctx context.Context, meta idempotency.Meta, fn func(ctx context.Context, tx *db.Tx) error) (bool, error) {
	if g.seen[meta.EventID] {
		return false, nil
	}

	if err := fn(ctx, nil); err != nil {
		return false, err
	}

	g.seen[meta.EventID] = true

	return true, nil
}

func (g *fakeGuard) RecordFailure(_ context.Context, meta idempotency.Meta, _ error) error {
	g.seen[meta.EventID] = true
	g.failures = append(g.failures, meta)

	return nil
}

type fakeDLT struct {
	sent []*sarama.ConsumerMessage
	err  error
}

func (d *fakeDLT) Send(_ context.Context, msg *sarama.ConsumerMessage, _ error) error {
	if d.err != nil {
		return d.err
	}

	d.sent = append(d.sent, msg)

	return nil
}

func (d *fakeDLT) Close() error { return nil }

func message(t *testing.T, evt event.Event) *sarama.ConsumerMessage {
	t.Helper()

	env, err := event.NewEnvelope(evt, time.Now())
	require.NoError(t, err)

	value, err := env.Marshal()
	require.NoError(t, err)

	return &sarama.ConsumerMessage{Topic: "payment-events", Key: []byte("7"), Value: value, Offset: 3}
}

func newProcessor(guard *fakeGuard, dlt *fakeDLT) (*Processor, *metrics.Metrics) {
	m := metrics.New()
	return NewProcessor(event.NewDomainRegistry(), guard, dlt, m, zap.NewNop()), m
}

func TestProcessor_AppliesEventOnce(t *testing.T) {
	guard, dlt := newFakeGuard(), &fakeDLT{}
	p, _ := newProcessor(guard, dlt)

	calls := 0
	p.On(domain.TypePaymentSuccess, func(_ context.Context, _ *db.Tx, evt event.Event) error {
		e, ok := evt.(domain.PaymentSuccessEvent)
		require.True(t, ok)
		require.Equal(t, int64(7), e.OrderID)
		calls++

		return nil
	})

	msg := message(t, domain.PaymentSuccessEvent{OrderID: 7, TransactionKey: "TX-1"})

	require.NoError(t, p.Process(context.Background(), msg))
	require.NoError(t, p.Process(context.Background(), msg))
	require.Equal(t, 1, calls)
	require.Empty(t, dlt.sent)
}

func TestProcessor_PermanentFailureIsDeadLetteredAndAcked(t *testing.T) {
	guard, dlt := newFakeGuard(), &fakeDLT{}
	p, m := newProcessor(guard, dlt)

	p.On(domain.TypePaymentFailure, func(context.Context, *db.Tx, event.Event) error {
		return apperr.Conflict("order already paid")
	})

	msg := message(t, domain.PaymentFailureEvent{OrderID: 7, Reason: "limit exceeded"})

	require.NoError(t, p.Process(context.Background(), msg))
	require.Len(t, dlt.sent, 1)
	require.Len(t, guard.failures, 1)
	require.Equal(t, domain.TypePaymentFailure, guard.failures[0].EventType)
	require.Equal(t, "7", guard.failures[0].AggregateKey)
	require.Equal(t, 1.0, testutil.ToFloat64(m.DeadLetters.WithLabelValues("payment-events", domain.TypePaymentFailure)))
}

func TestProcessor_TransientFailureIsRedelivered(t *testing.T) {
	guard, dlt := newFakeGuard(), &fakeDLT{}
	p, _ := newProcessor(guard, dlt)

	boom := errors.New("connection reset")
	p.On(domain.TypePaymentSuccess, func(context.Context, *db.Tx, event.Event) error {
		return boom
	})

	err := p.Process(context.Background(), message(t, domain.PaymentSuccessEvent{OrderID: 7}))

	require.ErrorIs(t, err, boom)
	require.Empty(t, dlt.sent)
	require.Empty(t, guard.failures)
}

func TestProcessor_UnknownEventTypeIsSkipped(t *testing.T) {
	guard, dlt := newFakeGuard(), &fakeDLT{}
	p, _ := newProcessor(guard, dlt)

	msg := &sarama.ConsumerMessage{
		Topic: "payment-events",
		Value: []byte(`{"eventType":"RefundIssuedEvent","eventId":"e-1","payload":{}}`),
	}

	require.NoError(t, p.Process(context.Background(), msg))
	require.Empty(t, dlt.sent)
	require.Empty(t, guard.failures)
}

func TestProcessor_MalformedMessageUsesFallbackID(t *testing.T) {
	guard, dlt := newFakeGuard(), &fakeDLT{}
	p, _ := newProcessor(guard, dlt)

	msg := &sarama.ConsumerMessage{Topic: "catalog-events", Partition: 2, Offset: 41, Value: []byte("{not json")}

	require.NoError(t, p.Process(context.Background(), msg))
	require.Len(t, dlt.sent, 1)
	require.Len(t, guard.failures, 1)
	require.Equal(t, "catalog-events-2-41", guard.failures[0].EventID)
}

func TestProcessor_DeadLetterFailureKeepsMessage(t *testing.T) {
	guard, dlt := newFakeGuard(), &fakeDLT{err: errors.New("broker down")}
	p, _ := newProcessor(guard, dlt)

	p.On(domain.TypePaymentSuccess, func(context.Context, *db.Tx, event.Event) error {
		return apperr.NotFound("order 7 not found")
	})

	err := p.Process(context.Background(), message(t, domain.PaymentSuccessEvent{OrderID: 7}))

	require.Error(t, err)
	require.Empty(t, guard.failures)
}
