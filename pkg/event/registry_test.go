package event

import (
	"testing"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RoundTrip(t *testing.T) {
	r := NewDomainRegistry()
	now := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	env, err := NewEnvelope(domain.StockDecreasedEvent{
		ProductID:     3,
		PreviousStock: 10,
		CurrentStock:  7,
		Quantity:      3,
		Reason:        domain.StockReasonOrder,
		OccurredAt:    now,
	}, now)
	require.NoError(t, err)
	require.NotEmpty(t, env.EventID)

	data, err := env.Marshal()
	require.NoError(t, err)

	decoded, evt, err := r.Decode(data)
	require.NoError(t, err)
	require.Equal(t, env.EventID, decoded.EventID)
	require.Equal(t, domain.TypeStockDecreased, decoded.EventType)

	e, ok := evt.(domain.StockDecreasedEvent)
	require.True(t, ok)
	require.Equal(t, int64(3), e.Quantity)
	require.Equal(t, domain.StockReasonOrder, e.Reason)
}

func TestRegistry_FreshIDPerEnvelope(t *testing.T) {
	evt := domain.LikeAddedEvent{UserID: 1, TargetID: 2, LikeType: domain.LikeTypeProduct}

	a, err := NewEnvelope(evt, time.Now())
	require.NoError(t, err)
	b, err := NewEnvelope(evt, time.Now())
	require.NoError(t, err)

	require.NotEqual(t, a.EventID, b.EventID)
}

func TestRegistry_Errors(t *testing.T) {
	r := NewDomainRegistry()

	_, _, err := r.Decode([]byte(`{"eventType":"CouponIssuedEvent","eventId":"1","payload":{}}`))
	require.ErrorIs(t, err, ErrUnknownEventType)
	require.False(t, r.Known("CouponIssuedEvent"))

	env, _, err := r.Decode([]byte(`{"eventType":"LikeAddedEvent","eventId":"e-1","payload":[1,2]}`))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnknownEventType)
	require.Equal(t, "e-1", env.EventID)

	_, _, err = r.Decode([]byte(`not json`))
	require.Error(t, err)
}
