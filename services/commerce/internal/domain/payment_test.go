package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaymentFor(t *testing.T) {
	t.Run("point order settles immediately", func(t *testing.T) {
		p := NewPaymentFor(&Order{ID: 42, UserID: 1, FinalPrice: 1500, PaymentType: PaymentTypePoint}, nil)

		require.Equal(t, PaymentStatusSuccess, p.Status)
		require.Equal(t, "POINT-42", p.Key())
		require.EqualValues(t, 1500, p.Amount)
	})

	t.Run("card order waits for the gateway", func(t *testing.T) {
		p := NewPaymentFor(
			&Order{ID: 43, UserID: 1, FinalPrice: 900, PaymentType: PaymentTypeCard},
			&Card{CardType: "SAMSUNG", CardNo: "1234-5678-9814-1451"},
		)

		require.Equal(t, PaymentStatusPending, p.Status)
		require.Empty(t, p.Key())
		require.Equal(t, "SAMSUNG", *p.CardType)
	})
}

func TestPayment_TransitionsAreMonotonic(t *testing.T) {
	p := &Payment{OrderID: 1, Status: PaymentStatusPending}

	require.NoError(t, p.StartProcessing("20250101:TR:9577c5"))
	require.Equal(t, PaymentStatusProcessing, p.Status)
	require.ErrorIs(t, p.StartProcessing("other"), ErrInvalidTransition)

	require.NoError(t, p.Succeed())
	require.True(t, p.Status.Terminal())

	require.ErrorIs(t, p.Fail("late failure"), ErrInvalidTransition)
	require.ErrorIs(t, p.Cancel(), ErrInvalidTransition)
	require.Equal(t, PaymentStatusSuccess, p.Status)
}

func TestPayment_FailRecordsReason(t *testing.T) {
	p := &Payment{OrderID: 1, Status: PaymentStatusProcessing}

	require.NoError(t, p.Fail("limit exceeded"))
	require.Equal(t, PaymentStatusFailed, p.Status)
	require.Equal(t, "limit exceeded", *p.Reason)
	require.ErrorIs(t, p.Succeed(), ErrInvalidTransition)
}
