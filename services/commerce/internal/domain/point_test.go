package domain

import (
	"testing"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
	"github.com/stretchr/testify/require"
)

func TestPoint(t *testing.T) {
	p := &Point{UserID: 1}

	require.ErrorIs(t, p.Charge(0), apperr.ErrValidation)
	require.ErrorIs(t, p.Use(-1), ErrInvalidAmount)
	require.ErrorIs(t, p.Refund(0), ErrInvalidAmount)

	require.NoError(t, p.Charge(2000))

	err := p.Use(2500)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.EqualValues(t, 2000, p.Balance)

	require.NoError(t, p.Use(1500))
	require.NoError(t, p.Refund(1500))
	require.EqualValues(t, 2000, p.Balance)
}
