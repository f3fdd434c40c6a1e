package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProductMetrics_ClampsOnRead(t *testing.T) {
	m := &ProductMetrics{ProductID: 1}

	m.Apply(Delta{Like: -1, View: 2})
	require.Equal(t, int64(-1), m.LikeCount)
	require.Zero(t, m.Likes())
	require.Equal(t, int64(2), m.Views())

	// a late add catches up with the earlier remove
	m.Apply(Delta{Like: 1, Sales: 3})
	require.Zero(t, m.Likes())
	require.Equal(t, int64(3), m.Sales())
}

func TestWeights(t *testing.T) {
	w := Weights{Like: 0.2, Sales: 0.7, View: 0.1}
	require.NoError(t, w.Validate())

	require.InDelta(t, 0.2, w.Score(Delta{Like: 1}), 1e-9)
	require.InDelta(t, -0.2, w.Score(Delta{Like: -1}), 1e-9)
	require.InDelta(t, 2.1+0.5, w.Score(Delta{Sales: 3, View: 5}), 1e-9)

	require.Equal(t, "2.6", w.ScoreOf(Totals{Sales: 3, Views: 5}).String())

	require.ErrorIs(t, Weights{Like: -1}.Validate(), ErrNegativeWeight)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("WEEKLY")
	require.NoError(t, err)
	require.Equal(t, 7, p.Days())

	p, err = ParsePeriod("MONTHLY")
	require.NoError(t, err)
	require.Equal(t, 30, p.Days())

	_, err = ParsePeriod("DAILY")
	require.ErrorIs(t, err, ErrUnknownPeriod)

	require.Equal(t, "20250905", PeriodKey(time.Date(2025, 9, 5, 23, 59, 0, 0, time.UTC)))
}
