package ranking

import (
	"testing"

	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestRank(t *testing.T) {
	weights := domain.Weights{Like: 0.2, Sales: 0.6, View: 0.1}

	totals := []domain.Totals{
		{ProductID: 3, Likes: 1},
		{ProductID: 1, Sales: 2},
		{ProductID: 2, Views: 2},
		{ProductID: 4, Likes: 1},
	}

	got := Rank(domain.PeriodWeekly, "20250905", totals, weights)

	want := []domain.Snapshot{
		{Rank: 1, ProductID: 1, Score: decimal.RequireFromString("1.2"), SalesCount: 2},
		{Rank: 2, ProductID: 2, Score: decimal.RequireFromString("0.2"), ViewCount: 2},
		{Rank: 3, ProductID: 3, Score: decimal.RequireFromString("0.2"), LikeCount: 1},
		{Rank: 4, ProductID: 4, Score: decimal.RequireFromString("0.2"), LikeCount: 1},
	}
	for i := range want {
		want[i].Period = domain.PeriodWeekly
		want[i].PeriodKey = "20250905"
	}

	opt := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	if diff := cmp.Diff(want, got, opt); diff != "" {
		t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
	}
}

func TestRank_Empty(t *testing.T) {
	got := Rank(domain.PeriodMonthly, "20250905", nil, domain.Weights{Like: 1})
	if len(got) != 0 {
		t.Fatalf("expected no rows, got %d", len(got))
	}
}
