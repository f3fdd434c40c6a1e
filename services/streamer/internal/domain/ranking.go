package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Period string

const (
	PeriodWeekly  Period = "WEEKLY"
	PeriodMonthly Period = "MONTHLY"
)

// Days is the horizon length ending at, and including, the target day.
func (p Period) Days() int {
	switch p {
	case PeriodWeekly:
		return 7
	case PeriodMonthly:
		return 30
	default:
		return 0
	}
}

func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if p.Days() == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}

	return p, nil
}

// PeriodKey names the snapshot of a horizon ending at target.
func PeriodKey(target time.Time) string {
	return target.Format("20060102")
}

// Weights turn counters into a ranking score.
type Weights struct {
	Like  float64
	Sales float64
	View  float64
}

func (w Weights) Validate() error {
	if w.Like < 0 || w.Sales < 0 || w.View < 0 {
		return fmt.Errorf("%w: %+v", ErrNegativeWeight, w)
	}

	return nil
}

// Score of a delta on the real-time ranking.
func (w Weights) Score(d Delta) float64 {
	return float64(d.Like)*w.Like + float64(d.Sales)*w.Sales + float64(d.View)*w.View
}

// ScoreOf computes the batch score exactly.
func (w Weights) ScoreOf(t Totals) decimal.Decimal {
	return decimal.NewFromInt(t.Likes).Mul(decimal.NewFromFloat(w.Like)).
		Add(decimal.NewFromInt(t.Sales).Mul(decimal.NewFromFloat(w.Sales))).
		Add(decimal.NewFromInt(t.Views).Mul(decimal.NewFromFloat(w.View)))
}

// RankItem is one entry of the real-time ranking.
type RankItem struct {
	ProductID int64   `json:"productId"`
	Rank      int64   `json:"rank"`
	Score     float64 `json:"score"`
}

// Snapshot is one row of a batch ranking.
type Snapshot struct {
	Period     Period          `db:"period" json:"period"`
	PeriodKey  string          `db:"period_key" json:"periodKey"`
	Rank       int             `db:"rank" json:"rank"`
	ProductID  int64           `db:"product_id" json:"productId"`
	Score      decimal.Decimal `db:"score" json:"score"`
	LikeCount  int64           `db:"like_count" json:"likeCount"`
	SalesCount int64           `db:"sales_count" json:"salesCount"`
	ViewCount  int64           `db:"view_count" json:"viewCount"`
}
