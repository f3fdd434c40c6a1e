package domain

import "time"

// ProductMetrics holds the running counters of one product. Counters are
// stored signed so out-of-order deltas never lose information; readers get
// them clamped at zero.
type ProductMetrics struct {
	ProductID  int64     `db:"product_id"`
	LikeCount  int64     `db:"like_count"`
	ViewCount  int64     `db:"view_count"`
	SalesCount int64     `db:"sales_count"`
	Version    int64     `db:"version"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (m *ProductMetrics) Apply(d Delta) {
	m.LikeCount += d.Like
	m.ViewCount += d.View
	m.SalesCount += d.Sales
}

func (m *ProductMetrics) Likes() int64 { return clamp(m.LikeCount) }
func (m *ProductMetrics) Views() int64 { return clamp(m.ViewCount) }
func (m *ProductMetrics) Sales() int64 { return clamp(m.SalesCount) }

// Delta is a signed change to the counters of one product.
type Delta struct {
	Like  int64
	View  int64
	Sales int64
}

func (d Delta) IsZero() bool {
	return d.Like == 0 && d.View == 0 && d.Sales == 0
}

// Totals are the summed daily deltas of one product over a horizon, already
// clamped at zero.
type Totals struct {
	ProductID int64 `db:"product_id"`
	Likes     int64 `db:"like_count"`
	Sales     int64 `db:"sales_count"`
	Views     int64 `db:"view_count"`
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}

	return v
}
