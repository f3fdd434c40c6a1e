package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypeFixed DiscountType = "FIXED"
	DiscountTypeRate  DiscountType = "RATE"
)

type Coupon struct {
	ID            int64        `db:"id"`
	Name          string       `db:"name"`
	DiscountType  DiscountType `db:"discount_type"`
	DiscountValue int64        `db:"discount_value"`
}

// Discount returns the amount taken off total. RATE values are percentages
// and round down to a whole amount.
func (c *Coupon) Discount(total int64) int64 {
	var amount int64

	switch c.DiscountType {
	case DiscountTypeFixed:
		amount = c.DiscountValue
	case DiscountTypeRate:
		amount = decimal.NewFromInt(total).
			Mul(decimal.NewFromInt(c.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
	}

	if amount > total {
		return total
	}
	if amount < 0 {
		return 0
	}

	return amount
}

type UserCouponStatus string

const (
	UserCouponAvailable UserCouponStatus = "AVAILABLE"
	UserCouponUsed      UserCouponStatus = "USED"
	UserCouponExpired   UserCouponStatus = "EXPIRED"
)

type UserCoupon struct {
	ID        int64            `db:"id"`
	UserID    int64            `db:"user_id"`
	CouponID  int64            `db:"coupon_id"`
	Status    UserCouponStatus `db:"status"`
	ExpiresAt time.Time        `db:"expires_at"`
	UsedAt    *time.Time       `db:"used_at"`
}

func (c *UserCoupon) Usable(now time.Time) bool {
	return c.Status == UserCouponAvailable && now.Before(c.ExpiresAt)
}

func (c *UserCoupon) Use(now time.Time) error {
	if !c.Usable(now) {
		return fmt.Errorf("%w: coupon %d is %s, expires %s", ErrCouponNotUsable, c.CouponID, c.Status, c.ExpiresAt.Format(time.RFC3339))
	}

	c.Status = UserCouponUsed
	c.UsedAt = &now
	return nil
}
