package domain

import (
	"fmt"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type PaymentType string

const (
	PaymentTypePoint PaymentType = domain.PaymentTypePoint
	PaymentTypeCard  PaymentType = domain.PaymentTypeCard
)

func (t PaymentType) Valid() bool {
	return t == PaymentTypePoint || t == PaymentTypeCard
}

type Order struct {
	ID             int64       `db:"id"`
	UserID         int64       `db:"user_id"`
	Status         OrderStatus `db:"status"`
	Items          []OrderItem `db:"-"`
	TotalPrice     int64       `db:"total_price"`
	DiscountAmount int64       `db:"discount_amount"`
	FinalPrice     int64       `db:"final_price"`
	UsedPoints     int64       `db:"used_points"`
	CouponID       *int64      `db:"coupon_id"`
	PaymentType    PaymentType `db:"payment_type"`
	PaymentMethod  string      `db:"payment_method"`
	CancelReason   *string     `db:"cancel_reason"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

// OrderItem carries the unit price captured when the order was placed.
type OrderItem struct {
	ID        int64 `db:"id"`
	OrderID   int64 `db:"order_id"`
	ProductID int64 `db:"product_id"`
	Quantity  int64 `db:"quantity"`
	Price     int64 `db:"price"`
}

func (i OrderItem) Subtotal() int64 {
	return i.Price * i.Quantity
}

func NewOrder(userID int64, items []OrderItem, paymentType PaymentType, paymentMethod string) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if !paymentType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentType, paymentType)
	}

	var total int64
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %d", ErrInvalidQuantity, item.ProductID)
		}
		total += item.Subtotal()
	}

	return &Order{
		UserID:        userID,
		Status:        OrderStatusPending,
		Items:         items,
		TotalPrice:    total,
		FinalPrice:    total,
		PaymentType:   paymentType,
		PaymentMethod: paymentMethod,
	}, nil
}

// ApplyDiscount sets the final price, never below zero.
func (o *Order) ApplyDiscount(couponID int64, amount int64) {
	if amount < 0 {
		amount = 0
	}
	if amount > o.TotalPrice {
		amount = o.TotalPrice
	}

	o.CouponID = &couponID
	o.DiscountAmount = amount
	o.FinalPrice = o.TotalPrice - amount
}

func (o *Order) Complete() error {
	return o.transition(OrderStatusPending, OrderStatusPaid)
}

func (o *Order) Cancel(reason string) error {
	if err := o.transition(OrderStatusPending, OrderStatusCancelled); err != nil {
		return err
	}

	o.CancelReason = &reason
	return nil
}

func (o *Order) Ship() error {
	return o.transition(OrderStatusPaid, OrderStatusShipped)
}

func (o *Order) Deliver() error {
	return o.transition(OrderStatusShipped, OrderStatusDelivered)
}

func (o *Order) transition(from, to OrderStatus) error {
	if o.Status != from {
		return fmt.Errorf("%w: order %d is %s, cannot become %s", ErrInvalidTransition, o.ID, o.Status, to)
	}

	o.Status = to
	return nil
}
