package handler

import (
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/samber/lo"
)

type orderItemView struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
	Price     int64 `json:"price"`
}

type orderView struct {
	ID             int64           `json:"id"`
	Status         string          `json:"status"`
	Items          []orderItemView `json:"items"`
	TotalPrice     int64           `json:"totalPrice"`
	DiscountAmount int64           `json:"discountAmount"`
	FinalPrice     int64           `json:"finalPrice"`
	UsedPoints     int64           `json:"usedPoints"`
	CouponID       *int64          `json:"couponId,omitempty"`
	PaymentType    string          `json:"paymentType"`
	CancelReason   *string         `json:"cancelReason,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func orderResponse(o *domain.Order) orderView {
	return orderView{
		ID:     o.ID,
		Status: string(o.Status),
		Items: lo.Map(o.Items, func(i domain.OrderItem, _ int) orderItemView {
			return orderItemView{ProductID: i.ProductID, Quantity: i.Quantity, Price: i.Price}
		}),
		TotalPrice:     o.TotalPrice,
		DiscountAmount: o.DiscountAmount,
		FinalPrice:     o.FinalPrice,
		UsedPoints:     o.UsedPoints,
		CouponID:       o.CouponID,
		PaymentType:    string(o.PaymentType),
		CancelReason:   o.CancelReason,
		CreatedAt:      o.CreatedAt,
	}
}
