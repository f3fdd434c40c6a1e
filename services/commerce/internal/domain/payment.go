package domain

import (
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusSuccess    PaymentStatus = "SUCCESS"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// Card is the card data a CARD order hands to the payment gateway.
type Card struct {
	CardType string `json:"cardType" validate:"required"`
	CardNo   string `json:"cardNo" validate:"required"`
}

type Payment struct {
	ID             int64         `db:"id"`
	OrderID        int64         `db:"order_id"`
	UserID         int64         `db:"user_id"`
	TransactionKey *string       `db:"transaction_key"`
	Amount         int64         `db:"amount"`
	Status         PaymentStatus `db:"status"`
	PaymentType    PaymentType   `db:"payment_type"`
	CardType       *string       `db:"card_type"`
	CardNo         *string       `db:"card_no"`
	Reason         *string       `db:"reason"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

func PointTransactionKey(orderID int64) string {
	return fmt.Sprintf("POINT-%d", orderID)
}

// NewPaymentFor builds the payment row recorded together with an order.
// Point payments settle immediately; card payments wait for the gateway.
func NewPaymentFor(order *Order, card *Card) *Payment {
	p := &Payment{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Amount:      order.FinalPrice,
		PaymentType: order.PaymentType,
		Status:      PaymentStatusPending,
	}

	if order.PaymentType == PaymentTypePoint {
		key := PointTransactionKey(order.ID)
		p.TransactionKey = &key
		p.Status = PaymentStatusSuccess
	}

	if card != nil {
		p.CardType = &card.CardType
		p.CardNo = &card.CardNo
	}

	return p
}

func (p *Payment) Key() string {
	if p.TransactionKey == nil {
		return ""
	}

	return *p.TransactionKey
}

func (p *Payment) StartProcessing(transactionKey string) error {
	if p.Status != PaymentStatusPending {
		return p.illegal(PaymentStatusProcessing)
	}

	p.TransactionKey = &transactionKey
	p.Status = PaymentStatusProcessing
	return nil
}

// Succeed also accepts PENDING: the gateway callback can arrive before the
// request's own acceptance has been recorded.
func (p *Payment) Succeed() error {
	if p.Status != PaymentStatusPending && p.Status != PaymentStatusProcessing {
		return p.illegal(PaymentStatusSuccess)
	}

	p.Status = PaymentStatusSuccess
	return nil
}

func (p *Payment) Fail(reason string) error {
	if p.Status != PaymentStatusPending && p.Status != PaymentStatusProcessing {
		return p.illegal(PaymentStatusFailed)
	}

	p.Status = PaymentStatusFailed
	p.Reason = &reason
	return nil
}

func (p *Payment) Cancel() error {
	if p.Status != PaymentStatusPending && p.Status != PaymentStatusProcessing {
		return p.illegal(PaymentStatusCancelled)
	}

	p.Status = PaymentStatusCancelled
	return nil
}

func (p *Payment) illegal(to PaymentStatus) error {
	return fmt.Errorf("%w: payment for order %d is %s, cannot become %s", ErrInvalidTransition, p.OrderID, p.Status, to)
}
