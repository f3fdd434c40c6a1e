package domain

import "time"

const (
	TypeOrderCreated    = "OrderCreatedEvent"
	TypeStockDecreased  = "StockDecreasedEvent"
	TypeStockIncreased  = "StockIncreasedEvent"
	TypeLikeAdded       = "LikeAddedEvent"
	TypeLikeRemoved     = "LikeRemovedEvent"
	TypePaymentSuccess  = "PaymentSuccessEvent"
	TypePaymentFailure  = "PaymentFailureEvent"
	TypeProductViewed   = "ProductViewedEvent"
	LikeTypeProduct     = "PRODUCT"
	PaymentTypePoint    = "POINT"
	PaymentTypeCard     = "CARD"
	PaymentStatusFailed = "FAILED"
)

type StockChangeReason string

const (
	StockReasonOrder   StockChangeReason = "ORDER"
	StockReasonCancel  StockChangeReason = "CANCEL"
	StockReasonRestock StockChangeReason = "RESTOCK"
	StockReasonDamage  StockChangeReason = "DAMAGE"
	StockReasonLoss    StockChangeReason = "LOSS"
)

type OrderCreatedEvent struct {
	OrderID       int64     `json:"orderId"`
	UserID        int64     `json:"userId"`
	CouponID      *int64    `json:"couponId,omitempty"`
	FinalPrice    int64     `json:"finalPrice"`
	PaymentType   string    `json:"paymentType"`
	PaymentMethod string    `json:"paymentMethod"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func (OrderCreatedEvent) EventType() string { return TypeOrderCreated }

type StockDecreasedEvent struct {
	ProductID     int64             `json:"productId"`
	PreviousStock int64             `json:"previousStock"`
	CurrentStock  int64             `json:"currentStock"`
	Quantity      int64             `json:"quantity"`
	Reason        StockChangeReason `json:"reason"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

func (StockDecreasedEvent) EventType() string { return TypeStockDecreased }

type StockIncreasedEvent struct {
	ProductID     int64             `json:"productId"`
	PreviousStock int64             `json:"previousStock"`
	CurrentStock  int64             `json:"currentStock"`
	Quantity      int64             `json:"quantity"`
	Reason        StockChangeReason `json:"reason"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

func (StockIncreasedEvent) EventType() string { return TypeStockIncreased }

type LikeAddedEvent struct {
	UserID     int64     `json:"userId"`
	TargetID   int64     `json:"targetId"`
	LikeType   string    `json:"likeType"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (LikeAddedEvent) EventType() string { return TypeLikeAdded }

type LikeRemovedEvent struct {
	UserID     int64     `json:"userId"`
	TargetID   int64     `json:"targetId"`
	LikeType   string    `json:"likeType"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (LikeRemovedEvent) EventType() string { return TypeLikeRemoved }

type PaymentSuccessEvent struct {
	OrderID        int64     `json:"orderId"`
	UserID         int64     `json:"userId"`
	TransactionKey string    `json:"transactionKey"`
	Amount         int64     `json:"amount"`
	Status         string    `json:"status"`
	ProcessedAt    time.Time `json:"processedAt"`
}

func (PaymentSuccessEvent) EventType() string { return TypePaymentSuccess }

type PaymentFailureEvent struct {
	OrderID        int64     `json:"orderId"`
	UserID         int64     `json:"userId"`
	TransactionKey string    `json:"transactionKey"`
	Amount         int64     `json:"amount"`
	Reason         string    `json:"reason"`
	ProcessedAt    time.Time `json:"processedAt"`
}

func (PaymentFailureEvent) EventType() string { return TypePaymentFailure }

type ProductViewedEvent struct {
	ProductID  int64     `json:"productId"`
	UserID     int64     `json:"userId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (ProductViewedEvent) EventType() string { return TypeProductViewed }
