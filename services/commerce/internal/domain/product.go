package domain

import "time"

type Product struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	Stock     int64     `db:"stock" json:"stock"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ProductDetail is the cached read model of a product page.
type ProductDetail struct {
	Product
	LikeCount int64 `json:"likeCount"`
}

// StockChange is the result of one guarded stock update.
type StockChange struct {
	ProductID     int64
	Quantity      int64
	Price         int64
	PreviousStock int64
	CurrentStock  int64
}
