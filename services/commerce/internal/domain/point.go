package domain

import (
	"fmt"
	"time"
)

type Point struct {
	UserID    int64     `db:"user_id"`
	Balance   int64     `db:"balance"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (p *Point) Charge(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	p.Balance += amount
	return nil
}

func (p *Point) Use(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Balance < amount {
		return fmt.Errorf("%w: balance %d, required %d", ErrInsufficientBalance, p.Balance, amount)
	}

	p.Balance -= amount
	return nil
}

func (p *Point) Refund(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	p.Balance += amount
	return nil
}
