package domain

import (
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
)

var (
	ErrEmptyOrder          = fmt.Errorf("order must contain at least one item: %w", apperr.ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("quantity must be positive: %w", apperr.ErrValidation)
	ErrInvalidAmount       = fmt.Errorf("amount must be positive: %w", apperr.ErrValidation)
	ErrUnknownPaymentType  = fmt.Errorf("unknown payment type: %w", apperr.ErrValidation)
	ErrMissingCard         = fmt.Errorf("card payment requires card type and number: %w", apperr.ErrValidation)
	ErrInsufficientBalance = fmt.Errorf("insufficient point balance: %w", apperr.ErrConflict)
	ErrInsufficientStock   = fmt.Errorf("insufficient stock: %w", apperr.ErrConflict)
	ErrCouponNotUsable     = fmt.Errorf("coupon is not usable: %w", apperr.ErrConflict)
	ErrInvalidTransition   = fmt.Errorf("illegal state transition: %w", apperr.ErrConflict)
	ErrPaymentRejected     = fmt.Errorf("payment rejected by gateway: %w", apperr.ErrConflict)
)
