package repository

import (
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
)

const uniqueViolation = "23505"

var (
	ErrOrderNotFound     = fmt.Errorf("order not found: %w", apperr.ErrNotFound)
	ErrPaymentNotFound   = fmt.Errorf("payment not found: %w", apperr.ErrNotFound)
	ErrProductNotFound   = fmt.Errorf("product not found: %w", apperr.ErrNotFound)
	ErrPointNotFound     = fmt.Errorf("point wallet not found: %w", apperr.ErrNotFound)
	ErrCouponNotFound    = fmt.Errorf("coupon not found: %w", apperr.ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("user not found: %w", apperr.ErrNotFound)
	ErrUserAlreadyExists = fmt.Errorf("user already exists: %w", apperr.ErrConflict)
)
