package domain

import (
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
)

var (
	ErrUnknownPeriod  = fmt.Errorf("unknown ranking period: %w", apperr.ErrValidation)
	ErrNegativeWeight = fmt.Errorf("ranking weights must not be negative: %w", apperr.ErrValidation)
	ErrInvalidPage    = fmt.Errorf("page must be >= 0 and size > 0: %w", apperr.ErrValidation)
)
