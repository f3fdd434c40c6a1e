package repository

import "github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"

var ErrMetricsNotFound = apperr.NotFound("product metrics not found")
