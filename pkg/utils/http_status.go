package utils

import (
	"errors"
	"net/http"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
)

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrExternalDependency):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
