package httpdto

import (
	"errors"
	"net/http"

	pulse_errors "pulse-chat/pkg/errors"
)

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// StatusFor maps domain errors onto HTTP statuses so handlers stay thin.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pulse_errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, pulse_errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, pulse_errors.ErrCallActive):
		return http.StatusConflict, "CALL_ACTIVE"
	case errors.Is(err, pulse_errors.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, pulse_errors.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, pulse_errors.ErrMediaAcquisition):
		return http.StatusPreconditionFailed, "MEDIA_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "REQUEST_FAILED"
	}
}
