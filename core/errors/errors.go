package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrInternalServer             ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrInvalidInput               ErrorCode = "INVALID_INPUT"
	ErrInvalidRequestData         ErrorCode = "INVALID_REQUEST_DATA"
	ErrValidation                 ErrorCode = "VALIDATION_ERROR"
	ErrNotFound                   ErrorCode = "NOT_FOUND"
	ErrAlreadyExists              ErrorCode = "ALREADY_EXISTS"
	ErrUnauthorized               ErrorCode = "UNAUTHORIZED"
	ErrTokenExpired               ErrorCode = "TOKEN_EXPIRED"
	ErrInvalidTokenFormat         ErrorCode = "INVALID_TOKEN_FORMAT"
	ErrMissingAuthorizationHeader ErrorCode = "MISSING_AUTHORIZATION_HEADER"
	ErrForbidden                  ErrorCode = "FORBIDDEN"
	ErrClassFull                  ErrorCode = "CLASS_FULL"

	ErrCalendarUnavailable  ErrorCode = "CALENDAR_UNAVAILABLE"
	ErrCalendarCreateFailed ErrorCode = "CALENDAR_CREATE_FAILED"
	ErrCalendarUpdateFailed ErrorCode = "CALENDAR_UPDATE_FAILED"
	ErrPersistence          ErrorCode = "PERSISTENCE_ERROR"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Status maps the error code to an HTTP status.
func (e *AppError) Status() int {
	return HTTPStatus(e.Code)
}

func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrInvalidInput, ErrInvalidRequestData, ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrTokenExpired, ErrInvalidTokenFormat, ErrMissingAuthorizationHeader:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrAlreadyExists, ErrClassFull:
		return http.StatusConflict
	case ErrCalendarUnavailable, ErrCalendarCreateFailed, ErrCalendarUpdateFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
