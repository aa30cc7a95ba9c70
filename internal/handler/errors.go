// Package handler holds the echo HTTP handlers.  Handlers bind and
// validate the request, call one service method and map the result;
// every error response has the shape {"error": message, "code": code}.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/study-room-booking/internal/apperror"
)

// ErrorKey holds the cause of a 5xx response for the request logger.
const ErrorKey = "handler_error"

// requestTimeout bounds the store work of one request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// HTTPError is the mapped form of an error.
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// ErrorMapper maps error kinds to HTTP statuses.  Mappings are checked
// in order with errors.Is; unmatched errors become 500.
type ErrorMapper struct {
	mappings []errorMapping
}

func NewErrorMapper() *ErrorMapper { return &ErrorMapper{} }

// WithMapping adds a mapping.
func (m *ErrorMapper) WithMapping(err error, status int, code string) *ErrorMapper {
	m.mappings = append(m.mappings, errorMapping{err: err, status: status, code: code})
	return m
}

// Map converts err.  The message of an apperror is passed through; store
// failures and unknown errors get a generic message.
func (m *ErrorMapper) Map(err error) HTTPError {
	if errors.Is(err, context.DeadlineExceeded) {
		return HTTPError{Status: http.StatusGatewayTimeout, Code: "timeout", Message: "request timeout"}
	}
	if errors.Is(err, context.Canceled) {
		return HTTPError{Status: http.StatusServiceUnavailable, Code: "cancelled", Message: "request cancelled"}
	}
	for _, mp := range m.mappings {
		if errors.Is(err, mp.err) {
			msg := http.StatusText(mp.status)
			if mp.status < http.StatusInternalServerError {
				msg = apperror.Message(err, msg)
			}
			return HTTPError{Status: mp.status, Code: mp.code, Message: msg}
		}
	}
	return HTTPError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "internal server error"}
}

// DefaultErrors maps every apperror kind.
var DefaultErrors = NewErrorMapper().
	WithMapping(apperror.ErrValidation, http.StatusBadRequest, "validation_error").
	WithMapping(apperror.ErrAuthentication, http.StatusUnauthorized, "unauthorized").
	WithMapping(apperror.ErrNotFound, http.StatusNotFound, "not_found").
	WithMapping(apperror.ErrForbidden, http.StatusForbidden, "forbidden").
	WithMapping(apperror.ErrConflict, http.StatusConflict, "conflict").
	WithMapping(apperror.ErrStoreRead, http.StatusInternalServerError, "store_read_error").
	WithMapping(apperror.ErrStoreWrite, http.StatusInternalServerError, "store_write_error")

// fail writes the mapped error.  Capacity failures also carry the seats
// still available.
func fail(c echo.Context, err error) error {
	e := DefaultErrors.Map(err)
	body := echo.Map{"error": e.Message, "code": e.Code}
	var capErr *apperror.CapacityError
	if errors.As(err, &capErr) {
		body["code"] = "capacity_exceeded"
		body["remaining"] = max(capErr.Remaining, 0)
	}
	if e.Status >= http.StatusInternalServerError {
		c.Set(ErrorKey, err)
	}
	return c.JSON(e.Status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "validation_error"})
}
