package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListData wraps a page of rows with its length.
type ListData struct {
	Rows  interface{} `json:"rows"`
	Total int         `json:"total"`
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

// OK writes a 200 envelope.
func OK(c echo.Context, data interface{}) error {
	return respond(c, http.StatusOK, data)
}

// List writes rows and their count.
func List(c echo.Context, rows interface{}, total int) error {
	return respond(c, http.StatusOK, ListData{Rows: rows, Total: total})
}

// Invalid writes a 400 carrying the validation failures.
func Invalid(c echo.Context, errs []ValidationError) error {
	return respond(c, http.StatusBadRequest, errs)
}

// Fail renders err. AppErrors and echo HTTP errors keep their status;
// anything else is a 500 with a generic message.
func Fail(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respond(c, appErr.Status, []*AppError{appErr})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return respond(c, he.Code, fmt.Sprint(he.Message))
	}
	return respond(c, http.StatusInternalServerError, "Something went wrong")
}
