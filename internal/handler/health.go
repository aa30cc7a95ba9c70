package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Root is the liveness text served at "/".
func Root(c echo.Context) error {
	return c.String(http.StatusOK, "Study room booking API is running")
}

// Health is used by load balancers and monitoring.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
