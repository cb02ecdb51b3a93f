package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Ping answers the load balancer health check. It must not touch any backend.
func Ping(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "OK")
}
