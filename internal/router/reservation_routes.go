package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/match-ticket-reservation/internal/handler"
	"github.com/iliyamo/match-ticket-reservation/internal/middleware"
	"github.com/iliyamo/match-ticket-reservation/internal/model"
)

// RegisterReservations registers the caller-scoped reservation routes.
// limiter wraps the two mutating routes only.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.POST("/reservations", h.Create, limiter)
	g.DELETE("/reservations/:id", h.Delete, limiter)
	g.GET("/my-reservations", h.ListMine)
}
