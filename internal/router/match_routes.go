package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/match-ticket-reservation/internal/handler"
	"github.com/iliyamo/match-ticket-reservation/internal/middleware"
	"github.com/iliyamo/match-ticket-reservation/internal/model"
)

// RegisterMatches registers the public, cached match list and the
// ADMIN-only match management routes.
func RegisterMatches(e *echo.Echo, h *handler.MatchHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	e.GET("/v1/matches", h.List, cache)

	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	}
	e.POST("/v1/matches", h.Create, admin...)
	e.DELETE("/v1/matches/:id", h.Delete, admin...)
	e.GET("/v1/admin/matches/:id/reservations", h.Reservations, admin...)
}
