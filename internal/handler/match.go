package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/match-ticket-reservation/internal/model"
)

// MatchHandler serves the public match list and the admin match routes.
type MatchHandler struct {
	Core  ReservationCore
	Cache Invalidator
}

func NewMatchHandler(core ReservationCore, cache Invalidator) *MatchHandler {
	if core == nil {
		panic("nil core passed to NewMatchHandler")
	}
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &MatchHandler{Core: core, Cache: cache}
}

// List handles GET /v1/matches.
func (h *MatchHandler) List(c echo.Context) error {
	matches, err := h.Core.ListMatches(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, matches)
}

// Create handles POST /v1/matches.
func (h *MatchHandler) Create(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body model.NewMatch
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(body.Opponent) == "" || body.Date == "" || body.Time == "" || body.TotalTickets == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing match details"})
	}
	m, err := h.Core.CreateMatch(c.Request().Context(), who, body)
	if err != nil {
		return writeError(c, err)
	}
	h.Cache.Invalidate(c.Request().Context())
	return c.JSON(http.StatusCreated, m)
}

// Delete handles DELETE /v1/matches/:id.
func (h *MatchHandler) Delete(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid match id"})
	}
	if err := h.Core.DeleteMatch(c.Request().Context(), who, id); err != nil {
		return writeError(c, err)
	}
	h.Cache.Invalidate(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// Reservations handles GET /v1/admin/matches/:id/reservations.
func (h *MatchHandler) Reservations(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid match id"})
	}
	rows, err := h.Core.ListReservationsForMatch(c.Request().Context(), who, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"match_id": id, "reservations": rows})
}
