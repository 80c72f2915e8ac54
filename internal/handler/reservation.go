package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ReservationHandler serves the caller's own reservation routes.
type ReservationHandler struct {
	Core  ReservationCore
	Cache Invalidator
}

func NewReservationHandler(core ReservationCore, cache Invalidator) *ReservationHandler {
	if core == nil {
		panic("nil core passed to NewReservationHandler")
	}
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &ReservationHandler{Core: core, Cache: cache}
}

type reserveReq struct {
	MatchID  uint64 `json:"match_id"`
	Quantity *int   `json:"quantity"`
}

// Create handles POST /v1/reservations with {"match_id": 1, "quantity": 2}.
func (h *ReservationHandler) Create(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.MatchID == 0 || req.Quantity == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing reservation data"})
	}
	res, err := h.Core.Reserve(c.Request().Context(), who, req.MatchID, *req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	h.Cache.Invalidate(c.Request().Context())
	return c.JSON(http.StatusCreated, res)
}

// Delete handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Delete(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Core.Cancel(c.Request().Context(), who, id); err != nil {
		return writeError(c, err)
	}
	h.Cache.Invalidate(c.Request().Context())
	return c.JSON(http.StatusOK, echo.Map{"message": "Reservation cancelled"})
}

// ListMine handles GET /v1/my-reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	rows, err := h.Core.ListReservationsForUser(c.Request().Context(), who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}
