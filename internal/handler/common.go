// Package handler exposes the reservation core and the auth flow over
// HTTP.  Handlers assume JWTAuth has already run on protected routes.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/match-ticket-reservation/internal/middleware"
	"github.com/iliyamo/match-ticket-reservation/internal/model"
	"github.com/iliyamo/match-ticket-reservation/internal/repository"
)

// ReservationCore is the service surface used by the match and
// reservation handlers.
type ReservationCore interface {
	Reserve(ctx context.Context, who model.Identity, matchID uint64, quantity int) (model.Reservation, error)
	Cancel(ctx context.Context, who model.Identity, reservationID uint64) error
	ListMatches(ctx context.Context) ([]model.Match, error)
	ListReservationsForUser(ctx context.Context, who model.Identity) ([]model.UserReservation, error)
	ListReservationsForMatch(ctx context.Context, who model.Identity, matchID uint64) ([]model.MatchReservation, error)
	CreateMatch(ctx context.Context, who model.Identity, in model.NewMatch) (model.Match, error)
	DeleteMatch(ctx context.Context, who model.Identity, matchID uint64) error
}

// Invalidator drops cached match listings after inventory changes.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context) {}

func identity(c echo.Context) (model.Identity, error) {
	who, ok := middleware.Identity(c)
	if !ok {
		return model.Identity{}, errors.New("invalid user_id in context")
	}
	return who, nil
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// writeError maps core sentinels to HTTP statuses.
func writeError(c echo.Context, err error) error {
	status, msg := statusFor(err)
	if status == http.StatusServiceUnavailable {
		c.Response().Header().Set("Retry-After", "1")
	}
	if status >= 500 {
		// let the request logger see the cause
		c.Set("error", err)
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrMatchNotFound):
		return http.StatusNotFound, "match not found"
	case errors.Is(err, repository.ErrReservationNotFound):
		return http.StatusNotFound, "reservation not found"
	case errors.Is(err, repository.ErrInsufficientInventory):
		return http.StatusConflict, "not enough tickets available"
	case errors.Is(err, repository.ErrNotOwner):
		return http.StatusForbidden, "not allowed to cancel this reservation"
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrMatchHasReservations):
		return http.StatusConflict, "match has reservations"
	case errors.Is(err, repository.ErrInvalidQuantity):
		return http.StatusBadRequest, "quantity must be a positive integer"
	case errors.Is(err, repository.ErrInvalidMatch):
		return http.StatusBadRequest, err.Error()
	case repository.IsTransient(err):
		return http.StatusServiceUnavailable, "temporarily unavailable, retry"
	}
	return http.StatusInternalServerError, "internal error"
}
