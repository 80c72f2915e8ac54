package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/match-ticket-reservation/internal/handler"
	"github.com/iliyamo/match-ticket-reservation/internal/model"
	"github.com/iliyamo/match-ticket-reservation/internal/utils"
)

const secret = "router-secret"

type stubCore struct{}

func (stubCore) Reserve(_ context.Context, who model.Identity, matchID uint64, q int) (model.Reservation, error) {
	return model.Reservation{ID: 1, MatchID: matchID, UserID: who.UserID, TicketsReserved: q}, nil
}
func (stubCore) Cancel(context.Context, model.Identity, uint64) error { return nil }
func (stubCore) ListMatches(context.Context) ([]model.Match, error) {
	return []model.Match{}, nil
}
func (stubCore) ListReservationsForUser(context.Context, model.Identity) ([]model.UserReservation, error) {
	return []model.UserReservation{}, nil
}
func (stubCore) ListReservationsForMatch(context.Context, model.Identity, uint64) ([]model.MatchReservation, error) {
	return []model.MatchReservation{}, nil
}
func (stubCore) CreateMatch(_ context.Context, _ model.Identity, in model.NewMatch) (model.Match, error) {
	return model.Match{ID: 1, Opponent: in.Opponent}, nil
}
func (stubCore) DeleteMatch(context.Context, model.Identity, uint64) error { return nil }

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newServer() *echo.Echo {
	e := echo.New()
	RegisterRoutes(e, nil)
	RegisterMatches(e, handler.NewMatchHandler(stubCore{}, nil), secret, passThrough)
	RegisterReservations(e, handler.NewReservationHandler(stubCore{}, nil), secret, passThrough)
	return e
}

func call(t *testing.T, e *echo.Echo, method, path, role, body string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if role != "" {
		tok, err := utils.NewAccessToken(secret, 3, role, 5)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRouteProtection(t *testing.T) {
	e := newServer()
	match := `{"opponent":"United","date":"2026-08-14","time":"20:45","total_tickets":10}`

	cases := []struct {
		name         string
		method, path string
		role, body   string
		want         int
	}{
		{"health", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"public match list", http.MethodGet, "/v1/matches", "", "", http.StatusOK},
		{"anonymous reserve", http.MethodPost, "/v1/reservations", "", `{"match_id":1,"quantity":1}`, http.StatusUnauthorized},
		{"user reserve", http.MethodPost, "/v1/reservations", model.RoleUser, `{"match_id":1,"quantity":1}`, http.StatusCreated},
		{"user cancel", http.MethodDelete, "/v1/reservations/1", model.RoleUser, "", http.StatusOK},
		{"user list own", http.MethodGet, "/v1/my-reservations", model.RoleUser, "", http.StatusOK},
		{"user creates match", http.MethodPost, "/v1/matches", model.RoleUser, match, http.StatusForbidden},
		{"admin creates match", http.MethodPost, "/v1/matches", model.RoleAdmin, match, http.StatusCreated},
		{"user deletes match", http.MethodDelete, "/v1/matches/1", model.RoleUser, "", http.StatusForbidden},
		{"admin deletes match", http.MethodDelete, "/v1/matches/1", model.RoleAdmin, "", http.StatusNoContent},
		{"user views match reservations", http.MethodGet, "/v1/admin/matches/1/reservations", model.RoleUser, "", http.StatusForbidden},
		{"admin views match reservations", http.MethodGet, "/v1/admin/matches/1/reservations", model.RoleAdmin, "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, call(t, e, tc.method, tc.path, tc.role, tc.body))
		})
	}
}
