package service

import "github.com/iliyamo/match-ticket-reservation/internal/model"

// Action names a capability checked before the core does any work.
type Action string

const (
	ActionReserve               Action = "reserve"
	ActionCancel                Action = "cancel"
	ActionListOwnReservations   Action = "list_own_reservations"
	ActionManageMatches         Action = "manage_matches"
	ActionViewMatchReservations Action = "view_match_reservations"
)

// Authorizer decides whether an identity may perform an action.
type Authorizer interface {
	Authorize(who model.Identity, action Action) bool
}

// RoleAuthorizer grants actions by role: administrators may do anything,
// users may reserve, cancel and list their own reservations.
type RoleAuthorizer struct{}

var userActions = map[Action]bool{
	ActionReserve:             true,
	ActionCancel:              true,
	ActionListOwnReservations: true,
}

func (RoleAuthorizer) Authorize(who model.Identity, action Action) bool {
	if who.UserID == 0 {
		return false
	}
	switch who.Role {
	case model.RoleAdmin:
		return true
	case model.RoleUser:
		return userActions[action]
	}
	return false
}
