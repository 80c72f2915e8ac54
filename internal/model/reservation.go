package model

import "time"

// Reservation is a live claim against a match's ticket pool.  A row
// exists only while the reservation is live; cancelling it deletes the
// row and returns TicketsReserved to the match.
//
// Fields:
//  ID              – primary key identifier.
//  MatchID         – match the tickets were drawn from.
//  UserID          – user who made the reservation.
//  TicketsReserved – number of tickets claimed (always positive).
//  CreatedAt       – creation timestamp.
type Reservation struct {
    ID              uint64    `json:"id"`               // reservations.id
    MatchID         uint64    `json:"match_id"`         // reservations.match_id
    UserID          uint64    `json:"user_id"`          // reservations.user_id
    TicketsReserved int       `json:"tickets_reserved"` // reservations.tickets_reserved
    CreatedAt       time.Time `json:"created_at"`       // reservations.created_at
}

// UserReservation is a reservation joined with the descriptive fields
// of its match.  It is returned when a user lists their own
// reservations.
type UserReservation struct {
    ReservationID   uint64 `json:"reservation_id"`
    MatchID         uint64 `json:"match_id"`
    TicketsReserved int    `json:"tickets_reserved"`
    Opponent        string `json:"opponent"`
    Date            string `json:"date"`
    Time            string `json:"time"`
    Location        string `json:"location"`
}

// MatchReservation is a reservation joined with the public profile of
// the user who made it.  Only administrators can see these rows.
type MatchReservation struct {
    ReservationID   uint64 `json:"reservation_id"`
    UserID          uint64 `json:"user_id"`
    Username        string `json:"username"`
    Email           string `json:"email"`
    TicketsReserved int    `json:"tickets_reserved"`
}
