package model

import "time"

// Match represents a scheduled fixture with a fixed pool of tickets.
// TotalTickets is set once when the match is created and never
// changes.  AvailableTickets is debited by reservations and credited
// back by cancellations; it always stays between zero and
// TotalTickets.
//
// Fields:
//  ID               – primary key identifier.
//  Opponent         – name of the opposing team.
//  Date             – match day in "2006-01-02" form.
//  Time             – kick-off time in "15:04" form.
//  Location         – venue (optional).
//  TotalTickets     – size of the seat pool.
//  AvailableTickets – seats not claimed by a live reservation.
//  CreatedAt        – creation timestamp.
type Match struct {
    ID               uint64    `json:"id"`                // matches.id
    Opponent         string    `json:"opponent"`          // matches.opponent
    Date             string    `json:"date"`              // matches.date
    Time             string    `json:"time"`              // matches.time
    Location         string    `json:"location"`          // matches.location
    TotalTickets     int       `json:"total_tickets"`     // matches.total_tickets
    AvailableTickets int       `json:"available_tickets"` // matches.available_tickets
    CreatedAt        time.Time `json:"created_at"`        // matches.created_at
}

// NewMatch carries the administrator supplied fields for a match that
// does not exist yet.  AvailableTickets is derived from TotalTickets.
type NewMatch struct {
    Opponent     string `json:"opponent"`
    Date         string `json:"date"`
    Time         string `json:"time"`
    Location     string `json:"location"`
    TotalTickets int    `json:"total_tickets"`
}

// Layouts used for the descriptive date and time columns.
const (
    MatchDateLayout = "2006-01-02"
    MatchTimeLayout = "15:04"
)
