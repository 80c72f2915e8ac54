// Package queue defines message payloads exchanged over the message broker
// together with the RabbitMQ publisher and the audit consumer.
package queue

// Event types carried in ReservationEvent.Type.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a reserve or cancel commits.  It
// contains enough information for downstream consumers to audit inventory
// movements without querying the primary database.
type ReservationEvent struct {
	EventID        string `json:"event_id"`
	Type           string `json:"type"`
	ReservationID  uint64 `json:"reservation_id"`
	MatchID        uint64 `json:"match_id"`
	UserID         uint64 `json:"user_id"`
	Tickets        int    `json:"tickets"`
	AvailableAfter int    `json:"available_after"`
	OccurredAt     string `json:"occurred_at"`
}
