// Package service holds the seat-inventory core.  It is the only code that
// mutates matches.available_tickets or the reservations ledger, and it does
// so inside a transaction that holds the match row lock, so the check, the
// ledger write and the inventory change commit or fail together.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/match-ticket-reservation/internal/metrics"
	"github.com/iliyamo/match-ticket-reservation/internal/model"
	"github.com/iliyamo/match-ticket-reservation/internal/queue"
	"github.com/iliyamo/match-ticket-reservation/internal/repository"
)

// TxRunner runs fn as one atomic unit of work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// MatchStore is the data access the core needs for matches.
type MatchStore interface {
	GetForUpdate(ctx context.Context, id uint64) (model.Match, error)
	GetByID(ctx context.Context, id uint64) (model.Match, error)
	List(ctx context.Context) ([]model.Match, error)
	Create(ctx context.Context, in model.NewMatch) (model.Match, error)
	Debit(ctx context.Context, id uint64, n int) error
	Credit(ctx context.Context, id uint64, n int) error
	CountReservations(ctx context.Context, id uint64) (int, error)
	Delete(ctx context.Context, id uint64) error
}

// ReservationStore is the data access the core needs for the ledger.
type ReservationStore interface {
	Create(ctx context.Context, matchID, userID uint64, tickets int) (model.Reservation, error)
	GetByID(ctx context.Context, id uint64) (model.Reservation, error)
	GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error)
	Delete(ctx context.Context, id uint64) error
	ListByUser(ctx context.Context, userID uint64) ([]model.UserReservation, error)
	ListByMatch(ctx context.Context, matchID uint64) ([]model.MatchReservation, error)
}

// EventPublisher receives an event after each committed reserve or cancel.
type EventPublisher interface {
	PublishReservation(ctx context.Context, ev queue.ReservationEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishReservation(context.Context, queue.ReservationEvent) error { return nil }

// ReservationService implements reserve, cancel and the read operations on
// matches and reservations.
type ReservationService struct {
	tx           TxRunner
	matches      MatchStore
	reservations ReservationStore
	auth         Authorizer
	publisher    EventPublisher
	clock        Clock
	log          logrus.FieldLogger
}

// Option customises a ReservationService.
type Option func(*ReservationService)

// WithAuthorizer replaces the default RoleAuthorizer.
func WithAuthorizer(a Authorizer) Option {
	return func(s *ReservationService) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithPublisher sets where committed reservation events are sent.
func WithPublisher(p EventPublisher) Option {
	return func(s *ReservationService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides the clock used for event timestamps and timings.
func WithClock(c Clock) Option {
	return func(s *ReservationService) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used for publish failures and outcomes.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *ReservationService) {
		if l != nil {
			s.log = l
		}
	}
}

// NewReservationService wires the core to its storage collaborators.
func NewReservationService(tx TxRunner, matches MatchStore, reservations ReservationStore, opts ...Option) *ReservationService {
	if tx == nil || matches == nil || reservations == nil {
		panic("nil store passed to NewReservationService")
	}
	s := &ReservationService{
		tx:           tx,
		matches:      matches,
		reservations: reservations,
		auth:         RoleAuthorizer{},
		publisher:    nopPublisher{},
		clock:        SystemClock(),
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reserve claims quantity tickets on a match for the caller.  The match
// row is locked, availability is re-checked under the lock, the ledger row
// is inserted and the pool debited in the same transaction.  On any error
// nothing is committed.
func (s *ReservationService) Reserve(ctx context.Context, who model.Identity, matchID uint64, quantity int) (model.Reservation, error) {
	if !s.auth.Authorize(who, ActionReserve) {
		return model.Reservation{}, repository.ErrForbidden
	}
	if quantity <= 0 {
		return model.Reservation{}, repository.ErrInvalidQuantity
	}
	if matchID == 0 {
		return model.Reservation{}, repository.ErrMatchNotFound
	}

	start := s.clock.Now()
	var (
		created   model.Reservation
		remaining int
	)
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		m, err := s.matches.GetForUpdate(txCtx, matchID)
		if err != nil {
			return err
		}
		if m.AvailableTickets < quantity {
			return repository.ErrInsufficientInventory
		}
		res, err := s.reservations.Create(txCtx, matchID, who.UserID, quantity)
		if err != nil {
			return err
		}
		if err := s.matches.Debit(txCtx, matchID, quantity); err != nil {
			return err
		}
		created = res
		remaining = m.AvailableTickets - quantity
		return nil
	})
	s.observe("reserve", err, start)
	if err != nil {
		return model.Reservation{}, err
	}

	metrics.TicketsDebited(quantity)
	s.publish(ctx, queue.EventReservationCreated, created, remaining)
	return created, nil
}

// Cancel deletes a live reservation owned by the caller and credits its
// tickets back to the match.  The match row is locked before the
// reservation row, the same order Reserve uses, and the reservation is
// re-read under the lock so a concurrent cancel sees ErrReservationNotFound.
func (s *ReservationService) Cancel(ctx context.Context, who model.Identity, reservationID uint64) error {
	if !s.auth.Authorize(who, ActionCancel) {
		return repository.ErrForbidden
	}
	if reservationID == 0 {
		return repository.ErrReservationNotFound
	}

	start := s.clock.Now()
	var (
		cancelled model.Reservation
		remaining int
	)
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		peek, err := s.reservations.GetByID(txCtx, reservationID)
		if err != nil {
			return err
		}
		m, err := s.matches.GetForUpdate(txCtx, peek.MatchID)
		if err != nil {
			if errors.Is(err, repository.ErrMatchNotFound) {
				return fmt.Errorf("%w: reservation %d references missing match %d",
					repository.ErrInventoryInvariant, reservationID, peek.MatchID)
			}
			return err
		}
		res, err := s.reservations.GetForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != who.UserID {
			return repository.ErrNotOwner
		}
		if err := s.reservations.Delete(txCtx, res.ID); err != nil {
			return err
		}
		if err := s.matches.Credit(txCtx, res.MatchID, res.TicketsReserved); err != nil {
			return err
		}
		cancelled = res
		remaining = m.AvailableTickets + res.TicketsReserved
		return nil
	})
	s.observe("cancel", err, start)
	if err != nil {
		return err
	}

	metrics.TicketsCredited(cancelled.TicketsReserved)
	s.publish(ctx, queue.EventReservationCancelled, cancelled, remaining)
	return nil
}

// ListMatches returns every match ordered by date and time.
func (s *ReservationService) ListMatches(ctx context.Context) ([]model.Match, error) {
	return s.matches.List(ctx)
}

// ListReservationsForUser returns the caller's own reservations joined
// with match details.
func (s *ReservationService) ListReservationsForUser(ctx context.Context, who model.Identity) ([]model.UserReservation, error) {
	if !s.auth.Authorize(who, ActionListOwnReservations) {
		return nil, repository.ErrForbidden
	}
	return s.reservations.ListByUser(ctx, who.UserID)
}

// ListReservationsForMatch is the administrative view of who holds
// tickets for a match.
func (s *ReservationService) ListReservationsForMatch(ctx context.Context, who model.Identity, matchID uint64) ([]model.MatchReservation, error) {
	if !s.auth.Authorize(who, ActionViewMatchReservations) {
		return nil, repository.ErrForbidden
	}
	if _, err := s.matches.GetByID(ctx, matchID); err != nil {
		return nil, err
	}
	return s.reservations.ListByMatch(ctx, matchID)
}

// CreateMatch validates and stores a new match whose pool starts full.
func (s *ReservationService) CreateMatch(ctx context.Context, who model.Identity, in model.NewMatch) (model.Match, error) {
	if !s.auth.Authorize(who, ActionManageMatches) {
		return model.Match{}, repository.ErrForbidden
	}
	in, err := normalizeMatch(in)
	if err != nil {
		return model.Match{}, err
	}
	m, err := s.matches.Create(ctx, in)
	if err != nil {
		return model.Match{}, err
	}
	s.log.WithFields(logrus.Fields{"match_id": m.ID, "total_tickets": m.TotalTickets}).Info("match created")
	return m, nil
}

// DeleteMatch removes a match.  Matches that still have live
// reservations are not deleted and ErrMatchHasReservations is returned.
func (s *ReservationService) DeleteMatch(ctx context.Context, who model.Identity, matchID uint64) error {
	if !s.auth.Authorize(who, ActionManageMatches) {
		return repository.ErrForbidden
	}
	start := s.clock.Now()
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.matches.GetForUpdate(txCtx, matchID); err != nil {
			return err
		}
		n, err := s.matches.CountReservations(txCtx, matchID)
		if err != nil {
			return err
		}
		if n > 0 {
			return repository.ErrMatchHasReservations
		}
		return s.matches.Delete(txCtx, matchID)
	})
	s.observe("delete_match", err, start)
	if err != nil {
		return err
	}
	s.log.WithField("match_id", matchID).Info("match deleted")
	return nil
}

func normalizeMatch(in model.NewMatch) (model.NewMatch, error) {
	in.Opponent = strings.TrimSpace(in.Opponent)
	in.Location = strings.TrimSpace(in.Location)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	if in.Opponent == "" || in.Date == "" || in.Time == "" {
		return in, fmt.Errorf("%w: opponent, date and time are required", repository.ErrInvalidMatch)
	}
	if in.TotalTickets <= 0 {
		return in, fmt.Errorf("%w: total_tickets must be positive", repository.ErrInvalidMatch)
	}
	if _, err := time.Parse(model.MatchDateLayout, in.Date); err != nil {
		return in, fmt.Errorf("%w: date must be YYYY-MM-DD", repository.ErrInvalidMatch)
	}
	t, err := time.Parse(model.MatchTimeLayout, in.Time)
	if err != nil {
		// accept HH:MM:SS as well and drop the seconds
		t, err = time.Parse("15:04:05", in.Time)
		if err != nil {
			return in, fmt.Errorf("%w: time must be HH:MM", repository.ErrInvalidMatch)
		}
	}
	in.Time = t.Format(model.MatchTimeLayout)
	return in, nil
}

func (s *ReservationService) observe(op string, err error, start time.Time) {
	outcome := Outcome(err)
	metrics.ObserveOperation(op, outcome, s.clock.Now().Sub(start))
	if outcome == "transient" || outcome == "error" || outcome == "invariant" {
		s.log.WithFields(logrus.Fields{"operation": op, "outcome": outcome}).WithError(err).Warn("reservation core operation failed")
	}
}

func (s *ReservationService) publish(ctx context.Context, typ string, res model.Reservation, remaining int) {
	ev := queue.ReservationEvent{
		EventID:        uuid.NewString(),
		Type:           typ,
		ReservationID:  res.ID,
		MatchID:        res.MatchID,
		UserID:         res.UserID,
		Tickets:        res.TicketsReserved,
		AvailableAfter: remaining,
		OccurredAt:     s.clock.Now().Format(time.RFC3339),
	}
	if err := s.publisher.PublishReservation(ctx, ev); err != nil {
		s.log.WithFields(logrus.Fields{
			"event_type":     typ,
			"reservation_id": res.ID,
			"match_id":       res.MatchID,
		}).WithError(err).Warn("publish reservation event failed")
	}
}

// Outcome classifies err into the label used for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrMatchNotFound):
		return "match_not_found"
	case errors.Is(err, repository.ErrReservationNotFound):
		return "reservation_not_found"
	case errors.Is(err, repository.ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, repository.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, repository.ErrMatchHasReservations):
		return "match_has_reservations"
	case errors.Is(err, repository.ErrInventoryInvariant):
		return "invariant"
	case errors.Is(err, repository.ErrCommitUnknown):
		return "commit_unknown"
	case repository.IsTransient(err):
		return "transient"
	}
	return "error"
}
