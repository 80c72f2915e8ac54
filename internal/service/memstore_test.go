package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/match-ticket-reservation/internal/model"
	"github.com/iliyamo/match-ticket-reservation/internal/repository"
)

// memStore is an in-memory TxRunner, MatchStore and ReservationStore.
// GetForUpdate takes a per-match mutex held until the transaction ends,
// and every write inside a transaction registers an undo step.
type memStore struct {
	mu           sync.Mutex
	matches      map[uint64]model.Match
	reservations map[uint64]model.Reservation
	users        map[uint64]string
	rowLocks     map[uint64]*sync.Mutex
	nextMatch    uint64
	nextRes      uint64

	// fault injection, consulted once per call
	failCreate error
	failDebit  error
	failCredit error
	failDelete error
}

type memTx struct {
	held []uint64
	undo []func()
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		matches:      map[uint64]model.Match{},
		reservations: map[uint64]model.Reservation{},
		users:        map[uint64]string{},
		rowLocks:     map[uint64]*sync.Mutex{},
	}
}

func (s *memStore) seedMatch(total, available int) model.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMatch++
	m := model.Match{
		ID:               s.nextMatch,
		Opponent:         "Rivals FC",
		Date:             "2026-05-01",
		Time:             "19:30",
		Location:         "Home Ground",
		TotalTickets:     total,
		AvailableTickets: available,
		CreatedAt:        time.Now().UTC(),
	}
	s.matches[m.ID] = m
	s.rowLocks[m.ID] = &sync.Mutex{}
	return m
}

func (s *memStore) reschedule(id uint64, date, kickoff string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.matches[id]
	m.Date, m.Time = date, kickoff
	s.matches[id] = m
}

// seedReservation inserts a ledger row without touching the pool.
func (s *memStore) seedReservation(matchID, userID uint64, tickets int) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRes++
	res := model.Reservation{ID: s.nextRes, MatchID: matchID, UserID: userID, TicketsReserved: tickets}
	s.reservations[res.ID] = res
	return res
}

// seedHolds accounts for tickets already sold to someone else.
func (s *memStore) seedHolds(matchID uint64, tickets int) {
	s.seedReservation(matchID, 100, tickets)
}

func (s *memStore) match(id uint64) model.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[id]
}

func (s *memStore) reservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

// ledgerHolds returns the sum of live reservations on a match.
func (s *memStore) ledgerHolds(matchID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.MatchID == matchID {
			n += r.TicketsReserved
		}
	}
	return n
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}
	tx := &memTx{}
	err := fn(context.WithValue(ctx, memTxKey{}, tx))
	if err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
	}
	for i := len(tx.held) - 1; i >= 0; i-- {
		s.lockFor(tx.held[i]).Unlock()
	}
	return err
}

func (s *memStore) lockFor(id uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowLocks[id]
}

func (s *memStore) recordUndo(ctx context.Context, fn func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, fn)
	}
}

func takeFault(p *error) error {
	err := *p
	*p = nil
	return err
}

func (s *memStore) GetForUpdate(ctx context.Context, id uint64) (model.Match, error) {
	l := s.lockFor(id)
	if l == nil {
		return model.Match{}, repository.ErrMatchNotFound
	}
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	if tx != nil {
		already := false
		for _, h := range tx.held {
			already = already || h == id
		}
		if !already {
			l.Lock()
			tx.held = append(tx.held, id)
		}
	}
	return s.GetByID(ctx, id)
}

func (s *memStore) GetByID(_ context.Context, id uint64) (model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return model.Match{}, repository.ErrMatchNotFound
	}
	return m, nil
}

func (s *memStore) List(context.Context) ([]model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Create(_ context.Context, in model.NewMatch) (model.Match, error) {
	s.mu.Lock()
	s.nextMatch++
	m := model.Match{
		ID: s.nextMatch, Opponent: in.Opponent, Date: in.Date, Time: in.Time, Location: in.Location,
		TotalTickets: in.TotalTickets, AvailableTickets: in.TotalTickets, CreatedAt: time.Now().UTC(),
	}
	s.matches[m.ID] = m
	s.rowLocks[m.ID] = &sync.Mutex{}
	s.mu.Unlock()
	return m, nil
}

func (s *memStore) Debit(ctx context.Context, id uint64, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := takeFault(&s.failDebit); err != nil {
		return err
	}
	m := s.matches[id]
	if m.AvailableTickets < n {
		return repository.ErrInsufficientInventory
	}
	m.AvailableTickets -= n
	s.matches[id] = m
	s.recordUndo(ctx, func() {
		m := s.matches[id]
		m.AvailableTickets += n
		s.matches[id] = m
	})
	return nil
}

func (s *memStore) Credit(ctx context.Context, id uint64, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := takeFault(&s.failCredit); err != nil {
		return err
	}
	m := s.matches[id]
	if m.AvailableTickets+n > m.TotalTickets {
		return repository.ErrInventoryInvariant
	}
	m.AvailableTickets += n
	s.matches[id] = m
	s.recordUndo(ctx, func() {
		m := s.matches[id]
		m.AvailableTickets -= n
		s.matches[id] = m
	})
	return nil
}

func (s *memStore) CountReservations(_ context.Context, id uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.MatchID == id {
			n++
		}
	}
	return n, nil
}

func (s *memStore) Delete(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return repository.ErrMatchNotFound
	}
	delete(s.matches, id)
	s.recordUndo(ctx, func() { s.matches[id] = m })
	return nil
}

// memReservations adapts memStore to ReservationStore; the method sets
// overlap on Create, GetByID, GetForUpdate and Delete.
type memReservations struct{ s *memStore }

func (r memReservations) Create(ctx context.Context, matchID, userID uint64, tickets int) (model.Reservation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := takeFault(&s.failCreate); err != nil {
		return model.Reservation{}, err
	}
	s.nextRes++
	res := model.Reservation{ID: s.nextRes, MatchID: matchID, UserID: userID, TicketsReserved: tickets, CreatedAt: time.Now().UTC()}
	s.reservations[res.ID] = res
	s.recordUndo(ctx, func() { delete(s.reservations, res.ID) })
	return res, nil
}

func (r memReservations) GetByID(_ context.Context, id uint64) (model.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return model.Reservation{}, repository.ErrReservationNotFound
	}
	return res, nil
}

func (r memReservations) GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r memReservations) Delete(ctx context.Context, id uint64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := takeFault(&s.failDelete); err != nil {
		return err
	}
	res, ok := s.reservations[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	delete(s.reservations, id)
	s.recordUndo(ctx, func() { s.reservations[id] = res })
	return nil
}

func (r memReservations) ListByUser(_ context.Context, userID uint64) ([]model.UserReservation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UserReservation, 0)
	for _, res := range s.reservations {
		if res.UserID != userID {
			continue
		}
		m := s.matches[res.MatchID]
		out = append(out, model.UserReservation{
			ReservationID: res.ID, MatchID: res.MatchID, TicketsReserved: res.TicketsReserved,
			Opponent: m.Opponent, Date: m.Date, Time: m.Time, Location: m.Location,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ReservationID < b.ReservationID
	})
	return out, nil
}

func (r memReservations) ListByMatch(_ context.Context, matchID uint64) ([]model.MatchReservation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MatchReservation, 0)
	for _, res := range s.reservations {
		if res.MatchID != matchID {
			continue
		}
		out = append(out, model.MatchReservation{
			ReservationID: res.ID, UserID: res.UserID, Username: s.users[res.UserID], TicketsReserved: res.TicketsReserved,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservationID < out[j].ReservationID })
	return out, nil
}
