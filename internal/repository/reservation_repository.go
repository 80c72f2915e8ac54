package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/match-ticket-reservation/internal/model"
)

// ReservationRepo provides access to the reservations ledger.  Rows are
// only ever inserted or deleted; tickets_reserved is never updated.  All
// timestamp fields are assumed to be stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, match_id, user_id, tickets_reserved, created_at`

func scanReservation(row rowScanner) (model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(&res.ID, &res.MatchID, &res.UserID, &res.TicketsReserved, &res.CreatedAt)
	return res, err
}

// Create inserts a reservation row and returns it with the generated ID
// and timestamp populated.  It must run in the same transaction as the
// matching MatchRepo.Debit.
func (r *ReservationRepo) Create(ctx context.Context, matchID, userID uint64, tickets int) (model.Reservation, error) {
	const q = `INSERT INTO reservations (user_id, match_id, tickets_reserved) VALUES (?, ?, ?)`
	db := conn(ctx, r.db)
	result, err := db.ExecContext(ctx, q, userID, matchID, tickets)
	if err != nil {
		return model.Reservation{}, classify(err, nil, "insert reservation")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.Reservation{}, classify(err, nil, "insert reservation id")
	}
	// Query back the full row to populate created_at
	const sel = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(db.QueryRowContext(ctx, sel, id))
	if err != nil {
		return model.Reservation{}, classify(err, ErrReservationNotFound, "reload reservation")
	}
	return res, nil
}

// GetByID reads a reservation without locking it.  ErrReservationNotFound
// is returned when the row is absent.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Reservation{}, classify(err, ErrReservationNotFound, "get reservation")
	}
	return res, nil
}

// GetForUpdate reads a reservation and locks its row.  Callers take the
// match lock first so the lock order matches Reserve.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
	res, err := scanReservation(conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Reservation{}, classify(err, ErrReservationNotFound, "lock reservation")
	}
	return res, nil
}

// Delete removes a reservation row.  ErrReservationNotFound is returned
// when the row was already gone.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	const q = `DELETE FROM reservations WHERE id = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, id)
	if err != nil {
		return classify(err, nil, "delete reservation")
	}
	return mustAffectOne(res, "delete reservation", ErrReservationNotFound)
}

// ListByUser returns the user's reservations joined with match details,
// ordered by match date then time.  When no reservations exist an empty
// slice is returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.UserReservation, error) {
	const q = `SELECT r.id, r.match_id, r.tickets_reserved,
                      m.opponent, DATE_FORMAT(m.date, '%Y-%m-%d'), TIME_FORMAT(m.time, '%H:%i'), m.location
               FROM reservations r
               JOIN matches m ON r.match_id = m.id
               WHERE r.user_id = ?
               ORDER BY m.date, m.time, r.id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, userID)
	if err != nil {
		return nil, classify(err, nil, "list user reservations")
	}
	defer rows.Close()
	out := make([]model.UserReservation, 0)
	for rows.Next() {
		var ur model.UserReservation
		if err := rows.Scan(&ur.ReservationID, &ur.MatchID, &ur.TicketsReserved,
			&ur.Opponent, &ur.Date, &ur.Time, &ur.Location); err != nil {
			return nil, classify(err, nil, "scan user reservation")
		}
		out = append(out, ur)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, nil, "list user reservations")
	}
	return out, nil
}

// ListByMatch returns every reservation on a match with the reserving
// user's username and email, oldest first.
func (r *ReservationRepo) ListByMatch(ctx context.Context, matchID uint64) ([]model.MatchReservation, error) {
	const q = `SELECT r.id, r.user_id, u.username, u.email, r.tickets_reserved
               FROM reservations r
               JOIN users u ON r.user_id = u.id
               WHERE r.match_id = ?
               ORDER BY r.id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, matchID)
	if err != nil {
		return nil, classify(err, nil, "list match reservations")
	}
	defer rows.Close()
	out := make([]model.MatchReservation, 0)
	for rows.Next() {
		var mr model.MatchReservation
		if err := rows.Scan(&mr.ReservationID, &mr.UserID, &mr.Username, &mr.Email, &mr.TicketsReserved); err != nil {
			return nil, classify(err, nil, "scan match reservation")
		}
		out = append(out, mr)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, nil, "list match reservations")
	}
	return out, nil
}
