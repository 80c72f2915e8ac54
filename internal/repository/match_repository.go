package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/match-ticket-reservation/internal/model"
)

// matchColumns is the select list shared by every match query.  Date and
// time are formatted by MySQL so they scan into plain strings.
const matchColumns = `id, opponent, DATE_FORMAT(date, '%Y-%m-%d'), TIME_FORMAT(time, '%H:%i'),
       location, total_tickets, available_tickets, created_at`

// MatchRepo owns the matches table.  Debit and Credit are the only
// statements that change available_tickets and both must run inside a
// transaction that holds the row lock taken by GetForUpdate.
type MatchRepo struct {
	db *sql.DB
}

// NewMatchRepo returns a new MatchRepo bound to the given database.
func NewMatchRepo(db *sql.DB) *MatchRepo { return &MatchRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (model.Match, error) {
	var m model.Match
	err := row.Scan(&m.ID, &m.Opponent, &m.Date, &m.Time, &m.Location,
		&m.TotalTickets, &m.AvailableTickets, &m.CreatedAt)
	return m, err
}

// GetForUpdate reads a match and locks its row until the surrounding
// transaction ends.  Concurrent reserve and cancel calls on the same
// match queue behind this lock.  ErrMatchNotFound is returned when the
// row does not exist.
func (r *MatchRepo) GetForUpdate(ctx context.Context, id uint64) (model.Match, error) {
	const q = `SELECT ` + matchColumns + ` FROM matches WHERE id = ? FOR UPDATE`
	m, err := scanMatch(conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Match{}, classify(err, ErrMatchNotFound, "lock match")
	}
	return m, nil
}

// GetByID reads a match without locking it.
func (r *MatchRepo) GetByID(ctx context.Context, id uint64) (model.Match, error) {
	const q = `SELECT ` + matchColumns + ` FROM matches WHERE id = ?`
	m, err := scanMatch(conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Match{}, classify(err, ErrMatchNotFound, "get match")
	}
	return m, nil
}

// List returns every match ordered by date, time and id.
func (r *MatchRepo) List(ctx context.Context) ([]model.Match, error) {
	const q = `SELECT ` + matchColumns + ` FROM matches ORDER BY date, time, id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q)
	if err != nil {
		return nil, classify(err, nil, "list matches")
	}
	defer rows.Close()
	matches := make([]model.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, classify(err, nil, "scan match")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, nil, "list matches")
	}
	return matches, nil
}

// Create inserts a match with available_tickets equal to total_tickets
// and returns the stored row.
func (r *MatchRepo) Create(ctx context.Context, in model.NewMatch) (model.Match, error) {
	const q = `INSERT INTO matches (opponent, date, time, location, total_tickets, available_tickets)
               VALUES (?, ?, ?, ?, ?, ?)`
	db := conn(ctx, r.db)
	res, err := db.ExecContext(ctx, q, in.Opponent, in.Date, in.Time, in.Location, in.TotalTickets, in.TotalTickets)
	if err != nil {
		return model.Match{}, classify(err, nil, "insert match")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Match{}, classify(err, nil, "insert match id")
	}
	return r.GetByID(ctx, uint64(id))
}

// Debit subtracts n tickets.  The WHERE clause refuses to go below zero
// so a stale caller can never oversell; in that case
// ErrInsufficientInventory is returned.
func (r *MatchRepo) Debit(ctx context.Context, id uint64, n int) error {
	const q = `UPDATE matches SET available_tickets = available_tickets - ?
               WHERE id = ? AND available_tickets >= ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, n, id, n)
	if err != nil {
		return classify(err, nil, "debit match")
	}
	return mustAffectOne(res, "debit match", ErrInsufficientInventory)
}

// Credit adds n tickets back.  It refuses to exceed total_tickets and
// returns ErrInventoryInvariant if it would.
func (r *MatchRepo) Credit(ctx context.Context, id uint64, n int) error {
	const q = `UPDATE matches SET available_tickets = available_tickets + ?
               WHERE id = ? AND available_tickets + ? <= total_tickets`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, n, id, n)
	if err != nil {
		return classify(err, nil, "credit match")
	}
	return mustAffectOne(res, "credit match", ErrInventoryInvariant)
}

// CountReservations returns the number of live reservations on a match.
func (r *MatchRepo) CountReservations(ctx context.Context, id uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM reservations WHERE match_id = ?`
	var n int
	if err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(&n); err != nil {
		return 0, classify(err, nil, "count reservations")
	}
	return n, nil
}

// Delete removes a match row.  ErrMatchNotFound is returned when nothing
// was deleted; a foreign key violation maps to ErrMatchHasReservations.
func (r *MatchRepo) Delete(ctx context.Context, id uint64) error {
	const q = `DELETE FROM matches WHERE id = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, id)
	if err != nil {
		return classify(err, nil, "delete match")
	}
	return mustAffectOne(res, "delete match", ErrMatchNotFound)
}
