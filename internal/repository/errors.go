// Package repository defines error types that are reused across multiple
// repositories and by the reservation service. These sentinel values allow
// higher layers such as handlers to distinguish between different failure
// scenarios with errors.Is. Store failures that are safe to retry are
// wrapped with ErrTransientStore so callers can re-run the whole operation.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrMatchNotFound is returned when the referenced match does not exist.
	ErrMatchNotFound = errors.New("match not found")

	// ErrReservationNotFound is returned when the referenced reservation does
	// not exist, including when it has already been cancelled.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrInsufficientInventory is returned when a match has fewer available
	// tickets than requested.
	ErrInsufficientInventory = errors.New("not enough tickets available")

	// ErrNotOwner is returned when a caller tries to cancel a reservation
	// created by someone else.
	ErrNotOwner = errors.New("not allowed to cancel this reservation")

	// ErrMatchHasReservations blocks deletion of a match that still has live
	// reservations.
	ErrMatchHasReservations = errors.New("match has reservations")

	// ErrInvalidQuantity is returned for a non-positive ticket quantity.
	ErrInvalidQuantity = errors.New("invalid ticket quantity")

	// ErrInvalidMatch is returned when match details fail validation.
	ErrInvalidMatch = errors.New("invalid match details")

	// ErrForbidden is returned when the caller's role does not allow the
	// requested action. Handlers should translate this into an HTTP 403.
	ErrForbidden = errors.New("forbidden")

	// ErrInventoryInvariant signals that a credit would push available
	// tickets above the match total. The surrounding transaction is rolled
	// back when it is returned.
	ErrInventoryInvariant = errors.New("inventory invariant violated")

	// ErrTransientStore wraps lock timeouts, deadlocks and connectivity
	// failures. Nothing has been committed when it is returned.
	ErrTransientStore = errors.New("transient store failure")

	// ErrCommitUnknown is returned when the connection dropped during
	// COMMIT. The unit of work may or may not have been applied, so it
	// must not be retried blindly.
	ErrCommitUnknown = errors.New("commit outcome unknown")

	// ErrRefreshRevoked is returned when a refresh token was already
	// revoked, possibly by a concurrent rotation.
	ErrRefreshRevoked = errors.New("refresh token already revoked")

	// ErrEmailExists is returned when registering an email that is taken.
	ErrEmailExists = errors.New("email already exists")
)

// MySQL server error numbers inspected by classify.
const (
	mysqlDupEntry        = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlRowIsReferenced = 1451
)

// classify maps driver level failures onto the sentinel taxonomy. notFound
// is substituted for sql.ErrNoRows; op names the failing statement.
func classify(err error, notFound error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound
	}
	if IsTransient(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrTransientStore, err)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlRowIsReferenced {
		return ErrMatchHasReservations
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsTransient reports whether err is a failure that can be retried by
// re-running the whole unit of work.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientStore) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || isConnLoss(err) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDeadlock, mysqlLockWaitTimeout:
			return true
		}
	}
	return false
}

func isConnLoss(err error) bool {
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone)
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDupEntry
}
