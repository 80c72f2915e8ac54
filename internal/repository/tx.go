package repository

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// querier is the subset of *sql.DB and *sql.Tx used by the repositories.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxRunner opens transactions that span several repositories. The open
// *sql.Tx travels in the context so every repository method called with the
// returned context participates in it.
type TxRunner struct {
	db *sql.DB
}

// NewTxRunner returns a TxRunner bound to db.
func NewTxRunner(db *sql.DB) *TxRunner { return &TxRunner{db: db} }

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise, including when fn panics. A
// context that already carries a transaction is reused so nested calls
// join the outer unit of work.
func (r *TxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, nil, "begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		return err
	}
	committed = true
	if err := tx.Commit(); err != nil {
		return commitError(err)
	}
	return nil
}

// commitError classifies a failed COMMIT. Losing the connection while the
// commit is in flight leaves its outcome unknown, so that case is not
// reported as transient.
func commitError(err error) error {
	if isConnLoss(err) {
		return fmt.Errorf("commit tx: %w: %v", ErrCommitUnknown, err)
	}
	return classify(err, nil, "commit tx")
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// conn picks the transaction stored in ctx, falling back to the pool.
func conn(ctx context.Context, db *sql.DB) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

// mustAffectOne checks that an UPDATE or DELETE touched exactly one row.
func mustAffectOne(res sql.Result, op string, onZero error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n != 1 {
		return onZero
	}
	return nil
}
