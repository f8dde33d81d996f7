package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Transactor runs a unit of work inside a single database transaction.
type Transactor struct {
	db txBeginner
}

// NewTransactor constructs a Transactor over db.
func NewTransactor(db txBeginner) *Transactor {
	return &Transactor{db: db}
}

// WithinTx begins a transaction, hands it to fn and commits when fn succeeds.
// Any error from fn, or a panic, rolls the transaction back.
func (t *Transactor) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) (err error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
