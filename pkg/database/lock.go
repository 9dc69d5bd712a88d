package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// TxFromContext returns the transaction opened by Transaction, if any.
func TxFromContext(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

// WithLockTimeout runs fn in a transaction whose row-lock waits are bounded
// by timeout. A zero timeout waits indefinitely.
//
// SET LOCAL is scoped to the transaction, so pooled connections never leak
// the setting into unrelated requests. Waits that exceed the timeout fail
// with SQLSTATE 55P03, which MapPQError turns into a concurrent
// modification error.
func (db *DB) WithLockTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return db.Transaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		// SET LOCAL does not accept bind parameters; the value is an integer we format ourselves.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", timeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set lock_timeout: %w", err)
		}
		return fn(ctx, tx)
	})
}
