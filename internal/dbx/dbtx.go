// Package dbx holds the small database helpers shared by the Postgres
// repositories: the DBTX interface satisfied by both *sql.DB and *sql.Tx, a
// transaction runner and transaction-scoped advisory locks.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
)

// DBTX is the subset of database/sql used by the repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic; panics are rethrown.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}

// LockXact takes a Postgres transaction-level advisory lock on every key.
// Keys are deduplicated and taken in ascending order so that two
// transactions locking overlapping sets cannot deadlock. The locks are
// released when the transaction ends.
func LockXact(ctx context.Context, tx DBTX, keys []int64) error {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	for _, k := range slices.Compact(sorted) {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, k); err != nil {
			return fmt.Errorf("advisory lock %d: %w", k, err)
		}
	}
	return nil
}
