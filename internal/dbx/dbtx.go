// Package dbx holds the database/sql plumbing shared by the Postgres
// repositories: the DBTX handle they query through and the transaction
// boundary used by repomanager.
package dbx

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/contacttrace/internal/common"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so a repository works the
// same inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. fn's error is returned unchanged after
// a rollback; a panic rolls back and is re-raised. Failing to begin or to
// commit is a dependency failure (or Canceled when ctx ended).
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return common.Unavailable("db begin", err)
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
		if cerr := tx.Commit(); cerr != nil {
			err = common.Unavailable("db commit", cerr)
		}
	}()

	return fn(ctx, tx)
}
