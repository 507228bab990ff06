package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
)

// TxFunc is the body of a unit of work. Every write must go through repos.
type TxFunc func(ctx context.Context, repos *Repositories) error

// UnitOfWork runs groups of writes in one transaction and reports the rows they affected.
type UnitOfWork struct {
	db   *sqlx.DB
	read *Repositories
}

// NewUnitOfWork constructs a unit of work over db.
func NewUnitOfWork(db *sqlx.DB) *UnitOfWork {
	return &UnitOfWork{db: db, read: NewRepositories(db)}
}

// Read returns repositories bound to the pool for reads outside a transaction.
func (u *UnitOfWork) Read() *Repositories {
	return u.read
}

// Do begins a read-committed transaction, runs fn and commits. It returns the number of rows
// affected by every statement executed through the transaction. Any error or panic rolls back
// and nothing is persisted.
func (u *UnitOfWork) Do(ctx context.Context, fn TxFunc) (affected int64, err error) {
	tx, err := u.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	tracked := &countingTx{Tx: tx}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			affected = 0
		}
	}()

	if err = fn(ctx, NewRepositories(tracked)); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return tracked.affected.Load(), nil
}

// countingTx sums RowsAffected of every Exec. sqlx named execs funnel through ExecContext too.
type countingTx struct {
	*sqlx.Tx
	affected atomic.Int64
}

func (t *countingTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := t.Tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if n, rerr := res.RowsAffected(); rerr == nil {
		t.affected.Add(n)
	}
	return res, nil
}
