package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the storage handle every repository method receives. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so callers choose the transaction scope.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

const (
	txAttempts = 3
	txBackoff  = 50 * time.Millisecond
)

// WithTx runs fn inside a transaction and commits when fn returns nil.
// Serialization failures and deadlocks are retried with backoff, so fn must
// not leak state from a failed attempt.
func WithTx(ctx context.Context, b Beginner, fn func(tx pgx.Tx) error) error {
	return withTx(ctx, b, pgx.TxOptions{}, fn)
}

// WithReadTx runs fn in a read-only repeatable-read transaction so that
// multi-statement reads see one snapshot.
func WithReadTx(ctx context.Context, b Beginner, fn func(tx pgx.Tx) error) error {
	return withTx(ctx, b, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func withTx(ctx context.Context, b Beginner, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = runTx(ctx, b, opts, fn)
		if err == nil || !IsTransient(err) || attempt == txAttempts {
			return err
		}
		select {
		case <-time.After(time.Duration(attempt) * txBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func runTx(ctx context.Context, b Beginner, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := b.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SQLSTATE classes the transaction helper retries.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// IsTransient reports whether err is worth retrying as a whole transaction.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
