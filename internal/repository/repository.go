// Package repository implements persistence for the event booking system.
// The Postgres stores use pgx directly (no ORM); MemoryStore offers the same
// contracts in-process for tests and single-node development.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable is returned when the backend timed out, was cancelled or
// could not be reached. Nothing was committed.
var ErrUnavailable = errors.New("storage unavailable")

// ErrConflict is returned when a transaction lost to a concurrent one
// (serialization failure or deadlock) and was rolled back.
var ErrConflict = errors.New("concurrent update conflict")

// ErrEmailTaken is returned when an account with the same email exists.
var ErrEmailTaken = errors.New("email already registered")

// ErrCapacityFloor is returned when a write would push an event's booked
// seats above its capacity.
var ErrCapacityFloor = errors.New("booked seats exceed capacity")

type txKey struct{}

// withTx runs fn inside a transaction carried in the context. Nested calls
// reuse the outer transaction.
func withTx(ctx context.Context, db *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// querier picks the context transaction when there is one.
type querier struct {
	db *pgxpool.Pool
}

func (q querier) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return q.db.Exec(ctx, sql, args...)
}

func (q querier) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return q.db.QueryRow(ctx, sql, args...)
}

func (q querier) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return q.db.Query(ctx, sql, args...)
}

// setLockTimeout bounds row-lock waits in the current transaction by the
// context deadline.
func (q querier) setLockTimeout(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	ms := time.Until(deadline).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	_, err := q.exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, fmt.Sprintf("%dms", ms))
	return err
}

// classify maps driver errors onto the package sentinels so callers never
// need to know about pgconn.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrConflict) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case pgErr.Code == "55P03", pgErr.Code == "57014", pgErr.Code == "53300", pgErr.Code == "57P01":
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		case strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}

// validID filters identifiers that could never match a UUID column, which
// Postgres would otherwise reject with 22P02.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
