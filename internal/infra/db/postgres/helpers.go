package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"pix-checkout/internal/domain"
)

const uniqueViolation = "23505"

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func execSQL(ctx context.Context, q querier, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if q == nil {
		return nil, domain.ErrInvalidExecContext
	}
	return q.Exec(ctx, sql, args...)
}

func pickRow(ctx context.Context, q querier, sql string, args ...interface{}) (pgx.Row, error) {
	if q == nil {
		return nil, domain.ErrInvalidExecContext
	}
	return q.QueryRow(ctx, sql, args...), nil
}

func queryRows(ctx context.Context, q querier, sql string, args ...interface{}) (pgx.Rows, error) {
	if q == nil {
		return nil, domain.ErrInvalidExecContext
	}
	return q.Query(ctx, sql, args...)
}

// storeErr maps driver errors onto domain errors.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyExists
	}
	if errors.Is(err, domain.ErrInvalidExecContext) {
		return err
	}
	return &domain.StoreError{Op: op, Err: errors.Join(domain.ErrOperationFailed, err)}
}

// scanErr maps a Scan failure, keeping not-found distinct from broken rows.
func scanErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return domain.ErrReadDatabaseRow
}
