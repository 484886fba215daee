package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx. Write methods that
// must commit atomically with a state transition take one explicitly so the
// whole unit of work rides a single transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrVersionConflict means a compare-and-swap update on a negotiation's
// state version stamp matched no row: someone else advanced the state first.
var ErrVersionConflict = errors.New("negotiation state version conflict")
