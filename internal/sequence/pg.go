package sequence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanbit-erp/hanbit-erp/internal/platform/db"
)

// Querier is the subset of pgx shared by pools and transactions. Next accepts
// it so callers can reserve a number inside their own transaction and have
// the reservation roll back with everything else.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Next reserves the next value for the (domain, baseCode) pool. The upsert
// takes a row lock, so a second concurrent caller blocks until the first
// transaction commits and then reads the committed high-water mark.
func Next(ctx context.Context, q Querier, domain, baseCode string) (int64, error) {
	if domain == "" || baseCode == "" {
		return 0, errors.New("sequence: domain and base code required")
	}
	var value int64
	err := q.QueryRow(ctx, `INSERT INTO sequence_counters (domain, base_code, last_value, updated_at)
VALUES ($1, $2, 1, NOW())
ON CONFLICT (domain, base_code)
DO UPDATE SET last_value = sequence_counters.last_value + 1, updated_at = NOW()
RETURNING last_value`, domain, baseCode).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Allocator reserves numbers in their own transaction, for callers that have
// no other writes to bundle with the allocation.
type Allocator struct {
	pool *pgxpool.Pool
}

// NewAllocator returns an Allocator backed by the given pool.
func NewAllocator(pool *pgxpool.Pool) *Allocator {
	return &Allocator{pool: pool}
}

// Allocate reserves and commits the next value for the pool.
func (a *Allocator) Allocate(ctx context.Context, domain, baseCode string) (int64, error) {
	var value int64
	err := db.WithTx(ctx, a.pool, func(tx pgx.Tx) error {
		v, err := Next(ctx, tx, domain, baseCode)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}
