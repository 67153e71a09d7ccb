package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/posledger/internal/domain/ident"
)

// The counter never falls behind the largest numeric ID already stored, so
// rows inserted with explicit IDs are skipped rather than collided with.
const nextValueSQL = `INSERT INTO id_counters (entity, last_value) VALUES ($1, $2::bigint + 1)
	ON CONFLICT (entity) DO UPDATE SET last_value = GREATEST(id_counters.last_value, $2::bigint) + 1
	RETURNING last_value`

var floorSQL = map[string]string{
	ident.Product:  `SELECT COALESCE(MAX(id::bigint), 0) FROM products WHERE id ~ '^[0-9]{1,18}$'`,
	ident.Customer: `SELECT COALESCE(MAX(id::bigint), 0) FROM customers WHERE id ~ '^[0-9]{1,18}$'`,
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ ident.Sequence = (*Sequence)(nil)

// Sequence implements ident.Sequence with a counter row per entity. Each call
// commits on its own.
type Sequence struct {
	pool *pgxpool.Pool
}

// NewSequence returns a Sequence that uses the given pool.
func NewSequence(pool *pgxpool.Pool) *Sequence {
	return &Sequence{pool: pool}
}

// Next returns the next value for entity.
func (s *Sequence) Next(ctx context.Context, entity string) (int64, error) {
	return nextValue(ctx, s.pool, entity)
}

// nextValue increments the entity counter through q. Inside a transaction the
// counter row stays locked until commit, which serializes concurrent callers.
func nextValue(ctx context.Context, q querier, entity string) (int64, error) {
	var floor int64
	if query, ok := floorSQL[entity]; ok {
		if err := q.QueryRow(ctx, query).Scan(&floor); err != nil {
			return 0, errors.Wrapf(err, "scan %s ids", entity)
		}
	}

	var n int64
	if err := q.QueryRow(ctx, nextValueSQL, entity, floor).Scan(&n); err != nil {
		return 0, asConflict("next id", errors.Wrapf(err, "next %s id", entity))
	}
	return n, nil
}
