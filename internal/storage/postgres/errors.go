package postgres

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/posledger/internal/domain/failure"
)

// SQLSTATE codes reported as failure.Conflict.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
)

// asConflict maps lost races and constraint guards to failure.ConflictError.
// Errors already classified by the domain are returned unchanged.
func asConflict(op string, err error) error {
	if err == nil || failure.KindOf(err) != "" {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation, codeCheckViolation:
		return &failure.ConflictError{Op: op, Err: err}
	default:
		return err
	}
}
