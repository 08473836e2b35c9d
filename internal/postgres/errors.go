package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	ierr "github.com/medbill/ledger/internal/errors"
)

// SQLSTATE codes the ledger reacts to
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// WrapError marks a driver error with the ledger sentinel it corresponds to.
// Unique violations become ErrAlreadyExists and concurrency aborts become ErrVersionConflict.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithMessage(msg).
			WithHint("The requested record was not found").
			Mark(ierr.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation:
			return ierr.WithError(err).
				WithMessage(msg).
				WithHint("The record already exists").
				WithReportableDetails(map[string]any{
					"constraint": pqErr.Constraint,
				}).
				Mark(ierr.ErrAlreadyExists)
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return ierr.WithError(err).
				WithMessage(msg).
				WithHint("The invoice was modified concurrently, please retry").
				Mark(ierr.ErrVersionConflict)
		}
	}

	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("A database error occurred").
		Mark(ierr.ErrDatabase)
}
