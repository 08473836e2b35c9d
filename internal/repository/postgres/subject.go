package postgres

import (
	"context"
	"fmt"

	"github.com/medbill/ledger/internal/domain/subject"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/postgres"
	"github.com/medbill/ledger/internal/types"
)

// subjectResolver reads the registration module's visit and deceased records
type subjectResolver struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubjectResolver(db *postgres.DB, logger *logger.Logger) subject.Resolver {
	return &subjectResolver{
		db:     db,
		logger: logger,
	}
}

func (r *subjectResolver) ResolveVisit(ctx context.Context, visitID string) (types.Subject, error) {
	var patientID string
	query := `SELECT patient_id FROM visits WHERE id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &patientID, query, visitID); err != nil {
		return types.Subject{}, postgres.WrapError(err, fmt.Sprintf("failed to resolve visit %s", visitID))
	}
	return types.Subject{PatientID: patientID, VisitID: visitID}, nil
}

func (r *subjectResolver) ResolveDeceased(ctx context.Context, deceasedID string) (types.Subject, error) {
	var id string
	query := `SELECT id FROM deceased WHERE id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &id, query, deceasedID); err != nil {
		return types.Subject{}, postgres.WrapError(err, fmt.Sprintf("failed to resolve deceased %s", deceasedID))
	}
	return types.Subject{DeceasedID: id}, nil
}
