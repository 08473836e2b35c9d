package postgres

import (
	"context"
	"time"

	"github.com/medbill/ledger/internal/domain/charge"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/postgres"
	"github.com/medbill/ledger/internal/types"
)

// staySource derives active stays from the admission and mortuary tables on every call
type staySource struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewStaySource(db *postgres.DB, logger *logger.Logger) charge.StaySource {
	return &staySource{
		db:     db,
		logger: logger,
	}
}

type stayRow struct {
	ID         string    `db:"id"`
	PatientID  string    `db:"patient_id"`
	VisitID    string    `db:"visit_id"`
	DeceasedID string    `db:"deceased_id"`
	WardType   string    `db:"ward_type"`
	WardName   string    `db:"ward_name"`
	StartedAt  time.Time `db:"started_at"`
}

func (r *staySource) ListActiveStays(ctx context.Context) ([]*charge.Stay, error) {
	inpatientQuery := `
		SELECT a.id, a.patient_id, a.visit_id, '' AS deceased_id,
			COALESCE(a.ward_type, '') AS ward_type, COALESCE(a.ward_name, '') AS ward_name,
			a.admitted_at AS started_at
		FROM admissions a
		WHERE a.admission_status = 'IN_PROGRESS'
		ORDER BY a.admitted_at ASC, a.id ASC`

	// earliest morgue admission, else the time the body was registered
	mortuaryQuery := `
		SELECT d.id, '' AS patient_id, '' AS visit_id, d.id AS deceased_id,
			'' AS ward_type, '' AS ward_name,
			COALESCE(MIN(ma.admitted_at), d.registered_at) AS started_at
		FROM deceased d
		LEFT JOIN morgue_admissions ma ON ma.deceased_id = d.id
		WHERE d.is_released = FALSE
		GROUP BY d.id, d.registered_at
		ORDER BY started_at ASC, d.id ASC`

	q := r.db.GetQuerier(ctx)

	var inpatient []stayRow
	if err := q.SelectContext(ctx, &inpatient, inpatientQuery); err != nil {
		return nil, postgres.WrapError(err, "failed to list active admissions")
	}

	var mortuary []stayRow
	if err := q.SelectContext(ctx, &mortuary, mortuaryQuery); err != nil {
		return nil, postgres.WrapError(err, "failed to list unreleased mortuary cases")
	}

	stays := make([]*charge.Stay, 0, len(inpatient)+len(mortuary))
	for _, row := range inpatient {
		stays = append(stays, &charge.Stay{
			ID:        row.ID,
			Kind:      types.StayKindInpatient,
			Subject:   types.Subject{PatientID: row.PatientID, VisitID: row.VisitID},
			WardType:  types.WardType(row.WardType),
			WardName:  row.WardName,
			StartedAt: row.StartedAt,
		})
	}
	for _, row := range mortuary {
		stays = append(stays, &charge.Stay{
			ID:        row.ID,
			Kind:      types.StayKindMortuary,
			Subject:   types.Subject{DeceasedID: row.DeceasedID},
			StartedAt: row.StartedAt,
		})
	}

	r.logger.Debugw("listed active stays",
		"inpatient", len(inpatient),
		"mortuary", len(mortuary),
	)
	return stays, nil
}
