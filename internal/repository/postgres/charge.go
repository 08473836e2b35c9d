package postgres

import (
	"context"
	"time"

	"github.com/medbill/ledger/internal/domain/charge"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/postgres"
	"github.com/medbill/ledger/internal/types"
)

type chargeRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewChargeRepository(db *postgres.DB, logger *logger.Logger) charge.Repository {
	return &chargeRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the link. The conflict is absorbed so the surrounding transaction stays usable.
func (r *chargeRepository) Create(ctx context.Context, link *charge.RecurringChargeLink) error {
	query := `
		INSERT INTO recurring_charge_links (
			id, stay_kind, stay_id, service_id, day, invoice_item_id,
			status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :stay_kind, :stay_id, :service_id, :day, :invoice_item_id,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)
		ON CONFLICT (stay_kind, stay_id, service_id, day) DO NOTHING`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, link)
	if err != nil {
		return postgres.WrapError(err, "failed to create recurring charge link")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return postgres.WrapError(err, "failed to create recurring charge link")
	}
	if affected == 0 {
		return ierr.NewError("day already billed").
			WithHint("This service was already billed for the stay on that day").
			WithReportableDetails(map[string]any{
				"stay_id":    link.StayID,
				"service_id": link.ServiceID,
				"day":        types.FormatDay(link.Day),
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (r *chargeRepository) ListDays(ctx context.Context, kind types.StayKind, stayID, serviceID string) ([]time.Time, error) {
	query := `
		SELECT day
		FROM recurring_charge_links
		WHERE stay_kind = $1 AND stay_id = $2 AND service_id = $3 AND status = $4
		ORDER BY day ASC`

	var days []time.Time
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &days, query, kind, stayID, serviceID, types.StatusPublished); err != nil {
		return nil, postgres.WrapError(err, "failed to list billed days")
	}
	return days, nil
}
