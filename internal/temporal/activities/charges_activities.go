package activities

import (
	"context"

	"github.com/medbill/ledger/internal/api/dto"
	"github.com/medbill/ledger/internal/config"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/pyroscope"
	"github.com/medbill/ledger/internal/service"
	"github.com/medbill/ledger/internal/temporal/models"
	"github.com/medbill/ledger/internal/types"
	"go.temporal.io/sdk/activity"
)

// ChargesActivities runs the recurring charge job inside a Temporal worker
type ChargesActivities struct {
	chargeService service.RecurringChargeService
	config        *config.Configuration
	pyroscope     *pyroscope.Service
	logger        *logger.Logger
}

func NewChargesActivities(
	chargeService service.RecurringChargeService,
	config *config.Configuration,
	pyroscope *pyroscope.Service,
	logger *logger.Logger,
) *ChargesActivities {
	return &ChargesActivities{
		chargeService: chargeService,
		config:        config,
		pyroscope:     pyroscope,
		logger:        logger,
	}
}

// RunRecurringCharges bills every active stay through the requested day.
// Per-stay failures are part of the result; only a failure to run at all is returned as an error.
func (a *ChargesActivities) RunRecurringCharges(ctx context.Context, input models.DailyChargesWorkflowInput) (*models.DailyChargesWorkflowResult, error) {
	req := &dto.RunRecurringChargesRequest{AsOf: input.AsOf}
	asOf, err := req.ParseAsOf(a.config.Billing.Location())
	if err != nil {
		return nil, err
	}

	info := activity.GetInfo(ctx)
	a.logger.Infow("running recurring charges activity",
		"workflow_id", info.WorkflowExecution.ID,
		"attempt", info.Attempt,
		"as_of", types.FormatDay(asOf),
	)

	var summary *dto.RunSummary
	a.pyroscope.TagWrapper(ctx, map[string]string{"job": "recurring_charges"}, func(ctx context.Context) {
		summary, err = a.chargeService.RunRecurringCharges(ctx, asOf)
	})
	if err != nil {
		return nil, err
	}

	return &models.DailyChargesWorkflowResult{
		RunID:          summary.RunID,
		AsOf:           summary.AsOf,
		StaysProcessed: summary.StaysProcessed,
		ItemsCreated:   summary.ItemsCreated,
		AlreadyBilled:  summary.AlreadyBilled,
		Skipped:        len(summary.Skipped),
		Failures:       len(summary.Failures),
		Fatal:          summary.HasFatal(),
		FinishedAt:     summary.FinishedAt,
	}, nil
}
