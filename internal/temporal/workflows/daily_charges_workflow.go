package workflows

import (
	"time"

	"github.com/medbill/ledger/internal/temporal/models"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// DailyChargesWorkflow runs the recurring charge job once. The schedule starts it every night;
// the job is idempotent, so a retried or overlapping run bills nothing twice.
func DailyChargesWorkflow(ctx workflow.Context, input models.DailyChargesWorkflowInput) (*models.DailyChargesWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting daily charges workflow", "asOf", input.AsOf)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Minute,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Minute,
			MaximumAttempts:    3,
		},
	})

	var result models.DailyChargesWorkflowResult
	if err := workflow.ExecuteActivity(ctx, models.RunRecurringChargesActivityName, input).Get(ctx, &result); err != nil {
		logger.Error("Daily charges run failed", "error", err)
		return nil, err
	}

	if result.Fatal {
		logger.Error("Daily charges run hit a ledger integrity failure", "runID", result.RunID, "failures", result.Failures)
	}

	logger.Info("Daily charges workflow completed",
		"runID", result.RunID,
		"asOf", result.AsOf,
		"itemsCreated", result.ItemsCreated,
		"failures", result.Failures,
	)
	return &result, nil
}
