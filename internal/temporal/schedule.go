package temporal

import (
	"context"
	"errors"
	"fmt"

	"github.com/medbill/ledger/internal/config"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/temporal/models"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// ChargesScheduler owns the nightly schedule of the recurring charge job
type ChargesScheduler struct {
	client *TemporalClient
	config *config.Configuration
	logger *logger.Logger
}

func NewChargesScheduler(client *TemporalClient, config *config.Configuration, logger *logger.Logger) *ChargesScheduler {
	return &ChargesScheduler{
		client: client,
		config: config,
		logger: logger,
	}
}

func (s *ChargesScheduler) spec() client.ScheduleSpec {
	return client.ScheduleSpec{
		CronExpressions: []string{s.config.Billing.ChargesCron},
		TimeZoneName:    s.config.Billing.Timezone,
	}
}

// EnsureDailySchedule creates the nightly schedule, or updates its cron when it already exists
func (s *ChargesScheduler) EnsureDailySchedule(ctx context.Context) error {
	if s.config.Billing.ChargesCron == "" {
		s.logger.Info("billing.charges_cron is empty, daily charges schedule not created")
		return nil
	}

	spec := s.spec()
	_, err := s.client.Client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:   models.DailyChargesScheduleID,
		Spec: spec,
		Action: &client.ScheduleWorkflowAction{
			ID:        models.DailyChargesWorkflowIDPrefix,
			Workflow:  models.DailyChargesWorkflowName,
			Args:      []interface{}{models.DailyChargesWorkflowInput{}},
			TaskQueue: s.config.Temporal.TaskQueue,
		},
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
	})
	if err == nil {
		s.logger.Infow("created daily charges schedule",
			"schedule_id", models.DailyChargesScheduleID,
			"cron", s.config.Billing.ChargesCron,
			"timezone", s.config.Billing.Timezone,
		)
		return nil
	}

	if !errors.Is(err, temporalsdk.ErrScheduleAlreadyRunning) {
		return ierr.WithError(err).
			WithHint("Failed to create the daily charges schedule").
			Mark(ierr.ErrSystem)
	}

	handle := s.client.Client.ScheduleClient().GetHandle(ctx, models.DailyChargesScheduleID)
	err = handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			schedule := input.Description.Schedule
			schedule.Spec = &spec
			return &client.ScheduleUpdate{Schedule: &schedule}, nil
		},
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update the daily charges schedule").
			Mark(ierr.ErrSystem)
	}

	s.logger.Infow("updated daily charges schedule",
		"schedule_id", models.DailyChargesScheduleID,
		"cron", s.config.Billing.ChargesCron,
	)
	return nil
}

// TriggerRun starts one charge run through the worker instead of in-process.
// Runs for the same day share a workflow id, so a second trigger joins the first.
func (s *ChargesScheduler) TriggerRun(ctx context.Context, asOf string) (client.WorkflowRun, error) {
	workflowID := fmt.Sprintf("%s-manual-%s", models.DailyChargesWorkflowIDPrefix, asOf)
	run, err := s.client.Client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                                       workflowID,
		TaskQueue:                                s.config.Temporal.TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: false,
	}, models.DailyChargesWorkflowName, models.DailyChargesWorkflowInput{AsOf: asOf})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to start the charge run for %s", asOf).
			Mark(ierr.ErrSystem)
	}

	s.logger.Infow("started charge run workflow",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"as_of", asOf,
	)
	return run, nil
}
