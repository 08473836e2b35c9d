package temporal

import (
	"github.com/medbill/ledger/internal/temporal/activities"
	"github.com/medbill/ledger/internal/temporal/models"
	"github.com/medbill/ledger/internal/temporal/workflows"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// RegisterWorkflowsAndActivities registers the ledger workflows and activities under fixed names,
// so schedules created by older deployments keep resolving.
func RegisterWorkflowsAndActivities(r worker.Registry, charges *activities.ChargesActivities) {
	r.RegisterWorkflowWithOptions(workflows.DailyChargesWorkflow, workflow.RegisterOptions{
		Name: models.DailyChargesWorkflowName,
	})
	r.RegisterActivityWithOptions(charges.RunRecurringCharges, activity.RegisterOptions{
		Name: models.RunRecurringChargesActivityName,
	})
}
