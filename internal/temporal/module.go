package temporal

import (
	"context"

	"github.com/medbill/ledger/internal/temporal/activities"
	"go.uber.org/fx"
)

// Module provides the Temporal client, the charge activities, the worker and the scheduler
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewTemporalClient,
			activities.NewChargesActivities,
			NewWorker,
			NewChargesScheduler,
		),
	)
}

// RegisterWorker starts the worker with the application and makes sure the nightly schedule exists.
// Hooks stop in reverse order, so the client closes after the worker has drained.
func RegisterWorker(lc fx.Lifecycle, client *TemporalClient, w *Worker, scheduler *ChargesScheduler) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			client.Close()
			return nil
		},
	})
	w.RegisterWithLifecycle(lc)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.EnsureDailySchedule(ctx)
		},
	})
}
