package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/medbill/ledger/internal/api/dto"
	"github.com/medbill/ledger/internal/config"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/postgres"
	"github.com/medbill/ledger/internal/publisher"
	repo "github.com/medbill/ledger/internal/repository/postgres"
	"github.com/medbill/ledger/internal/sentry"
	"github.com/medbill/ledger/internal/service"
	"github.com/medbill/ledger/internal/temporal"
	"github.com/medbill/ledger/internal/temporal/models"
	"github.com/medbill/ledger/internal/types"
	"go.uber.org/fx"
)

// Runs the recurring charge generator once, in-process or through the temporal worker.
func main() {
	asOfFlag := flag.String("as-of", "", "Calendar day to bill up to (YYYY-MM-DD). Defaults to today in the billing timezone")
	viaTemporal := flag.Bool("temporal", false, "Start the run on the temporal worker instead of in this process")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	req := dto.RunRecurringChargesRequest{AsOf: *asOfFlag}
	asOf, err := req.ParseAsOf(cfg.Billing.Location())
	if err != nil {
		log.Fatalf("Invalid -as-of: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	if *viaTemporal {
		os.Exit(runOnWorker(ctx, cfg, types.FormatDay(asOf)))
	}
	os.Exit(runInProcess(ctx, cfg, asOf))
}

func runInProcess(ctx context.Context, cfg *config.Configuration, asOf time.Time) int {
	var (
		log           *logger.Logger
		chargeService service.RecurringChargeService
	)

	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Provide(logger.NewLogger),
		sentry.Module(),
		postgres.Module(),
		repo.Module(),
		publisher.Module(),
		service.Module(),
		fx.Populate(&log, &chargeService),
	)
	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		return 1
	}
	defer app.Stop(context.Background())

	summary, err := chargeService.RunRecurringCharges(ctx, asOf)
	if err != nil {
		log.Errorw("recurring charges run failed", "error", err, "as_of", types.FormatDay(asOf))
		return 1
	}

	out, _ := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if summary.HasFatal() {
		return 2
	}
	return 0
}

func runOnWorker(ctx context.Context, cfg *config.Configuration, asOf string) int {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}

	client, err := temporal.NewTemporalClient(cfg, log)
	if err != nil {
		return 1
	}
	defer client.Close()

	if err := client.WaitForHealthy(ctx, 10*time.Second); err != nil {
		log.Errorw("temporal is not reachable", "error", err)
		return 1
	}

	run, err := temporal.NewChargesScheduler(client, cfg, log).TriggerRun(ctx, asOf)
	if err != nil {
		log.Errorw("failed to trigger charge run", "error", err)
		return 1
	}

	var result models.DailyChargesWorkflowResult
	if err := run.Get(ctx, &result); err != nil {
		log.Errorw("charge run failed", "error", err, "workflow_id", run.GetID())
		return 1
	}

	out, _ := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if result.Fatal {
		return 2
	}
	return 0
}
