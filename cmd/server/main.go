package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medbill/ledger/internal/api"
	"github.com/medbill/ledger/internal/api/cron"
	v1 "github.com/medbill/ledger/internal/api/v1"
	"github.com/medbill/ledger/internal/config"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/postgres"
	"github.com/medbill/ledger/internal/publisher"
	"github.com/medbill/ledger/internal/pyroscope"
	repo "github.com/medbill/ledger/internal/repository/postgres"
	"github.com/medbill/ledger/internal/sentry"
	"github.com/medbill/ledger/internal/service"
	"github.com/medbill/ledger/internal/temporal"
	"github.com/medbill/ledger/internal/types"
	"github.com/medbill/ledger/internal/validator"
	"go.uber.org/fx"
)

// @title Hospital Billing Ledger API
// @version 1.0
// @description Invoices, payments and recurring charges for patient and mortuary stays
// @BasePath /v1
// @schemes http https

func init() {
	// Stored timestamps are UTC; calendar days use billing.timezone explicitly
	time.Local = time.UTC
}

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		logger.L.Fatalw("failed to load config", "error", err)
	}

	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Supply(cfg),
		fx.Provide(
			validator.NewValidator,
			logger.NewLogger,
		),
		sentry.Module(),
		pyroscope.Module(),
		postgres.Module(),
		repo.Module(),
		publisher.Module(),
		service.Module(),
	)

	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		opts = append(opts, apiOptions(), temporal.Module(), fx.Invoke(temporal.RegisterWorker))
	case types.ModeAPI:
		opts = append(opts, apiOptions())
	case types.ModeWorker:
		opts = append(opts, temporal.Module(), fx.Invoke(temporal.RegisterWorker))
	default:
		logger.L.Fatalf("Unknown deployment mode: %s", mode)
	}

	app := fx.New(opts...)
	app.Run()
}

func apiOptions() fx.Option {
	return fx.Options(
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startAPIServer),
	)
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	db *postgres.DB,
	invoiceService service.InvoiceService,
	paymentService service.PaymentService,
	transferService service.TransferService,
	chargeService service.RecurringChargeService,
) api.Handlers {
	return api.Handlers{
		Health:   v1.NewHealthHandler(db, logger),
		Invoice:  v1.NewInvoiceHandler(invoiceService, logger),
		Payment:  v1.NewPaymentHandler(paymentService, logger),
		Transfer: v1.NewTransferHandler(transferService, logger),
		Charges:  cron.NewChargesCronHandler(logger, cfg, chargeService),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger, pyroscopeSvc *pyroscope.Service) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, pyroscopeSvc)
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}
