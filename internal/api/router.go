package api

import (
	"github.com/gin-gonic/gin"
	"github.com/medbill/ledger/internal/api/cron"
	v1 "github.com/medbill/ledger/internal/api/v1"
	"github.com/medbill/ledger/internal/config"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/pyroscope"
	"github.com/medbill/ledger/internal/rest/middleware"
	"github.com/medbill/ledger/internal/types"
)

type Handlers struct {
	Health   *v1.HealthHandler
	Invoice  *v1.InvoiceHandler
	Payment  *v1.PaymentHandler
	Transfer *v1.TransferHandler

	// Cron jobs
	Charges *cron.ChargesCronHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, pyroscopeSvc *pyroscope.Service) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.UserIDMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.PyroscopeMiddleware(pyroscopeSvc),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1")
	{
		invoices := v1Group.Group("/invoices")
		{
			invoices.POST("", handlers.Invoice.GetOrCreateInvoice)
			invoices.GET("", handlers.Invoice.ListInvoices)
			// must come before /:id
			invoices.GET("/outstanding", handlers.Invoice.ListOutstandingItems)
			invoices.DELETE("/items/:item_id", handlers.Invoice.DeleteItem)

			invoices.GET("/:id", handlers.Invoice.GetInvoice)
			invoices.POST("/:id/items", handlers.Invoice.AddItem)
			invoices.POST("/:id/cancel", handlers.Invoice.CancelInvoice)
			invoices.POST("/:id/distribute", handlers.Invoice.DistributePayments)

			invoices.POST("/:id/payments", handlers.Payment.RecordPayment)
			invoices.GET("/:id/payments", handlers.Payment.ListPayments)
			invoices.POST("/:id/adjustments", handlers.Payment.ApplyInsuranceAdjustment)
			invoices.POST("/:id/claims", handlers.Payment.RecordClaimPayment)
		}

		v1Group.GET("/clearance", handlers.Invoice.CheckBillingClearance)
		v1Group.POST("/transfers", handlers.Transfer.TransferInvoice)

		cronGroup := v1Group.Group("/cron")
		{
			cronGroup.POST("/recurring-charges", handlers.Charges.RunRecurringCharges)
		}
	}

	return router
}
