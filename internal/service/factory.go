package service

import (
	"github.com/medbill/ledger/internal/cache"
	"github.com/medbill/ledger/internal/config"
	"github.com/medbill/ledger/internal/domain/catalog"
	"github.com/medbill/ledger/internal/domain/charge"
	"github.com/medbill/ledger/internal/domain/invoice"
	"github.com/medbill/ledger/internal/domain/payment"
	"github.com/medbill/ledger/internal/domain/subject"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/postgres"
	"github.com/medbill/ledger/internal/publisher"
	"github.com/medbill/ledger/internal/sentry"
	"go.uber.org/fx"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	InvoiceRepo     invoice.Repository
	PaymentRepo     payment.Repository
	ChargeRepo      charge.Repository
	CatalogRepo     catalog.Repository
	SubjectResolver subject.Resolver
	StaySource      charge.StaySource

	Cache          cache.Cache
	EventPublisher publisher.EventPublisher
	Sentry         *sentry.Service
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	invoiceRepo invoice.Repository,
	paymentRepo payment.Repository,
	chargeRepo charge.Repository,
	catalogRepo catalog.Repository,
	subjectResolver subject.Resolver,
	staySource charge.StaySource,
	cache cache.Cache,
	eventPublisher publisher.EventPublisher,
	sentry *sentry.Service,
) ServiceParams {
	return ServiceParams{
		Logger:          logger,
		Config:          config,
		DB:              db,
		InvoiceRepo:     invoiceRepo,
		PaymentRepo:     paymentRepo,
		ChargeRepo:      chargeRepo,
		CatalogRepo:     catalogRepo,
		SubjectResolver: subjectResolver,
		StaySource:      staySource,
		Cache:           cache,
		EventPublisher:  eventPublisher,
		Sentry:          sentry,
	}
}

// Module provides the ledger services to the fx graph
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			cache.NewInMemoryCache,
			NewServiceParams,
			NewInvoiceService,
			NewPaymentService,
			NewDailyServiceResolver,
			NewRecurringChargeService,
			NewTransferService,
		),
	)
}
