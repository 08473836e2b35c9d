package postgres

import "go.uber.org/fx"

// Module provides every postgres-backed repository to the fx graph
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewInvoiceRepository,
			NewPaymentRepository,
			NewChargeRepository,
			NewCatalogRepository,
			NewSubjectResolver,
			NewStaySource,
		),
	)
}
