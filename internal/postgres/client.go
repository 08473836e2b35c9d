package postgres

import (
	"context"

	"github.com/medbill/ledger/internal/sentry"
	"go.uber.org/fx"
)

// IClient is the transactional boundary the services depend on
type IClient interface {
	// WithTx runs fn in a transaction. Nested calls open a savepoint on the outer transaction.
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

// Module provides the database and the monitored client to the fx graph
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
	)
}

// NewClient exposes DB through IClient, instrumented with sentry spans
func NewClient(db *DB, sentrySvc *sentry.Service) IClient {
	return NewSentryClient(db, sentrySvc, db.logger)
}
