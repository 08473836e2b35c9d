package postgres

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/medbill/ledger/internal/logger"
)

// SpanStarter is the part of the sentry service the client needs
type SpanStarter interface {
	StartDBSpan(ctx context.Context, operation string, params map[string]interface{}) (*sentry.Span, context.Context)
}

// SentryClient wraps the transactional client with sentry span tracking
type SentryClient struct {
	client IClient
	sentry SpanStarter
	logger *logger.Logger
}

func NewSentryClient(client IClient, sentry SpanStarter, logger *logger.Logger) IClient {
	return &SentryClient{
		client: client,
		sentry: sentry,
		logger: logger,
	}
}

// WithTx wraps the given function in a transaction with a sentry span around it
func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"operation": "transaction",
	})
	if span != nil {
		defer span.Finish()
	}

	return c.client.WithTx(spanCtx, fn)
}
