package testutil

import (
	"context"
	"sync"

	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/postgres"
	"github.com/medbill/ledger/internal/types"
)

var _ postgres.IClient = (*InMemoryClient)(nil)

type txMarker struct{}

// InMemoryClient emulates transactions over in-memory stores. Top level transactions are
// serialized, which stands in for the row and advisory locks of the real database, and a
// failed transaction or savepoint restores every registered store.
type InMemoryClient struct {
	mu     sync.Mutex
	stores []Snapshotter
	logger *logger.Logger
}

func NewInMemoryClient(logger *logger.Logger, stores ...Snapshotter) *InMemoryClient {
	return &InMemoryClient{
		stores: stores,
		logger: logger,
	}
}

func (c *InMemoryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := ctx.Value(types.CtxDBTransaction).(txMarker); !ok {
		c.mu.Lock()
		defer c.mu.Unlock()
		ctx = context.WithValue(ctx, types.CtxDBTransaction, txMarker{})
	}

	restore := c.snapshot()
	defer func() {
		if r := recover(); r != nil {
			restore()
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		c.logger.Debugw("rolling back in-memory transaction", "error", err)
		restore()
		return err
	}
	return nil
}

func (c *InMemoryClient) snapshot() func() {
	restores := make([]func(), 0, len(c.stores))
	for _, s := range c.stores {
		restores = append(restores, s.Snapshot())
	}
	return func() {
		for _, r := range restores {
			r()
		}
	}
}
