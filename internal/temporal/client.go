package temporal

import (
	"context"
	"time"

	"github.com/medbill/ledger/internal/config"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/logger"
	"go.temporal.io/sdk/client"
)

// TemporalClient wraps the Temporal SDK client for application use.
type TemporalClient struct {
	Client client.Client
}

// NewTemporalClient dials the Temporal frontend configured under temporal.*
func NewTemporalClient(cfg *config.Configuration, log *logger.Logger) (*TemporalClient, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    log.GetTemporalLogger(),
	})
	if err != nil {
		log.Errorw("failed to create temporal client", "error", err, "address", cfg.Temporal.Address)
		return nil, err
	}

	log.Infow("temporal client created",
		"address", cfg.Temporal.Address,
		"namespace", cfg.Temporal.Namespace,
	)
	return &TemporalClient{Client: c}, nil
}

// Close releases the underlying connection
func (c *TemporalClient) Close() {
	if c != nil && c.Client != nil {
		c.Client.Close()
	}
}

// IsHealthy asks the frontend for its health status
func (c *TemporalClient) IsHealthy(ctx context.Context) bool {
	_, err := c.Client.CheckHealth(ctx, &client.CheckHealthRequest{})
	return err == nil
}

// WaitForHealthy polls the frontend until it answers or the timeout elapses
func (c *TemporalClient) WaitForHealthy(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ierr.WithError(ctx.Err()).
				WithHint("Timed out waiting for temporal to become healthy").
				Mark(ierr.ErrSystem)
		case <-ticker.C:
			if c.IsHealthy(ctx) {
				return nil
			}
		}
	}
}
