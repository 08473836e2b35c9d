package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for payment persistence operations
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	// List returns an invoice's payments, oldest first
	List(ctx context.Context, invoiceID string) ([]*Payment, error)
	// Sum is the total of an invoice's payments, zero when there are none
	Sum(ctx context.Context, invoiceID string) (decimal.Decimal, error)
}
