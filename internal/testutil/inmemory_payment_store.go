package testutil

import (
	"context"

	"github.com/medbill/ledger/internal/domain/payment"
	"github.com/medbill/ledger/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var _ payment.Repository = (*InMemoryPaymentStore)(nil)

type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
	}
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	cp := *p
	return s.InMemoryStore.Create(ctx, p.ID, &cp)
}

func (s *InMemoryPaymentStore) List(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	payments, err := s.InMemoryStore.List(ctx, invoiceID, func(_ context.Context, p *payment.Payment, filter interface{}) bool {
		return p.InvoiceID == filter.(string) && p.Status == types.StatusPublished
	}, func(a, b *payment.Payment) bool {
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		return a.ID < b.ID
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(payments, func(p *payment.Payment, _ int) *payment.Payment {
		cp := *p
		return &cp
	}), nil
}

func (s *InMemoryPaymentStore) Sum(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	payments, err := s.List(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	return payment.Sum(payments), nil
}
