package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/medbill/ledger/internal/domain/charge"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/samber/lo"
)

var _ charge.Repository = (*InMemoryChargeStore)(nil)

// InMemoryChargeStore keys links by their unique tuple, mirroring the database constraint
type InMemoryChargeStore struct {
	*InMemoryStore[*charge.RecurringChargeLink]
}

func NewInMemoryChargeStore() *InMemoryChargeStore {
	return &InMemoryChargeStore{
		InMemoryStore: NewInMemoryStore[*charge.RecurringChargeLink](),
	}
}

func linkKey(kind types.StayKind, stayID, serviceID string, day time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s", kind, stayID, serviceID, types.FormatDay(day))
}

func (s *InMemoryChargeStore) Create(ctx context.Context, link *charge.RecurringChargeLink) error {
	cp := *link
	err := s.InMemoryStore.Create(ctx, linkKey(link.StayKind, link.StayID, link.ServiceID, link.Day), &cp)
	if ierr.IsAlreadyExists(err) {
		return ierr.WithError(err).
			WithHint("Charge already recorded for this day").
			WithReportableDetails(map[string]any{
				"stay_id":    link.StayID,
				"service_id": link.ServiceID,
				"day":        types.FormatDay(link.Day),
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return err
}

func (s *InMemoryChargeStore) ListDays(ctx context.Context, kind types.StayKind, stayID, serviceID string) ([]time.Time, error) {
	links, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, l *charge.RecurringChargeLink, _ interface{}) bool {
		return l.StayKind == kind && l.StayID == stayID && l.ServiceID == serviceID
	}, func(a, b *charge.RecurringChargeLink) bool {
		return a.Day.Before(b.Day)
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(links, func(l *charge.RecurringChargeLink, _ int) time.Time {
		return l.Day
	}), nil
}

// Links returns every link of a stay, oldest day first
func (s *InMemoryChargeStore) Links(ctx context.Context, stayID string) []*charge.RecurringChargeLink {
	links, _ := s.InMemoryStore.List(ctx, nil, func(_ context.Context, l *charge.RecurringChargeLink, _ interface{}) bool {
		return l.StayID == stayID
	}, func(a, b *charge.RecurringChargeLink) bool {
		return a.Day.Before(b.Day)
	})
	return links
}
