package testutil

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/medbill/ledger/internal/domain/catalog"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/shopspring/decimal"
)

var _ catalog.Repository = (*InMemoryCatalogStore)(nil)

type InMemoryCatalogStore struct {
	services  *InMemoryStore[*catalog.Service]
	inventory *InMemoryStore[*catalog.InventoryItem]
	// lookups counts FindService calls so tests can observe caching
	lookups atomic.Int64
}

func NewInMemoryCatalogStore() *InMemoryCatalogStore {
	return &InMemoryCatalogStore{
		services:  NewInMemoryStore[*catalog.Service](),
		inventory: NewInMemoryStore[*catalog.InventoryItem](),
	}
}

// AddService seeds a catalog service
func (s *InMemoryCatalogStore) AddService(id, name, department string, price decimal.Decimal) *catalog.Service {
	svc := &catalog.Service{ID: id, Name: name, Department: department, Price: price}
	_ = s.services.Create(context.Background(), id, svc)
	return svc
}

// AddInventoryItem seeds an inventory item
func (s *InMemoryCatalogStore) AddInventoryItem(id, name string, sellingPrice decimal.Decimal) *catalog.InventoryItem {
	item := &catalog.InventoryItem{ID: id, Name: name, SellingPrice: sellingPrice}
	_ = s.inventory.Create(context.Background(), id, item)
	return item
}

func (s *InMemoryCatalogStore) GetService(ctx context.Context, id string) (*catalog.Service, error) {
	return s.services.Get(ctx, id)
}

func (s *InMemoryCatalogStore) GetInventoryItem(ctx context.Context, id string) (*catalog.InventoryItem, error) {
	return s.inventory.Get(ctx, id)
}

func (s *InMemoryCatalogStore) FindService(ctx context.Context, department, nameContains string) (*catalog.Service, error) {
	s.lookups.Add(1)
	matches, err := s.services.List(ctx, nil, func(_ context.Context, svc *catalog.Service, _ interface{}) bool {
		return strings.EqualFold(svc.Department, department) &&
			strings.Contains(strings.ToLower(svc.Name), strings.ToLower(nameContains))
	}, func(a, b *catalog.Service) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ierr.NewError("service not found").
			WithHintf("No %s service matching %q", department, nameContains).
			Mark(ierr.ErrNotFound)
	}
	return matches[0], nil
}

// Lookups reports how many FindService calls reached the store
func (s *InMemoryCatalogStore) Lookups() int {
	return int(s.lookups.Load())
}

func (s *InMemoryCatalogStore) Clear() {
	s.services.Clear()
	s.inventory.Clear()
	s.lookups.Store(0)
}
