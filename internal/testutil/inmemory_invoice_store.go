package testutil

import (
	"context"
	"time"

	"github.com/medbill/ledger/internal/domain/invoice"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/samber/lo"
)

var _ invoice.Repository = (*InMemoryInvoiceStore)(nil)

// InMemoryInvoiceStore implements invoice.Repository. Records are copied on the way in and out.
type InMemoryInvoiceStore struct {
	invoices *InMemoryStore[*invoice.Invoice]
	items    *InMemoryStore[*invoice.InvoiceItem]

	// FailCreateItem, when set, is consulted before an item is stored and its error returned
	FailCreateItem func(item *invoice.InvoiceItem) error
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		invoices: NewInMemoryStore[*invoice.Invoice](),
		items:    NewInMemoryStore[*invoice.InvoiceItem](),
	}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	return &cp
}

func copyItem(item *invoice.InvoiceItem) *invoice.InvoiceItem {
	cp := *item
	return &cp
}

func invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	f, ok := filter.(*invoice.Filter)
	if !ok || f == nil {
		return inv.Status == types.StatusPublished
	}

	if inv.Status != types.StatusPublished {
		return false
	}
	if f.PatientID != "" && inv.PatientID != f.PatientID {
		return false
	}
	if f.DeceasedID != "" && inv.DeceasedID != f.DeceasedID {
		return false
	}
	if f.VisitID != "" && inv.VisitID != f.VisitID {
		return false
	}
	if f.SubjectKey != "" && inv.SubjectKey != f.SubjectKey {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, inv.InvoiceStatus) {
		return false
	}
	if f.ExcludeCancelled && inv.IsCancelled() {
		return false
	}
	return true
}

func newestFirst(a, b *invoice.Invoice) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if !inv.IsCancelled() {
		live, err := s.invoices.Count(ctx, &invoice.Filter{SubjectKey: inv.SubjectKey, ExcludeCancelled: true}, invoiceFilterFn)
		if err != nil {
			return err
		}
		if live > 0 {
			return ierr.NewError("live invoice already exists for subject").
				WithHint("The subject already has an open invoice").
				WithReportableDetails(map[string]any{"subject_key": inv.SubjectKey}).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	return s.invoices.Create(ctx, inv.ID, copyInvoice(inv))
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.invoices.Get(ctx, id)
	if err != nil || inv.Status != types.StatusPublished {
		return nil, ierr.NewError("invoice not found").
			WithHintf("Invoice %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) LockSubject(ctx context.Context, subjectKey string) error {
	if _, ok := ctx.Value(types.CtxDBTransaction).(txMarker); !ok {
		return ierr.NewError("subject lock requires a transaction").
			Mark(ierr.ErrSystem)
	}
	return nil
}

func (s *InMemoryInvoiceStore) GetLiveBySubjectKey(ctx context.Context, subjectKey string) (*invoice.Invoice, error) {
	live, err := s.invoices.List(ctx, &invoice.Filter{SubjectKey: subjectKey, ExcludeCancelled: true}, invoiceFilterFn, newestFirst)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, ierr.NewError("no live invoice for subject").
			WithHintf("No open invoice for %s", subjectKey).
			Mark(ierr.ErrNotFound)
	}
	return copyInvoice(live[0]), nil
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *invoice.Filter) ([]*invoice.Invoice, error) {
	invoices, err := s.invoices.List(ctx, filter, invoiceFilterFn, newestFirst)
	if err != nil {
		return nil, err
	}
	return lo.Map(invoices, func(inv *invoice.Invoice, _ int) *invoice.Invoice {
		return copyInvoice(inv)
	}), nil
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	stored, err := s.invoices.Get(ctx, inv.ID)
	if err != nil {
		return err
	}
	if stored.Version != inv.Version {
		return ierr.NewError("invoice changed since it was read").
			WithHint("The invoice was modified concurrently, please retry").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"version":    inv.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	inv.UpdatedAt = time.Now().UTC()
	inv.UpdatedBy = types.GetUserID(ctx)
	inv.Version++
	if err := s.invoices.Update(ctx, inv.ID, copyInvoice(inv)); err != nil {
		inv.Version--
		return err
	}
	return nil
}

func (s *InMemoryInvoiceStore) CreateItem(ctx context.Context, item *invoice.InvoiceItem) error {
	if s.FailCreateItem != nil {
		if err := s.FailCreateItem(item); err != nil {
			return err
		}
	}
	return s.items.Create(ctx, item.ID, copyItem(item))
}

func (s *InMemoryInvoiceStore) GetItem(ctx context.Context, id string) (*invoice.InvoiceItem, error) {
	item, err := s.items.Get(ctx, id)
	if err != nil || item.Status != types.StatusPublished {
		return nil, ierr.NewError("invoice item not found").
			WithHintf("Invoice item %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return copyItem(item), nil
}

func (s *InMemoryInvoiceStore) ListItems(ctx context.Context, invoiceID string) ([]*invoice.InvoiceItem, error) {
	items, err := s.items.List(ctx, invoiceID, func(_ context.Context, item *invoice.InvoiceItem, filter interface{}) bool {
		return item.InvoiceID == filter.(string) && item.Status == types.StatusPublished
	}, nil)
	if err != nil {
		return nil, err
	}

	out := lo.Map(items, func(item *invoice.InvoiceItem, _ int) *invoice.InvoiceItem {
		return copyItem(item)
	})
	invoice.SortFIFO(out)
	return out, nil
}

func (s *InMemoryInvoiceStore) DeleteItem(ctx context.Context, item *invoice.InvoiceItem) error {
	stored, err := s.items.Get(ctx, item.ID)
	if err != nil {
		return err
	}
	deleted := copyItem(stored)
	deleted.Status = types.StatusDeleted
	deleted.UpdatedAt = time.Now().UTC()
	deleted.UpdatedBy = types.GetUserID(ctx)
	return s.items.Update(ctx, item.ID, deleted)
}

func (s *InMemoryInvoiceStore) BulkSetItemPaid(ctx context.Context, allocations []invoice.Allocation) error {
	for _, a := range allocations {
		stored, err := s.items.Get(ctx, a.ItemID)
		if err != nil {
			return err
		}
		if a.PaidAmount.IsNegative() || a.PaidAmount.GreaterThan(stored.Amount) {
			return ierr.NewError("paid amount outside item amount").
				WithReportableDetails(map[string]any{
					"item_id":     a.ItemID,
					"paid_amount": a.PaidAmount.String(),
					"amount":      stored.Amount.String(),
				}).
				Mark(ierr.ErrDatabase)
		}
		updated := copyItem(stored)
		updated.PaidAmount = a.PaidAmount
		updated.UpdatedAt = time.Now().UTC()
		if err := s.items.Update(ctx, a.ItemID, updated); err != nil {
			return err
		}
	}
	return nil
}

// AllItems returns every item of an invoice including soft deleted ones
func (s *InMemoryInvoiceStore) AllItems(ctx context.Context, invoiceID string) []*invoice.InvoiceItem {
	items, _ := s.items.List(ctx, invoiceID, func(_ context.Context, item *invoice.InvoiceItem, filter interface{}) bool {
		return item.InvoiceID == filter.(string)
	}, nil)
	return items
}

func (s *InMemoryInvoiceStore) Snapshot() func() {
	restoreInvoices := s.invoices.Snapshot()
	restoreItems := s.items.Snapshot()
	return func() {
		restoreInvoices()
		restoreItems()
	}
}

func (s *InMemoryInvoiceStore) Clear() {
	s.invoices.Clear()
	s.items.Clear()
}
