package service

import (
	"context"

	"github.com/medbill/ledger/internal/api/dto"
	"github.com/medbill/ledger/internal/domain/invoice"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/publisher"
	"github.com/medbill/ledger/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InvoiceService is the billing surface other hospital modules call
type InvoiceService interface {
	// GetOrCreateInvoice returns the subject's live invoice, opening one when there is none
	GetOrCreateInvoice(ctx context.Context, req *dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, req *dto.ListInvoicesRequest) (*dto.ListInvoicesResponse, error)
	AddItem(ctx context.Context, invoiceID string, req *dto.AddItemRequest) (*dto.InvoiceResponse, error)
	DeleteItem(ctx context.Context, itemID string) (*dto.InvoiceResponse, error)
	// DistributePayments re-runs FIFO distribution and recompute. Running it twice changes nothing.
	DistributePayments(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error)
	CancelInvoice(ctx context.Context, invoiceID string, req *dto.CancelInvoiceRequest) (*dto.InvoiceResponse, error)
	ListOutstandingItems(ctx context.Context, req *dto.ListInvoicesRequest) (*dto.ListOutstandingItemsResponse, error)
	// CheckBillingClearance reports whether the subject owes nothing on any live invoice
	CheckBillingClearance(ctx context.Context, req *dto.ListInvoicesRequest) (*dto.ClearanceResponse, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
	}
}

func (s *invoiceService) GetOrCreateInvoice(ctx context.Context, req *dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		inv     *invoice.Invoice
		items   []*invoice.InvoiceItem
		created bool
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, created, err = getOrCreateLiveInvoice(ctx, s.ServiceParams, req.ToSubject())
		if err != nil {
			return err
		}
		items, err = s.InvoiceRepo.ListItems(ctx, inv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		publishEvents(ctx, s.ServiceParams, []*publisher.LedgerEvent{
			publisher.NewLedgerEvent(types.EventInvoiceUpdated, inv.ID, inv.SubjectKey, decimal.Zero).
				With("status", inv.InvoiceStatus),
		})
	}

	return dto.NewInvoiceResponse(inv, items), nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if id == "" {
		return nil, ierr.NewError("invoice_id is required").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation)
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.InvoiceRepo.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}

	return dto.NewInvoiceResponse(inv, items), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, req *dto.ListInvoicesRequest) (*dto.ListInvoicesResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, req.ToFilter())
	if err != nil {
		return nil, err
	}

	resp := &dto.ListInvoicesResponse{
		Items: make([]*dto.InvoiceResponse, 0, len(invoices)),
		Total: len(invoices),
	}
	for _, inv := range invoices {
		resp.Items = append(resp.Items, dto.NewInvoiceResponse(inv, nil))
	}
	return resp, nil
}

func (s *invoiceService) AddItem(ctx context.Context, invoiceID string, req *dto.AddItemRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params, err := s.priceItem(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		inv    *invoice.Invoice
		items  []*invoice.InvoiceItem
		before types.InvoiceStatus
	)
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = lockInvoice(ctx, s.ServiceParams, invoiceID)
		if err != nil {
			return err
		}
		before = inv.InvoiceStatus

		item, err := addItem(ctx, s.ServiceParams, inv, params)
		if err != nil {
			return err
		}

		items, err = reconcile(ctx, s.ServiceParams, inv)
		if err != nil {
			return err
		}

		s.Logger.WithContext(ctx).Infow("added invoice item",
			"invoice_id", inv.ID,
			"item_id", item.ID,
			"amount", item.Amount.String(),
			"source", item.Source,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.ServiceParams, statusEvents(before, inv))
	return dto.NewInvoiceResponse(inv, items), nil
}

// priceItem snapshots name and price from the catalog. An explicit unit price or name wins.
func (s *invoiceService) priceItem(ctx context.Context, req *dto.AddItemRequest) (invoice.NewItemParams, error) {
	name := req.Name
	unitPrice := lo.FromPtrOr(req.UnitPrice, decimal.Zero)

	switch req.Source() {
	case types.ItemSourceService:
		svc, err := s.CatalogRepo.GetService(ctx, req.ServiceID)
		if err != nil {
			return invoice.NewItemParams{}, err
		}
		name = lo.Ternary(name == "", svc.Name, name)
		if req.UnitPrice == nil {
			unitPrice = svc.Price
		}
	case types.ItemSourceInventory:
		item, err := s.CatalogRepo.GetInventoryItem(ctx, req.InventoryItemID)
		if err != nil {
			return invoice.NewItemParams{}, err
		}
		name = lo.Ternary(name == "", item.Name, name)
		if req.UnitPrice == nil {
			unitPrice = item.SellingPrice
		}
	}

	return req.ToInvoiceItemParams(name, unitPrice), nil
}

func (s *invoiceService) DeleteItem(ctx context.Context, itemID string) (*dto.InvoiceResponse, error) {
	var (
		inv    *invoice.Invoice
		items  []*invoice.InvoiceItem
		before types.InvoiceStatus
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		item, err := s.InvoiceRepo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}

		inv, err = lockInvoice(ctx, s.ServiceParams, item.InvoiceID)
		if err != nil {
			return err
		}
		before = inv.InvoiceStatus

		if err := ensureOpen(inv); err != nil {
			return err
		}

		// read again now that the invoice is locked
		item, err = s.InvoiceRepo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}

		if item.PaidAmount.IsPositive() {
			return ierr.NewError("item already has payments allocated").
				WithHint("An item that has been paid for cannot be deleted").
				WithReason(ierr.ReasonItemAlreadySettled, map[string]any{
					"item_id":     item.ID,
					"paid_amount": item.PaidAmount.String(),
				}).
				Mark(ierr.ErrValidation)
		}

		if err := s.InvoiceRepo.DeleteItem(ctx, item); err != nil {
			return err
		}

		items, err = reconcile(ctx, s.ServiceParams, inv)
		return err
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.ServiceParams, statusEvents(before, inv))
	return dto.NewInvoiceResponse(inv, items), nil
}

func (s *invoiceService) DistributePayments(ctx context.Context, invoiceID string) (*dto.InvoiceResponse, error) {
	var (
		inv   *invoice.Invoice
		items []*invoice.InvoiceItem
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = lockInvoice(ctx, s.ServiceParams, invoiceID)
		if err != nil {
			return err
		}

		if inv.IsCancelled() {
			items, err = s.InvoiceRepo.ListItems(ctx, inv.ID)
			return err
		}

		items, err = reconcile(ctx, s.ServiceParams, inv)
		return err
	})
	if err != nil {
		return nil, err
	}

	return dto.NewInvoiceResponse(inv, items), nil
}

func (s *invoiceService) CancelInvoice(ctx context.Context, invoiceID string, req *dto.CancelInvoiceRequest) (*dto.InvoiceResponse, error) {
	var (
		inv    *invoice.Invoice
		items  []*invoice.InvoiceItem
		before types.InvoiceStatus
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = lockInvoice(ctx, s.ServiceParams, invoiceID)
		if err != nil {
			return err
		}
		before = inv.InvoiceStatus

		if inv.IsCancelled() {
			items, err = s.InvoiceRepo.ListItems(ctx, inv.ID)
			return err
		}

		paid, err := s.PaymentRepo.Sum(ctx, inv.ID)
		if err != nil {
			return err
		}
		if paid.IsPositive() {
			return ierr.NewError("invoice has payments").
				WithHint("An invoice with payments cannot be cancelled").
				WithReason(ierr.ReasonInvoiceHasPayments, map[string]any{
					"invoice_id":  inv.ID,
					"paid_amount": paid.String(),
				}).
				Mark(ierr.ErrValidation)
		}

		items, err = s.InvoiceRepo.ListItems(ctx, inv.ID)
		if err != nil {
			return err
		}
		if settled := invoice.SettleAll(items); len(settled) > 0 {
			if err := s.InvoiceRepo.BulkSetItemPaid(ctx, settled); err != nil {
				return err
			}
		}

		inv.InvoiceStatus = types.InvoiceStatusCancelled
		if req != nil && req.Reason != "" {
			inv.AppendNote("Cancelled: " + req.Reason)
		}

		items, err = reconcile(ctx, s.ServiceParams, inv)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("cancelled invoice", "invoice_id", inv.ID)
	if before != inv.InvoiceStatus {
		publishEvents(ctx, s.ServiceParams, statusEvents(before, inv))
	}
	return dto.NewInvoiceResponse(inv, items), nil
}

func (s *invoiceService) ListOutstandingItems(ctx context.Context, req *dto.ListInvoicesRequest) (*dto.ListOutstandingItemsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	filter := req.ToFilter()
	filter.ExcludeCancelled = true

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.ListOutstandingItemsResponse{
		Items:            make([]*dto.OutstandingItem, 0),
		TotalOutstanding: decimal.Zero,
	}
	for _, inv := range invoices {
		items, err := s.InvoiceRepo.ListItems(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.IsSettled() {
				continue
			}
			resp.Items = append(resp.Items, &dto.OutstandingItem{
				InvoiceID:     inv.ID,
				InvoiceNumber: inv.InvoiceNumber,
				Item:          item,
				Outstanding:   item.Outstanding(),
			})
			resp.TotalOutstanding = resp.TotalOutstanding.Add(item.Outstanding())
		}
	}
	return resp, nil
}

func (s *invoiceService) CheckBillingClearance(ctx context.Context, req *dto.ListInvoicesRequest) (*dto.ClearanceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	filter := req.ToFilter()
	filter.ExcludeCancelled = true

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	owing := lo.Filter(invoices, func(inv *invoice.Invoice, _ int) bool {
		return inv.Balance().IsPositive()
	})
	outstanding := decimal.Zero
	for _, inv := range invoices {
		outstanding = outstanding.Add(inv.Balance())
	}

	return &dto.ClearanceResponse{
		Cleared:            !outstanding.IsPositive(),
		OutstandingBalance: outstanding,
		InvoiceIDs: lo.Map(owing, func(inv *invoice.Invoice, _ int) string {
			return inv.ID
		}),
	}, nil
}
