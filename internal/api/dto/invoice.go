package dto

import (
	"github.com/medbill/ledger/internal/domain/invoice"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CreateInvoiceRequest identifies the subject whose live invoice should be returned or opened
type CreateInvoiceRequest struct {
	PatientID  string `json:"patient_id,omitempty"`
	DeceasedID string `json:"deceased_id,omitempty"`
	VisitID    string `json:"visit_id,omitempty"`
}

func (r *CreateInvoiceRequest) Validate() error {
	return r.ToSubject().Validate()
}

func (r *CreateInvoiceRequest) ToSubject() types.Subject {
	return types.Subject{
		PatientID:  r.PatientID,
		DeceasedID: r.DeceasedID,
		VisitID:    r.VisitID,
	}
}

// AddItemRequest bills one line. Exactly one of ServiceID or InventoryItemID may be set;
// with neither the line is a manual charge and needs a name and a unit price.
// UnitPrice overrides the catalog price when given. Quantity defaults to 1 when omitted.
type AddItemRequest struct {
	ServiceID       string           `json:"service_id,omitempty"`
	InventoryItemID string           `json:"inventory_item_id,omitempty"`
	Name            string           `json:"name,omitempty"`
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice       *decimal.Decimal `json:"unit_price,omitempty"`
}

func (r *AddItemRequest) Validate() error {
	if r.ServiceID != "" && r.InventoryItemID != "" {
		return ierr.NewError("item references both a service and an inventory item").
			WithHint("Bill a service or an inventory item, not both").
			Mark(ierr.ErrValidation)
	}

	if !r.quantity().IsPositive() || (r.UnitPrice != nil && r.UnitPrice.IsNegative()) {
		return ierr.NewError("invalid line amount").
			WithHint("Quantity must be greater than 0 and unit price must not be negative").
			WithReason(ierr.ReasonInvalidLineAmount, map[string]any{
				"quantity":   r.quantity().String(),
				"unit_price": lo.FromPtrOr(r.UnitPrice, decimal.Zero).String(),
			}).
			Mark(ierr.ErrValidation)
	}

	if r.Source() == types.ItemSourceManual {
		if r.Name == "" || r.UnitPrice == nil {
			return ierr.NewError("manual charge needs a name and unit price").
				WithHint("Manual charges must include a name and a unit price").
				Mark(ierr.ErrValidation)
		}
	}

	return nil
}

func (r *AddItemRequest) quantity() decimal.Decimal {
	return lo.FromPtrOr(r.Quantity, decimal.NewFromInt(1))
}

// Source reports what the line will be snapshotted from
func (r *AddItemRequest) Source() types.ItemSource {
	switch {
	case r.ServiceID != "":
		return types.ItemSourceService
	case r.InventoryItemID != "":
		return types.ItemSourceInventory
	default:
		return types.ItemSourceManual
	}
}

// ListInvoicesRequest filters invoices by subject fields
type ListInvoicesRequest struct {
	PatientID        string `form:"patient_id" json:"patient_id,omitempty"`
	DeceasedID       string `form:"deceased_id" json:"deceased_id,omitempty"`
	VisitID          string `form:"visit_id" json:"visit_id,omitempty"`
	IncludeCancelled bool   `form:"include_cancelled" json:"include_cancelled,omitempty"`
}

func (r *ListInvoicesRequest) Validate() error {
	if r.PatientID == "" && r.DeceasedID == "" && r.VisitID == "" {
		return ierr.NewError("a subject filter is required").
			WithHint("Filter by patient_id, deceased_id or visit_id").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *ListInvoicesRequest) ToFilter() *invoice.Filter {
	return &invoice.Filter{
		PatientID:        r.PatientID,
		DeceasedID:       r.DeceasedID,
		VisitID:          r.VisitID,
		ExcludeCancelled: !r.IncludeCancelled,
	}
}

// CancelInvoiceRequest closes an invoice that never took a payment
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// InvoiceResponse is an invoice with its derived figures and live items
type InvoiceResponse struct {
	*invoice.Invoice
	EffectiveAmount decimal.Decimal        `json:"effective_amount"`
	Balance         decimal.Decimal        `json:"balance"`
	Items           []*invoice.InvoiceItem `json:"items,omitempty"`
}

func NewInvoiceResponse(inv *invoice.Invoice, items []*invoice.InvoiceItem) *InvoiceResponse {
	return &InvoiceResponse{
		Invoice:         inv,
		EffectiveAmount: inv.EffectiveAmount(),
		Balance:         inv.Balance(),
		Items:           items,
	}
}

// ListInvoicesResponse is a page of invoices
type ListInvoicesResponse struct {
	Items []*InvoiceResponse `json:"items"`
	Total int                `json:"total"`
}

// OutstandingItem is an item still owed on a live invoice
type OutstandingItem struct {
	InvoiceID     string               `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	Item          *invoice.InvoiceItem `json:"item"`
	Outstanding   decimal.Decimal      `json:"outstanding"`
}

type ListOutstandingItemsResponse struct {
	Items            []*OutstandingItem `json:"items"`
	TotalOutstanding decimal.Decimal    `json:"total_outstanding"`
}

// ClearanceResponse answers whether a subject may be discharged or released
type ClearanceResponse struct {
	Cleared            bool            `json:"cleared"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	InvoiceIDs         []string        `json:"invoice_ids,omitempty"`
}

// ToInvoiceItemParams fills in the snapshotted name and price
func (r *AddItemRequest) ToInvoiceItemParams(name string, unitPrice decimal.Decimal) invoice.NewItemParams {
	return invoice.NewItemParams{
		Source:          r.Source(),
		ServiceID:       r.ServiceID,
		InventoryItemID: r.InventoryItemID,
		Name:            name,
		Quantity:        r.quantity(),
		UnitPrice:       unitPrice,
	}
}
