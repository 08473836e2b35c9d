package invoice

import (
	"context"
	"sort"

	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
)

// InvoiceItem is one billable line, with name and price snapshotted when it was billed.
// Amount never changes after creation; PaidAmount is owned by payment distribution.
type InvoiceItem struct {
	ID              string           `db:"id" json:"id"`
	InvoiceID       string           `db:"invoice_id" json:"invoice_id"`
	Source          types.ItemSource `db:"source" json:"source"`
	ServiceID       string           `db:"service_id" json:"service_id,omitempty"`
	InventoryItemID string           `db:"inventory_item_id" json:"inventory_item_id,omitempty"`
	Name            string           `db:"name" json:"name"`
	Quantity        decimal.Decimal  `db:"quantity" json:"quantity"`
	UnitPrice       decimal.Decimal  `db:"unit_price" json:"unit_price"`
	Amount          decimal.Decimal  `db:"amount" json:"amount"`
	PaidAmount      decimal.Decimal  `db:"paid_amount" json:"paid_amount"`
	types.BaseModel
}

// NewItemParams describes a line before it is priced
type NewItemParams struct {
	Source          types.ItemSource
	ServiceID       string
	InventoryItemID string
	Name            string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
}

// Scale of the stored line columns
const (
	quantityPlaces = 3
	moneyPlaces    = 2
)

// NewInvoiceItem prices a line as quantity x unit price. The product must be a whole
// number of cents so the stored amount is exactly quantity x unit price.
func NewInvoiceItem(ctx context.Context, invoiceID string, params NewItemParams) (*InvoiceItem, error) {
	if err := validateLine(params.Quantity, params.UnitPrice); err != nil {
		return nil, err
	}

	if err := params.Source.Validate(); err != nil {
		return nil, err
	}

	if params.Name == "" {
		return nil, ierr.NewError("item name is required").
			WithHint("Every invoice item needs a name").
			Mark(ierr.ErrValidation)
	}

	return &InvoiceItem{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_ITEM),
		InvoiceID:       invoiceID,
		Source:          params.Source,
		ServiceID:       params.ServiceID,
		InventoryItemID: params.InventoryItemID,
		Name:            params.Name,
		Quantity:        params.Quantity,
		UnitPrice:       params.UnitPrice,
		Amount:          params.Quantity.Mul(params.UnitPrice),
		PaidAmount:      decimal.Zero,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}, nil
}

func validateLine(quantity, unitPrice decimal.Decimal) error {
	var hint string
	switch {
	case !quantity.IsPositive():
		hint = "Quantity must be greater than 0"
	case unitPrice.IsNegative():
		hint = "Unit price must not be negative"
	case !quantity.Equal(quantity.Round(quantityPlaces)):
		hint = "Quantity allows at most 3 decimal places"
	case !unitPrice.Equal(unitPrice.Round(moneyPlaces)):
		hint = "Unit price allows at most 2 decimal places"
	default:
		amount := quantity.Mul(unitPrice)
		if amount.Equal(amount.Round(moneyPlaces)) {
			return nil
		}
		hint = "Quantity times unit price must come to a whole number of cents"
	}

	return ierr.NewError("invalid line amount").
		WithHint(hint).
		WithReason(ierr.ReasonInvalidLineAmount, map[string]any{
			"quantity":   quantity.String(),
			"unit_price": unitPrice.String(),
		}).
		Mark(ierr.ErrValidation)
}

// Outstanding is the unpaid part of the line
func (i *InvoiceItem) Outstanding() decimal.Decimal {
	return i.Amount.Sub(i.PaidAmount)
}

// IsSettled reports whether nothing is owed on the line
func (i *InvoiceItem) IsSettled() bool {
	return i.PaidAmount.GreaterThanOrEqual(i.Amount)
}

// SortFIFO orders items oldest first. Ties on created_at fall back to the k-sortable id
// so the order is total and distribution is deterministic.
func SortFIFO(items []*InvoiceItem) {
	sort.SliceStable(items, func(a, b int) bool {
		if !items[a].CreatedAt.Equal(items[b].CreatedAt) {
			return items[a].CreatedAt.Before(items[b].CreatedAt)
		}
		return items[a].ID < items[b].ID
	})
}
