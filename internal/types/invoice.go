package types

import (
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus represents the current state of an invoice in its lifecycle
type InvoiceStatus string

const (
	// InvoiceStatusDraft is only set by explicit draft creation; recompute never produces it
	InvoiceStatusDraft InvoiceStatus = "DRAFT"
	// InvoiceStatusPending means nothing has been paid yet
	InvoiceStatusPending InvoiceStatus = "PENDING"
	// InvoiceStatusPartial means some but not all of the effective amount is paid
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	// InvoiceStatusPaid means paid covers the effective amount. Adding an item reopens it.
	InvoiceStatusPaid InvoiceStatus = "PAID"
	// InvoiceStatusCancelled is terminal
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the invoice can never change status again
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusCancelled
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusPending,
		InvoiceStatusPartial,
		InvoiceStatusPaid,
		InvoiceStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ItemSource records what an invoice item was snapshotted from
type ItemSource string

const (
	ItemSourceService   ItemSource = "SERVICE"
	ItemSourceInventory ItemSource = "INVENTORY"
	ItemSourceManual    ItemSource = "MANUAL"
)

func (s ItemSource) Validate() error {
	allowed := []ItemSource{
		ItemSourceService,
		ItemSourceInventory,
		ItemSourceManual,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid item source").
			WithHint("Item must come from a service, an inventory item or a manual charge").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
