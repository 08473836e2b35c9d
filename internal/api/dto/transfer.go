package dto

import (
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/shopspring/decimal"
)

// TransferInvoiceRequest moves open balances from the invoice of one visit to the next.
// PreviousInvoiceID names the source invoice explicitly; otherwise it is looked up.
type TransferInvoiceRequest struct {
	OldVisitID        string `json:"old_visit_id" binding:"required"`
	NewVisitID        string `json:"new_visit_id" binding:"required"`
	PreviousInvoiceID string `json:"previous_invoice_id,omitempty"`
}

func (r *TransferInvoiceRequest) Validate() error {
	if r.OldVisitID == "" || r.NewVisitID == "" {
		return ierr.NewError("both visits are required").
			WithHint("Provide the previous and the new visit").
			Mark(ierr.ErrValidation)
	}
	if r.OldVisitID == r.NewVisitID {
		return ierr.NewError("cannot transfer a visit onto itself").
			WithHint("The new visit must differ from the previous visit").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TransferResponse describes what moved. Transferred is false when there was nothing open to move.
type TransferResponse struct {
	Transferred       bool            `json:"transferred"`
	OldInvoiceID      string          `json:"old_invoice_id,omitempty"`
	NewInvoiceID      string          `json:"new_invoice_id,omitempty"`
	ItemsTransferred  int             `json:"items_transferred"`
	AmountTransferred decimal.Decimal `json:"amount_transferred"`
	CreditCarried     decimal.Decimal `json:"credit_carried"`
}
