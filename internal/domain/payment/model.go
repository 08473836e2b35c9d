package payment

import (
	"time"

	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
)

// Payment is one money-in event against an invoice
type Payment struct {
	ID         string              `db:"id" json:"id"`
	InvoiceID  string              `db:"invoice_id" json:"invoice_id"`
	Amount     decimal.Decimal     `db:"amount" json:"amount"`
	Method     types.PaymentMethod `db:"method" json:"method"`
	Reference  string              `db:"reference" json:"reference"`
	Notes      string              `db:"notes" json:"notes"`
	ReceivedAt time.Time           `db:"received_at" json:"received_at"`
	RecordedBy string              `db:"recorded_by" json:"recorded_by"`
	types.BaseModel
}

// Validate validates the payment
func (p *Payment) Validate() error {
	if p.InvoiceID == "" {
		return ierr.NewError("invoice_id is required").
			WithHint("Payment must reference an invoice").
			Mark(ierr.ErrValidation)
	}

	if !p.Amount.IsPositive() {
		return ierr.NewError("payment amount must be greater than 0").
			WithHint("Payment amount must be greater than 0").
			WithReason(ierr.ReasonInvalidPaymentAmount, map[string]any{
				"amount": p.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	return p.Method.Validate()
}

// Sum adds up payment amounts
func Sum(payments []*Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
