package invoice

import (
	"time"

	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is one bill owned by exactly one subject.
// TotalAmount and PaidAmount are derived; only ApplyTotals writes them.
type Invoice struct {
	ID            string `db:"id" json:"id"`
	InvoiceNumber string `db:"invoice_number" json:"invoice_number"`
	types.Subject
	SubjectKey          string              `db:"subject_key" json:"subject_key"`
	InvoiceStatus       types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`
	TotalAmount         decimal.Decimal     `db:"total_amount" json:"total_amount"`
	InsuranceAdjustment decimal.Decimal     `db:"insurance_adjustment" json:"insurance_adjustment"`
	PaidAmount          decimal.Decimal     `db:"paid_amount" json:"paid_amount"`
	DueDate             *time.Time          `db:"due_date" json:"due_date,omitempty"`
	Notes               string              `db:"notes" json:"notes"`
	Version             int                 `db:"version" json:"version"`
	types.BaseModel
}

// EffectiveAmount is what the facility expects to collect: total less the insurance adjustment.
// A negative adjustment (per-diem claim above the billed total) raises it above the total.
func (i *Invoice) EffectiveAmount() decimal.Decimal {
	return i.TotalAmount.Sub(i.InsuranceAdjustment)
}

// Balance is the only figure callers should treat as "amount owed"
func (i *Invoice) Balance() decimal.Decimal {
	return i.EffectiveAmount().Sub(i.PaidAmount)
}

func (i *Invoice) IsCancelled() bool {
	return i.InvoiceStatus == types.InvoiceStatusCancelled
}

// ApplyTotals recomputes total, paid and status from the live item set and the payment sum.
// It is idempotent and is the only place status is derived.
func (i *Invoice) ApplyTotals(items []*InvoiceItem, paid decimal.Decimal) {
	total := decimal.Zero
	for _, item := range items {
		if item.Status == types.StatusDeleted {
			continue
		}
		total = total.Add(item.Amount)
	}

	i.TotalAmount = total
	i.PaidAmount = paid
	i.InvoiceStatus = DeriveStatus(i.InvoiceStatus, i.EffectiveAmount(), paid)
}

// DeriveStatus maps amounts to a status. A cancelled invoice stays cancelled.
func DeriveStatus(current types.InvoiceStatus, effective, paid decimal.Decimal) types.InvoiceStatus {
	switch {
	case current == types.InvoiceStatusCancelled:
		return current
	case effective.IsPositive() && paid.GreaterThanOrEqual(effective):
		return types.InvoiceStatusPaid
	case paid.IsPositive():
		return types.InvoiceStatusPartial
	default:
		return types.InvoiceStatusPending
	}
}

// Validate checks the invariants a persisted invoice must always hold
func (i *Invoice) Validate() error {
	if err := i.Subject.Validate(); err != nil {
		return err
	}

	if i.SubjectKey != i.Subject.Key() {
		return ierr.NewError("subject key does not match subject").
			WithHint("Invoice subject is inconsistent").
			WithReportableDetails(map[string]any{
				"subject_key": i.SubjectKey,
				"expected":    i.Subject.Key(),
			}).
			Mark(ierr.ErrValidation)
	}

	if err := i.InvoiceStatus.Validate(); err != nil {
		return err
	}

	if i.TotalAmount.IsNegative() || i.PaidAmount.IsNegative() {
		return ierr.NewError("invoice amounts must not be negative").
			WithHint("Invoice amounts must not be negative").
			WithReportableDetails(map[string]any{
				"total_amount": i.TotalAmount.String(),
				"paid_amount":  i.PaidAmount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

// AppendNote adds a line to the invoice notes
func (i *Invoice) AppendNote(note string) {
	if i.Notes == "" {
		i.Notes = note
		return
	}
	i.Notes = i.Notes + "\n" + note
}
