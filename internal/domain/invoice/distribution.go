package invoice

import (
	"github.com/shopspring/decimal"
)

// Allocation is the paid amount distribution assigned to one item
type Allocation struct {
	ItemID     string          `db:"id"`
	PaidAmount decimal.Decimal `db:"paid_amount"`
}

// DistributePayments spreads pool over items oldest first and returns the allocations that changed.
// Items are updated in place. Paid amounts are recomputed from scratch, so running it twice
// over the same items and pool changes nothing the second time.
func DistributePayments(items []*InvoiceItem, pool decimal.Decimal) []Allocation {
	ordered := make([]*InvoiceItem, len(items))
	copy(ordered, items)
	SortFIFO(ordered)

	changed := make([]Allocation, 0)
	for _, item := range ordered {
		var paid decimal.Decimal
		switch {
		case !pool.IsPositive():
			paid = decimal.Zero
		case pool.GreaterThanOrEqual(item.Amount):
			paid = item.Amount
			pool = pool.Sub(item.Amount)
		default:
			paid = pool
			pool = decimal.Zero
		}

		if !paid.Equal(item.PaidAmount) {
			item.PaidAmount = paid
			changed = append(changed, Allocation{ItemID: item.ID, PaidAmount: paid})
		}
	}

	return changed
}

// SettleAll marks every item fully paid and returns the allocations that changed.
// Used when an invoice is closed and its lines must drop out of outstanding views.
func SettleAll(items []*InvoiceItem) []Allocation {
	changed := make([]Allocation, 0)
	for _, item := range items {
		if item.PaidAmount.Equal(item.Amount) {
			continue
		}
		item.PaidAmount = item.Amount
		changed = append(changed, Allocation{ItemID: item.ID, PaidAmount: item.Amount})
	}
	return changed
}
