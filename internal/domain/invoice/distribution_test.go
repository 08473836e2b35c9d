package invoice

import (
	"testing"
	"time"

	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemAt(id string, amount int64, at time.Time) *InvoiceItem {
	return &InvoiceItem{
		ID:         id,
		Source:     types.ItemSourceManual,
		Name:       id,
		Quantity:   decimal.NewFromInt(1),
		UnitPrice:  decimal.NewFromInt(amount),
		Amount:     decimal.NewFromInt(amount),
		PaidAmount: decimal.Zero,
		BaseModel: types.BaseModel{
			Status:    types.StatusPublished,
			CreatedAt: at,
		},
	}
}

func TestDistributePaymentsFIFO(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	first := itemAt("itm_a", 500, t0)
	second := itemAt("itm_b", 300, t0.Add(time.Minute))

	// passed newest first on purpose, creation order decides
	items := []*InvoiceItem{second, first}

	changed := DistributePayments(items, decimal.NewFromInt(600))
	assert.Len(t, changed, 2)
	assert.True(t, first.PaidAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, second.PaidAmount.Equal(decimal.NewFromInt(100)))

	changed = DistributePayments(items, decimal.NewFromInt(800))
	require.Len(t, changed, 1)
	assert.Equal(t, "itm_b", changed[0].ItemID)
	assert.True(t, second.PaidAmount.Equal(decimal.NewFromInt(300)))
}

func TestDistributePaymentsIsIdempotent(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	items := []*InvoiceItem{
		itemAt("itm_a", 250, t0),
		itemAt("itm_b", 250, t0.Add(time.Second)),
		itemAt("itm_c", 250, t0.Add(2*time.Second)),
	}

	pool := decimal.NewFromInt(400)
	assert.NotEmpty(t, DistributePayments(items, pool))
	assert.Empty(t, DistributePayments(items, pool))

	assert.True(t, items[0].PaidAmount.Equal(decimal.NewFromInt(250)))
	assert.True(t, items[1].PaidAmount.Equal(decimal.NewFromInt(150)))
	assert.True(t, items[2].PaidAmount.IsZero())
}

func TestDistributePaymentsRecomputesFromScratch(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	a := itemAt("itm_a", 100, t0)
	b := itemAt("itm_b", 100, t0.Add(time.Second))
	// stale paid amounts are overwritten, not incremented
	a.PaidAmount = decimal.NewFromInt(100)
	b.PaidAmount = decimal.NewFromInt(100)

	DistributePayments([]*InvoiceItem{a, b}, decimal.NewFromInt(50))
	assert.True(t, a.PaidAmount.Equal(decimal.NewFromInt(50)))
	assert.True(t, b.PaidAmount.IsZero())
}

func TestDistributePaymentsTieBreaksOnID(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	b := itemAt("itm_b", 100, t0)
	a := itemAt("itm_a", 100, t0)

	DistributePayments([]*InvoiceItem{b, a}, decimal.NewFromInt(100))
	assert.True(t, a.PaidAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, b.PaidAmount.IsZero())
}

func TestDistributePaymentsKeepsPaidWithinAmount(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	items := []*InvoiceItem{
		itemAt("itm_a", 70, t0),
		itemAt("itm_b", 30, t0.Add(time.Second)),
	}

	// pool larger than the items, as after a negative insurance adjustment
	DistributePayments(items, decimal.NewFromInt(1000))
	for _, item := range items {
		assert.True(t, item.PaidAmount.Equal(item.Amount))
		assert.False(t, item.PaidAmount.IsNegative())
	}
}

func TestSettleAll(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	paid := itemAt("itm_a", 100, t0)
	paid.PaidAmount = decimal.NewFromInt(100)
	open := itemAt("itm_b", 40, t0)

	changed := SettleAll([]*InvoiceItem{paid, open})
	require.Len(t, changed, 1)
	assert.Equal(t, "itm_b", changed[0].ItemID)
	assert.True(t, open.IsSettled())
}
