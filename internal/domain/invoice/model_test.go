package invoice

import (
	"context"
	"testing"
	"time"

	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		current   types.InvoiceStatus
		effective decimal.Decimal
		paid      decimal.Decimal
		expected  types.InvoiceStatus
	}{
		{"nothing paid", types.InvoiceStatusPending, d(800), d(0), types.InvoiceStatusPending},
		{"draft becomes pending", types.InvoiceStatusDraft, d(800), d(0), types.InvoiceStatusPending},
		{"partly paid", types.InvoiceStatusPending, d(800), d(600), types.InvoiceStatusPartial},
		{"exactly paid", types.InvoiceStatusPartial, d(800), d(800), types.InvoiceStatusPaid},
		{"paid reopens when effective grows", types.InvoiceStatusPaid, d(900), d(800), types.InvoiceStatusPartial},
		{"empty invoice is not paid", types.InvoiceStatusPending, d(0), d(0), types.InvoiceStatusPending},
		{"cancelled is sticky", types.InvoiceStatusCancelled, d(800), d(800), types.InvoiceStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveStatus(tt.current, tt.effective, tt.paid))
		})
	}
}

func TestApplyTotalsIgnoresDeletedItems(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	live := itemAt("itm_a", 500, t0)
	deleted := itemAt("itm_b", 300, t0)
	deleted.Status = types.StatusDeleted

	inv := &Invoice{InvoiceStatus: types.InvoiceStatusPending}
	inv.ApplyTotals([]*InvoiceItem{live, deleted}, d(0))

	assert.True(t, inv.TotalAmount.Equal(d(500)))
	assert.Equal(t, types.InvoiceStatusPending, inv.InvoiceStatus)
}

func TestApplyTotalsIsIdempotent(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	items := []*InvoiceItem{itemAt("itm_a", 500, t0), itemAt("itm_b", 300, t0)}

	inv := &Invoice{InvoiceStatus: types.InvoiceStatusPending}
	inv.ApplyTotals(items, d(600))
	first := *inv
	inv.ApplyTotals(items, d(600))

	assert.Equal(t, first.InvoiceStatus, inv.InvoiceStatus)
	assert.True(t, first.TotalAmount.Equal(inv.TotalAmount))
	assert.True(t, first.PaidAmount.Equal(inv.PaidAmount))
}

// effective = total - adjustment, so a negative adjustment is facility profit
func TestInsuranceAdjustmentSignConvention(t *testing.T) {
	inv := &Invoice{
		TotalAmount:         d(10000),
		InsuranceAdjustment: d(-2000),
		PaidAmount:          d(0),
	}
	assert.True(t, inv.EffectiveAmount().Equal(d(12000)))
	assert.True(t, inv.Balance().Equal(d(12000)))

	inv.InsuranceAdjustment = d(1500)
	assert.True(t, inv.EffectiveAmount().Equal(d(8500)))
	assert.True(t, inv.EffectiveAmount().Equal(inv.TotalAmount.Sub(inv.InsuranceAdjustment)))
}

func TestNewInvoiceItem(t *testing.T) {
	ctx := types.SetUserID(context.Background(), "user_1")

	item, err := NewInvoiceItem(ctx, "inv_1", NewItemParams{
		Source:    types.ItemSourceManual,
		Name:      "Dressing",
		Quantity:  decimal.NewFromFloat(2.5),
		UnitPrice: d(120),
	})
	require.NoError(t, err)
	assert.True(t, item.Amount.Equal(d(300)))
	assert.True(t, item.PaidAmount.IsZero())
	assert.Equal(t, "user_1", item.CreatedBy)
	assert.Equal(t, types.StatusPublished, item.Status)

	zero, err := NewInvoiceItem(ctx, "inv_1", NewItemParams{
		Source:    types.ItemSourceManual,
		Name:      "Waived",
		Quantity:  d(1),
		UnitPrice: d(0),
	})
	require.NoError(t, err)
	assert.True(t, zero.Amount.IsZero())
}

func TestNewInvoiceItemRejectsInvalidLines(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		quantity  string
		unitPrice string
	}{
		{name: "negative quantity", quantity: "-1", unitPrice: "10"},
		{name: "zero quantity", quantity: "0", unitPrice: "500"},
		{name: "negative unit price", quantity: "1", unitPrice: "-10"},
		{name: "sub-cent unit price", quantity: "3", unitPrice: "0.005"},
		{name: "quantity beyond three places", quantity: "1.0005", unitPrice: "10"},
		{name: "amount not in whole cents", quantity: "0.5", unitPrice: "9.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInvoiceItem(ctx, "inv_1", NewItemParams{
				Source:    types.ItemSourceManual,
				Name:      "x",
				Quantity:  decimal.RequireFromString(tt.quantity),
				UnitPrice: decimal.RequireFromString(tt.unitPrice),
			})
			require.Error(t, err)
			assert.True(t, ierr.IsValidation(err))
			assert.Equal(t, ierr.ReasonInvalidLineAmount, ierr.ReasonOf(err))
		})
	}
}

func TestNewInvoiceItemAmountIsExactProduct(t *testing.T) {
	tests := []struct {
		quantity  string
		unitPrice string
		amount    string
	}{
		{quantity: "3", unitPrice: "0.05", amount: "0.15"},
		{quantity: "0.25", unitPrice: "10.04", amount: "2.51"},
		{quantity: "1.5", unitPrice: "33.3", amount: "49.95"},
	}

	for _, tt := range tests {
		item, err := NewInvoiceItem(context.Background(), "inv_1", NewItemParams{
			Source:    types.ItemSourceManual,
			Name:      "Gauze",
			Quantity:  decimal.RequireFromString(tt.quantity),
			UnitPrice: decimal.RequireFromString(tt.unitPrice),
		})
		require.NoError(t, err)
		assert.True(t, item.Amount.Equal(decimal.RequireFromString(tt.amount)), "got %s", item.Amount)
		assert.True(t, item.Amount.Equal(item.Quantity.Mul(item.UnitPrice)))
	}
}

func TestInvoiceValidate(t *testing.T) {
	subject := types.Subject{PatientID: "pat_1", VisitID: "vis_1"}
	inv := &Invoice{
		Subject:       subject,
		SubjectKey:    subject.Key(),
		InvoiceStatus: types.InvoiceStatusPending,
	}
	assert.NoError(t, inv.Validate())

	inv.SubjectKey = "patient:pat_1"
	assert.True(t, ierr.IsValidation(inv.Validate()))

	ambiguous := &Invoice{
		Subject:       types.Subject{PatientID: "pat_1", DeceasedID: "dec_1"},
		InvoiceStatus: types.InvoiceStatusPending,
	}
	assert.Equal(t, ierr.ReasonSubjectAmbiguous, ierr.ReasonOf(ambiguous.Validate()))
}

func TestAppendNote(t *testing.T) {
	inv := &Invoice{}
	inv.AppendNote("first")
	inv.AppendNote("second")
	assert.Equal(t, "first\nsecond", inv.Notes)
}
