package payment

import (
	"testing"

	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentValidate(t *testing.T) {
	valid := &Payment{
		InvoiceID: "inv_1",
		Amount:    decimal.NewFromInt(100),
		Method:    types.PaymentMethodMpesa,
	}
	assert.NoError(t, valid.Validate())

	zero := *valid
	zero.Amount = decimal.Zero
	err := zero.Validate()
	assert.True(t, ierr.IsValidation(err))
	assert.Equal(t, ierr.ReasonInvalidPaymentAmount, ierr.ReasonOf(err))

	negative := *valid
	negative.Amount = decimal.NewFromInt(-5)
	assert.True(t, ierr.IsValidation(negative.Validate()))

	unknown := *valid
	unknown.Method = "CHEQUE"
	assert.Equal(t, ierr.ReasonUnknownPaymentMethod, ierr.ReasonOf(unknown.Validate()))
}

func TestSum(t *testing.T) {
	assert.True(t, Sum(nil).IsZero())
	total := Sum([]*Payment{
		{Amount: decimal.NewFromInt(600)},
		{Amount: decimal.NewFromInt(200)},
	})
	assert.True(t, total.Equal(decimal.NewFromInt(800)))
}
