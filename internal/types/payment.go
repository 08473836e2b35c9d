package types

import (
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/samber/lo"
)

// PaymentMethod is how money reached the facility
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodMpesa        PaymentMethod = "MPESA"
	PaymentMethodInsurance    PaymentMethod = "INSURANCE"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodOther        PaymentMethod = "OTHER"
	// PaymentMethodTransferCredit carries amounts already paid on a cancelled invoice
	// over to the invoice that replaced it. It is never accepted from callers.
	PaymentMethodTransferCredit PaymentMethod = "TRANSFER_CREDIT"
)

// ExternalPaymentMethods are the methods a caller may record
var ExternalPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodMpesa,
	PaymentMethodInsurance,
	PaymentMethodBankTransfer,
	PaymentMethodOther,
}

func (m PaymentMethod) String() string {
	return string(m)
}

// IsCash reports whether the payment is real money received, as opposed to a transfer credit
func (m PaymentMethod) IsCash() bool {
	return m != PaymentMethodTransferCredit
}

func (m PaymentMethod) Validate() error {
	allowed := append([]PaymentMethod{PaymentMethodTransferCredit}, ExternalPaymentMethods...)
	if !lo.Contains(allowed, m) {
		return ierr.NewError("unknown payment method").
			WithHintf("Payment method %q is not supported", string(m)).
			WithReason(ierr.ReasonUnknownPaymentMethod, map[string]any{
				"allowed": ExternalPaymentMethods,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
