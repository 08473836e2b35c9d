package dto

import (
	"context"
	"time"

	"github.com/medbill/ledger/internal/domain/payment"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// RecordPaymentRequest records money received against an invoice
type RecordPaymentRequest struct {
	Amount     decimal.Decimal     `json:"amount" binding:"required"`
	Method     types.PaymentMethod `json:"method" binding:"required"`
	Reference  string              `json:"reference,omitempty"`
	Notes      string              `json:"notes,omitempty"`
	ReceivedAt *time.Time          `json:"received_at,omitempty"`
}

func (r *RecordPaymentRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ierr.NewError("payment amount must be greater than 0").
			WithHint("Payment amount must be greater than 0").
			WithReason(ierr.ReasonInvalidPaymentAmount, map[string]any{
				"amount": r.Amount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	if !lo.Contains(types.ExternalPaymentMethods, r.Method) {
		return ierr.NewError("unknown payment method").
			WithHintf("Payment method %q is not supported", string(r.Method)).
			WithReason(ierr.ReasonUnknownPaymentMethod, map[string]any{
				"allowed": types.ExternalPaymentMethods,
			}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

func (r *RecordPaymentRequest) ToPayment(ctx context.Context, invoiceID string) *payment.Payment {
	receivedAt := time.Now().UTC()
	if r.ReceivedAt != nil {
		receivedAt = r.ReceivedAt.UTC()
	}

	return &payment.Payment{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:  invoiceID,
		Amount:     r.Amount,
		Method:     r.Method,
		Reference:  r.Reference,
		Notes:      r.Notes,
		ReceivedAt: receivedAt,
		RecordedBy: types.GetUserID(ctx),
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
}

// InsuranceAdjustmentRequest shifts the insurance adjustment by Delta.
// A positive delta is a shortfall absorbed by the facility, a negative delta a per-diem profit.
type InsuranceAdjustmentRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

func (r *InsuranceAdjustmentRequest) Validate() error {
	if r.Delta.IsZero() {
		return ierr.NewError("adjustment delta must not be zero").
			WithHint("Provide a non-zero insurance adjustment").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ClaimPaymentRequest settles an insurance claim. The adjustment is applied before
// the claim amount is checked against the balance.
type ClaimPaymentRequest struct {
	ClaimAmount     decimal.Decimal `json:"claim_amount" binding:"required"`
	AdjustmentDelta decimal.Decimal `json:"adjustment_delta"`
	Reference       string          `json:"reference,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

func (r *ClaimPaymentRequest) Validate() error {
	if !r.ClaimAmount.IsPositive() {
		return ierr.NewError("claim amount must be greater than 0").
			WithHint("Claim amount must be greater than 0").
			WithReason(ierr.ReasonInvalidPaymentAmount, map[string]any{
				"claim_amount": r.ClaimAmount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentResponse is a recorded payment together with the invoice after recompute
type PaymentResponse struct {
	*payment.Payment
	Invoice *InvoiceResponse `json:"invoice,omitempty"`
}

type ListPaymentsResponse struct {
	Items []*payment.Payment `json:"items"`
	Total decimal.Decimal    `json:"total"`
}
