package errors

import (
	"strings"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

// Reason is the precise cause attached to a validation error.
type Reason string

const (
	ReasonInvalidLineAmount      Reason = "INVALID_LINE_AMOUNT"
	ReasonItemAlreadySettled     Reason = "ITEM_ALREADY_SETTLED"
	ReasonClaimExceedsBalance    Reason = "CLAIM_EXCEEDS_BALANCE"
	ReasonPaymentExceedsBalance  Reason = "PAYMENT_EXCEEDS_BALANCE"
	ReasonAdjustmentExceedsTotal Reason = "ADJUSTMENT_EXCEEDS_TOTAL"
	ReasonSubjectAmbiguous       Reason = "SUBJECT_AMBIGUOUS"
	ReasonInvoiceCancelled       Reason = "INVOICE_CANCELLED"
	ReasonInvoiceHasPayments     Reason = "INVOICE_HAS_PAYMENTS"
	ReasonInvalidPaymentAmount   Reason = "INVALID_PAYMENT_AMOUNT"
	ReasonUnknownPaymentMethod   Reason = "UNKNOWN_PAYMENT_METHOD"
)

const (
	reasonKey         = "reason"
	safeDetailsPrefix = "__json__:"
)

// WithReason attaches a reason alongside any other reportable details.
func (b *ErrorBuilder) WithReason(reason Reason, details map[string]any) *ErrorBuilder {
	merged := make(map[string]any, len(details)+1)
	for k, v := range details {
		merged[k] = v
	}
	merged[reasonKey] = string(reason)
	return b.WithReportableDetails(merged)
}

// ReasonOf returns the reason attached to err, or "" when none was recorded.
func ReasonOf(err error) Reason {
	details := SafeDetails(err)
	if r, ok := details[reasonKey].(string); ok {
		return Reason(r)
	}
	return ""
}

// HasReason is shorthand for ReasonOf(err) == reason.
func HasReason(err error, reason Reason) bool {
	return err != nil && ReasonOf(err) == reason
}

// SafeDetails collects every reportable detail map recorded along the error chain.
func SafeDetails(err error) map[string]any {
	details := make(map[string]any)
	if err == nil {
		return details
	}

	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			if !strings.HasPrefix(payload, safeDetailsPrefix) {
				continue
			}
			var jsonDetails map[string]any
			if err := jsoniter.UnmarshalFromString(payload[len(safeDetailsPrefix):], &jsonDetails); err == nil {
				for k, v := range jsonDetails {
					details[k] = v
				}
			}
		}
	}

	return details
}
