package service

import (
	"context"

	"github.com/medbill/ledger/internal/api/dto"
	"github.com/medbill/ledger/internal/domain/invoice"
	"github.com/medbill/ledger/internal/domain/payment"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/publisher"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
)

// PaymentService records money in and insurance adjustments
type PaymentService interface {
	RecordPayment(ctx context.Context, invoiceID string, req *dto.RecordPaymentRequest) (*dto.PaymentResponse, error)
	ApplyInsuranceAdjustment(ctx context.Context, invoiceID string, req *dto.InsuranceAdjustmentRequest) (*dto.InvoiceResponse, error)
	// RecordClaimPayment applies the claim's adjustment first and only then checks the claim against the balance
	RecordClaimPayment(ctx context.Context, invoiceID string, req *dto.ClaimPaymentRequest) (*dto.PaymentResponse, error)
	ListPayments(ctx context.Context, invoiceID string) (*dto.ListPaymentsResponse, error)
}

type paymentService struct {
	ServiceParams
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{
		ServiceParams: params,
	}
}

func (s *paymentService) RecordPayment(ctx context.Context, invoiceID string, req *dto.RecordPaymentRequest) (*dto.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		inv    *invoice.Invoice
		items  []*invoice.InvoiceItem
		pay    *payment.Payment
		before types.InvoiceStatus
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = lockInvoice(ctx, s.ServiceParams, invoiceID)
		if err != nil {
			return err
		}
		before = inv.InvoiceStatus

		if err := ensureOpen(inv); err != nil {
			return err
		}

		if req.Amount.GreaterThan(inv.Balance()) {
			return ierr.NewError("payment exceeds balance").
				WithHintf("Payment of %s exceeds the outstanding balance of %s", req.Amount.String(), inv.Balance().String()).
				WithReason(ierr.ReasonPaymentExceedsBalance, map[string]any{
					"invoice_id": inv.ID,
					"amount":     req.Amount.String(),
					"balance":    inv.Balance().String(),
				}).
				Mark(ierr.ErrValidation)
		}

		pay = req.ToPayment(ctx, inv.ID)
		if err := createPayment(ctx, s.ServiceParams, pay); err != nil {
			return err
		}

		items, err = reconcile(ctx, s.ServiceParams, inv)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("recorded payment",
		"invoice_id", inv.ID,
		"payment_id", pay.ID,
		"amount", pay.Amount.String(),
		"method", pay.Method,
		"status", inv.InvoiceStatus,
	)

	publishEvents(ctx, s.ServiceParams, append(
		[]*publisher.LedgerEvent{paymentEvent(inv, pay)},
		statusEvents(before, inv)...,
	))

	return &dto.PaymentResponse{
		Payment: pay,
		Invoice: dto.NewInvoiceResponse(inv, items),
	}, nil
}

func (s *paymentService) ApplyInsuranceAdjustment(ctx context.Context, invoiceID string, req *dto.InsuranceAdjustmentRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		inv    *invoice.Invoice
		items  []*invoice.InvoiceItem
		before types.InvoiceStatus
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = lockInvoice(ctx, s.ServiceParams, invoiceID)
		if err != nil {
			return err
		}
		before = inv.InvoiceStatus

		items, err = applyAdjustment(ctx, s.ServiceParams, inv, req.Delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("applied insurance adjustment",
		"invoice_id", inv.ID,
		"delta", req.Delta.String(),
		"insurance_adjustment", inv.InsuranceAdjustment.String(),
		"balance", inv.Balance().String(),
	)

	publishEvents(ctx, s.ServiceParams, statusEvents(before, inv))
	return dto.NewInvoiceResponse(inv, items), nil
}

func (s *paymentService) RecordClaimPayment(ctx context.Context, invoiceID string, req *dto.ClaimPaymentRequest) (*dto.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		inv    *invoice.Invoice
		items  []*invoice.InvoiceItem
		pay    *payment.Payment
		before types.InvoiceStatus
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = lockInvoice(ctx, s.ServiceParams, invoiceID)
		if err != nil {
			return err
		}
		before = inv.InvoiceStatus

		if !req.AdjustmentDelta.IsZero() {
			if _, err := applyAdjustment(ctx, s.ServiceParams, inv, req.AdjustmentDelta); err != nil {
				return err
			}
		}

		if err := ensureOpen(inv); err != nil {
			return err
		}

		// returning here rolls the adjustment back with everything else
		if req.ClaimAmount.GreaterThan(inv.Balance()) {
			return ierr.NewError("claim exceeds balance").
				WithHintf("Claim of %s exceeds the balance of %s after adjustment", req.ClaimAmount.String(), inv.Balance().String()).
				WithReason(ierr.ReasonClaimExceedsBalance, map[string]any{
					"invoice_id":           inv.ID,
					"claim_amount":         req.ClaimAmount.String(),
					"balance":              inv.Balance().String(),
					"insurance_adjustment": inv.InsuranceAdjustment.String(),
				}).
				Mark(ierr.ErrValidation)
		}

		paymentReq := &dto.RecordPaymentRequest{
			Amount:    req.ClaimAmount,
			Method:    types.PaymentMethodInsurance,
			Reference: req.Reference,
			Notes:     req.Notes,
		}
		pay = paymentReq.ToPayment(ctx, inv.ID)
		if err := createPayment(ctx, s.ServiceParams, pay); err != nil {
			return err
		}

		items, err = reconcile(ctx, s.ServiceParams, inv)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("recorded insurance claim",
		"invoice_id", inv.ID,
		"payment_id", pay.ID,
		"claim_amount", pay.Amount.String(),
		"insurance_adjustment", inv.InsuranceAdjustment.String(),
		"status", inv.InvoiceStatus,
	)

	publishEvents(ctx, s.ServiceParams, append(
		[]*publisher.LedgerEvent{paymentEvent(inv, pay)},
		statusEvents(before, inv)...,
	))

	return &dto.PaymentResponse{
		Payment: pay,
		Invoice: dto.NewInvoiceResponse(inv, items),
	}, nil
}

func (s *paymentService) ListPayments(ctx context.Context, invoiceID string) (*dto.ListPaymentsResponse, error) {
	if _, err := s.InvoiceRepo.Get(ctx, invoiceID); err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.List(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	return &dto.ListPaymentsResponse{
		Items: payments,
		Total: payment.Sum(payments),
	}, nil
}

// applyAdjustment shifts the insurance adjustment and recomputes. The effective amount may not
// drop below zero and the balance may not go negative: a negative adjustment only ever raises
// what the facility expects to collect.
func applyAdjustment(ctx context.Context, p ServiceParams, inv *invoice.Invoice, delta decimal.Decimal) ([]*invoice.InvoiceItem, error) {
	if err := ensureOpen(inv); err != nil {
		return nil, err
	}

	inv.InsuranceAdjustment = inv.InsuranceAdjustment.Add(delta)

	if inv.EffectiveAmount().IsNegative() || inv.Balance().IsNegative() {
		return nil, ierr.NewError("adjustment exceeds invoice total").
			WithHint("The insurance adjustment cannot exceed what is still owed on the invoice").
			WithReason(ierr.ReasonAdjustmentExceedsTotal, map[string]any{
				"invoice_id":           inv.ID,
				"delta":                delta.String(),
				"total_amount":         inv.TotalAmount.String(),
				"insurance_adjustment": inv.InsuranceAdjustment.String(),
				"paid_amount":          inv.PaidAmount.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	return reconcile(ctx, p, inv)
}

func paymentEvent(inv *invoice.Invoice, pay *payment.Payment) *publisher.LedgerEvent {
	return publisher.NewLedgerEvent(types.EventPaymentRecorded, inv.ID, inv.SubjectKey, pay.Amount).
		With("payment_id", pay.ID).
		With("method", pay.Method).
		With("reference", pay.Reference)
}
