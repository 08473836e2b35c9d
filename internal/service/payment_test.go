package service

import (
	"testing"

	"github.com/medbill/ledger/internal/api/dto"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/stretchr/testify/suite"
)

type PaymentServiceSuite struct {
	ledgerServiceSuite
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) TestPaymentsSettleOldestItemsFirst() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(inv.ID, "Surgery", "500")
	s.addManualItem(inv.ID, "Medication", "300")

	resp := s.pay(inv.ID, "600")
	s.Require().Len(resp.Invoice.Items, 2)
	s.decEqual("500", resp.Invoice.Items[0].PaidAmount)
	s.decEqual("100", resp.Invoice.Items[1].PaidAmount)
	s.Equal(types.InvoiceStatusPartial, resp.Invoice.InvoiceStatus)
	s.decEqual("200", resp.Invoice.Balance)

	resp = s.pay(inv.ID, "200")
	s.decEqual("300", resp.Invoice.Items[1].PaidAmount)
	s.decEqual("800", resp.Invoice.PaidAmount)
	s.Equal(types.InvoiceStatusPaid, resp.Invoice.InvoiceStatus)
	s.decEqual("0", resp.Invoice.Balance)

	s.Len(s.GetPublisher().Events(types.EventPaymentRecorded), 2)
	s.Len(s.GetPublisher().Events(types.EventInvoicePaid), 1)
}

func (s *PaymentServiceSuite) TestStatusBoundaries() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	resp := s.addManualItem(inv.ID, "Bed", "1200")
	s.Equal(types.InvoiceStatusPending, resp.InvoiceStatus)

	_, err := s.paymentService.RecordPayment(s.GetContext(), inv.ID, &dto.RecordPaymentRequest{
		Amount: dec("0"),
		Method: types.PaymentMethodCash,
	})
	s.True(ierr.IsValidation(err))

	_, err = s.paymentService.RecordPayment(s.GetContext(), inv.ID, &dto.RecordPaymentRequest{
		Amount: dec("100"),
		Method: types.PaymentMethodTransferCredit,
	})
	s.True(ierr.HasReason(err, ierr.ReasonUnknownPaymentMethod))

	stored, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPending, stored.InvoiceStatus)

	paid := s.pay(inv.ID, "1200")
	s.Equal(types.InvoiceStatusPaid, paid.Invoice.InvoiceStatus)
	for _, item := range paid.Invoice.Items {
		s.True(item.PaidAmount.Equal(item.Amount))
	}
}

func (s *PaymentServiceSuite) TestPaymentExceedingBalance() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(inv.ID, "Consultation", "1000")
	s.pay(inv.ID, "400")

	_, err := s.paymentService.RecordPayment(s.GetContext(), inv.ID, &dto.RecordPaymentRequest{
		Amount: dec("600.01"),
		Method: types.PaymentMethodMpesa,
	})
	s.Error(err)
	s.True(ierr.HasReason(err, ierr.ReasonPaymentExceedsBalance))

	list, err := s.paymentService.ListPayments(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Len(list.Items, 1)
	s.decEqual("400", list.Total)
}

func (s *PaymentServiceSuite) TestInsuranceClaimWithPerDiemProfit() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(inv.ID, "Admission package", "10000")

	resp, err := s.paymentService.RecordClaimPayment(s.GetContext(), inv.ID, &dto.ClaimPaymentRequest{
		ClaimAmount:     dec("12000"),
		AdjustmentDelta: dec("-2000"),
		Reference:       "NHIF-2291",
	})
	s.NoError(err)
	s.Equal(types.PaymentMethodInsurance, resp.Payment.Method)
	s.decEqual("-2000", resp.Invoice.InsuranceAdjustment)
	s.decEqual("12000", resp.Invoice.EffectiveAmount)
	s.decEqual("12000", resp.Invoice.PaidAmount)
	s.decEqual("0", resp.Invoice.Balance)
	s.Equal(types.InvoiceStatusPaid, resp.Invoice.InvoiceStatus)

	// item paid amounts never exceed the item amount
	s.Require().Len(resp.Invoice.Items, 1)
	s.decEqual("10000", resp.Invoice.Items[0].PaidAmount)
}

func (s *PaymentServiceSuite) TestClaimExceedingBalanceRollsBackAdjustment() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(inv.ID, "Admission package", "10000")

	_, err := s.paymentService.RecordClaimPayment(s.GetContext(), inv.ID, &dto.ClaimPaymentRequest{
		ClaimAmount:     dec("8000"),
		AdjustmentDelta: dec("3000"),
	})
	s.Error(err)
	s.True(ierr.HasReason(err, ierr.ReasonClaimExceedsBalance))

	stored, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.decEqual("0", stored.InsuranceAdjustment)
	s.decEqual("10000", stored.Balance)

	list, err := s.paymentService.ListPayments(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Empty(list.Items)
	s.Empty(s.GetPublisher().Events(types.EventPaymentRecorded))
}

func (s *PaymentServiceSuite) TestInsuranceAdjustment() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(inv.ID, "Admission package", "1000")

	resp, err := s.paymentService.ApplyInsuranceAdjustment(s.GetContext(), inv.ID, &dto.InsuranceAdjustmentRequest{Delta: dec("250")})
	s.NoError(err)
	s.decEqual("750", resp.EffectiveAmount)
	s.decEqual("750", resp.Balance)

	_, err = s.paymentService.ApplyInsuranceAdjustment(s.GetContext(), inv.ID, &dto.InsuranceAdjustmentRequest{Delta: dec("0")})
	s.True(ierr.IsValidation(err))

	// more than the total
	_, err = s.paymentService.ApplyInsuranceAdjustment(s.GetContext(), inv.ID, &dto.InsuranceAdjustmentRequest{Delta: dec("800")})
	s.True(ierr.HasReason(err, ierr.ReasonAdjustmentExceedsTotal))

	// more than what is still owed once payments are in
	s.pay(inv.ID, "600")
	_, err = s.paymentService.ApplyInsuranceAdjustment(s.GetContext(), inv.ID, &dto.InsuranceAdjustmentRequest{Delta: dec("200")})
	s.True(ierr.HasReason(err, ierr.ReasonAdjustmentExceedsTotal))

	stored, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.decEqual("250", stored.InsuranceAdjustment)
	s.decEqual("150", stored.Balance)

	// closing the gap settles the invoice
	resp, err = s.paymentService.ApplyInsuranceAdjustment(s.GetContext(), inv.ID, &dto.InsuranceAdjustmentRequest{Delta: dec("150")})
	s.NoError(err)
	s.decEqual("0", resp.Balance)
	s.Equal(types.InvoiceStatusPaid, resp.InvoiceStatus)
}

func (s *PaymentServiceSuite) TestListPaymentsUnknownInvoice() {
	_, err := s.paymentService.ListPayments(s.GetContext(), "inv_missing")
	s.True(ierr.IsNotFound(err))
}
