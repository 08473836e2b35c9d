package service

import (
	"testing"

	"github.com/medbill/ledger/internal/api/dto"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type TransferServiceSuite struct {
	ledgerServiceSuite
}

func TestTransferService(t *testing.T) {
	suite.Run(t, new(TransferServiceSuite))
}

// owed sums the balance of every live invoice of a patient
func (s *TransferServiceSuite) owed(patientID string) decimal.Decimal {
	resp, err := s.invoiceService.CheckBillingClearance(s.GetContext(), &dto.ListInvoicesRequest{PatientID: patientID})
	s.Require().NoError(err)
	return resp.OutstandingBalance
}

func (s *TransferServiceSuite) TestTransferUnpaidInvoice() {
	old := s.openVisitInvoice("visit-opd", "patient-1")
	s.addManualItem(old.ID, "Consultation", "400")
	s.addManualItem(old.ID, "Lab panel", "600")
	s.GetStores().Registration.AddVisit("visit-ipd", "patient-1")
	s.decEqual("1000", s.owed("patient-1"))

	resp, err := s.transferService.TransferInvoice(s.GetContext(), &dto.TransferInvoiceRequest{
		OldVisitID: "visit-opd",
		NewVisitID: "visit-ipd",
	})
	s.NoError(err)
	s.True(resp.Transferred)
	s.Equal(old.ID, resp.OldInvoiceID)
	s.Equal(2, resp.ItemsTransferred)
	s.decEqual("1000", resp.AmountTransferred)
	s.decEqual("0", resp.CreditCarried)

	cancelled, err := s.invoiceService.GetInvoice(s.GetContext(), old.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusCancelled, cancelled.InvoiceStatus)
	s.Contains(cancelled.Notes, "via admission transition")
	for _, item := range cancelled.Items {
		s.True(item.PaidAmount.Equal(item.Amount))
	}

	moved, err := s.invoiceService.GetInvoice(s.GetContext(), resp.NewInvoiceID)
	s.NoError(err)
	s.Equal("visit-ipd", moved.VisitID)
	s.Require().Len(moved.Items, 2)
	s.Equal("Consultation", moved.Items[0].Name)
	s.Equal("Lab panel", moved.Items[1].Name)
	s.decEqual("1000", moved.TotalAmount)
	s.Equal(types.InvoiceStatusPending, moved.InvoiceStatus)
	s.Contains(moved.Notes, "Items transferred from Invoice #"+old.InvoiceNumber)

	s.decEqual("1000", s.owed("patient-1"))
	s.Len(s.GetPublisher().Events(types.EventInvoiceTransferred), 1)
	s.Len(s.GetPublisher().Events(types.EventInvoiceCancelled), 1)
}

func (s *TransferServiceSuite) TestTransferCarriesPartialPayment() {
	old := s.openVisitInvoice("visit-opd", "patient-1")
	s.addManualItem(old.ID, "Consultation", "500")
	s.addManualItem(old.ID, "Imaging", "300")
	s.pay(old.ID, "600")

	// the new visit already has charges of its own
	newInv := s.openVisitInvoice("visit-ipd", "patient-1")
	s.addManualItem(newInv.ID, "Admission fee", "1000")
	s.decEqual("1200", s.owed("patient-1"))

	resp, err := s.transferService.TransferInvoice(s.GetContext(), &dto.TransferInvoiceRequest{
		OldVisitID: "visit-opd",
		NewVisitID: "visit-ipd",
	})
	s.NoError(err)
	s.Equal(newInv.ID, resp.NewInvoiceID)
	s.Equal(1, resp.ItemsTransferred)
	s.decEqual("300", resp.AmountTransferred)
	s.decEqual("100", resp.CreditCarried)

	moved, err := s.invoiceService.GetInvoice(s.GetContext(), newInv.ID)
	s.NoError(err)
	s.decEqual("1300", moved.TotalAmount)
	s.decEqual("100", moved.PaidAmount)
	s.decEqual("1200", moved.Balance)
	s.Equal(types.InvoiceStatusPartial, moved.InvoiceStatus)

	payments, err := s.paymentService.ListPayments(s.GetContext(), newInv.ID)
	s.NoError(err)
	s.Require().Len(payments.Items, 1)
	s.Equal(types.PaymentMethodTransferCredit, payments.Items[0].Method)
	s.Equal(old.InvoiceNumber, payments.Items[0].Reference)

	s.decEqual("1200", s.owed("patient-1"))
}

func (s *TransferServiceSuite) TestTransferCarriesInsuranceAdjustment() {
	old := s.openVisitInvoice("visit-opd", "patient-1")
	s.addManualItem(old.ID, "Consultation", "1000")
	_, err := s.paymentService.ApplyInsuranceAdjustment(s.GetContext(), old.ID, &dto.InsuranceAdjustmentRequest{Delta: dec("400")})
	s.Require().NoError(err)
	s.GetStores().Registration.AddVisit("visit-ipd", "patient-1")

	resp, err := s.transferService.TransferInvoice(s.GetContext(), &dto.TransferInvoiceRequest{
		OldVisitID: "visit-opd",
		NewVisitID: "visit-ipd",
	})
	s.NoError(err)

	moved, err := s.invoiceService.GetInvoice(s.GetContext(), resp.NewInvoiceID)
	s.NoError(err)
	s.decEqual("400", moved.InsuranceAdjustment)
	s.decEqual("600", moved.Balance)
	s.decEqual("600", s.owed("patient-1"))
}

func (s *TransferServiceSuite) TestFallsBackToPatientInvoice() {
	s.GetStores().Registration.AddVisit("visit-opd", "patient-1")
	s.GetStores().Registration.AddVisit("visit-ipd", "patient-1")

	patientLevel, err := s.invoiceService.GetOrCreateInvoice(s.GetContext(), &dto.CreateInvoiceRequest{PatientID: "patient-1"})
	s.Require().NoError(err)
	s.addManualItem(patientLevel.ID, "Pharmacy", "250")

	resp, err := s.transferService.TransferInvoice(s.GetContext(), &dto.TransferInvoiceRequest{
		OldVisitID: "visit-opd",
		NewVisitID: "visit-ipd",
	})
	s.NoError(err)
	s.True(resp.Transferred)
	s.Equal(patientLevel.ID, resp.OldInvoiceID)
}

func (s *TransferServiceSuite) TestNothingToTransfer() {
	old := s.openVisitInvoice("visit-opd", "patient-1")
	s.addManualItem(old.ID, "Consultation", "400")
	s.pay(old.ID, "400")
	s.GetStores().Registration.AddVisit("visit-ipd", "patient-1")

	resp, err := s.transferService.TransferInvoice(s.GetContext(), &dto.TransferInvoiceRequest{
		OldVisitID: "visit-opd",
		NewVisitID: "visit-ipd",
	})
	s.NoError(err)
	s.False(resp.Transferred)

	stored, err := s.invoiceService.GetInvoice(s.GetContext(), old.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, stored.InvoiceStatus)

	list, err := s.invoiceService.ListInvoices(s.GetContext(), &dto.ListInvoicesRequest{VisitID: "visit-ipd"})
	s.NoError(err)
	s.Zero(list.Total)
	s.Empty(s.GetPublisher().Events(types.EventInvoiceTransferred))
}

func (s *TransferServiceSuite) TestTransferValidation() {
	s.GetStores().Registration.AddVisit("visit-a", "patient-1")
	s.GetStores().Registration.AddVisit("visit-b", "patient-2")

	_, err := s.transferService.TransferInvoice(s.GetContext(), &dto.TransferInvoiceRequest{
		OldVisitID: "visit-a",
		NewVisitID: "visit-a",
	})
	s.True(ierr.IsValidation(err))

	_, err = s.transferService.TransferInvoice(s.GetContext(), &dto.TransferInvoiceRequest{
		OldVisitID: "visit-a",
		NewVisitID: "visit-b",
	})
	s.True(ierr.IsValidation(err))

	_, err = s.transferService.TransferInvoice(s.GetContext(), &dto.TransferInvoiceRequest{
		OldVisitID: "visit-a",
		NewVisitID: "visit-missing",
	})
	s.True(ierr.IsNotFound(err))
}
