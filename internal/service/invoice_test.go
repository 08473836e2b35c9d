package service

import (
	"sync"
	"testing"

	"github.com/medbill/ledger/internal/api/dto"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	ledgerServiceSuite
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) TestGetOrCreateInvoice() {
	first := s.openVisitInvoice("visit-1", "patient-1")
	s.Equal(types.InvoiceStatusPending, first.InvoiceStatus)
	s.Equal("visit:visit-1", first.SubjectKey)
	s.NotEmpty(first.InvoiceNumber)
	s.decEqual("0", first.TotalAmount)

	second, err := s.invoiceService.GetOrCreateInvoice(s.GetContext(), &dto.CreateInvoiceRequest{
		PatientID: "patient-1",
		VisitID:   "visit-1",
	})
	s.NoError(err)
	s.Equal(first.ID, second.ID)

	// a patient-level invoice is a different subject
	patientLevel, err := s.invoiceService.GetOrCreateInvoice(s.GetContext(), &dto.CreateInvoiceRequest{
		PatientID: "patient-1",
	})
	s.NoError(err)
	s.NotEqual(first.ID, patientLevel.ID)

	s.Len(s.GetPublisher().Events(types.EventInvoiceUpdated), 2)
}

func (s *InvoiceServiceSuite) TestGetOrCreateInvoiceSubjectValidation() {
	tests := []struct {
		name string
		req  *dto.CreateInvoiceRequest
	}{
		{
			name: "both patient and deceased",
			req:  &dto.CreateInvoiceRequest{PatientID: "patient-1", DeceasedID: "deceased-1"},
		},
		{
			name: "neither patient nor deceased",
			req:  &dto.CreateInvoiceRequest{},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.invoiceService.GetOrCreateInvoice(s.GetContext(), tt.req)
			s.Error(err)
			s.True(ierr.IsValidation(err))
			s.True(ierr.HasReason(err, ierr.ReasonSubjectAmbiguous))
		})
	}
}

func (s *InvoiceServiceSuite) TestConcurrentGetOrCreateConverges() {
	const callers = 16

	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := s.invoiceService.GetOrCreateInvoice(s.GetContext(), &dto.CreateInvoiceRequest{
				DeceasedID: "deceased-1",
			})
			errs[i] = err
			if err == nil {
				ids[i] = resp.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		s.NoError(errs[i])
		s.Equal(ids[0], ids[i])
	}

	list, err := s.invoiceService.ListInvoices(s.GetContext(), &dto.ListInvoicesRequest{DeceasedID: "deceased-1"})
	s.NoError(err)
	s.Equal(1, list.Total)
}

func (s *InvoiceServiceSuite) TestAddItemSnapshotsCatalog() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.GetStores().CatalogRepo.AddService("svc-xray", "Chest X-Ray", "Radiology", dec("1500"))
	s.GetStores().CatalogRepo.AddInventoryItem("inv-paracetamol", "Paracetamol 500mg", dec("20"))

	resp, err := s.invoiceService.AddItem(s.GetContext(), inv.ID, &dto.AddItemRequest{
		ServiceID: "svc-xray",
	})
	s.NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal("Chest X-Ray", resp.Items[0].Name)
	s.Equal(types.ItemSourceService, resp.Items[0].Source)
	s.decEqual("1", resp.Items[0].Quantity)
	s.decEqual("1500", resp.Items[0].Amount)

	resp, err = s.invoiceService.AddItem(s.GetContext(), inv.ID, &dto.AddItemRequest{
		InventoryItemID: "inv-paracetamol",
		Quantity:        lo.ToPtr(decimal.NewFromInt(10)),
	})
	s.NoError(err)
	s.Require().Len(resp.Items, 2)
	s.Equal("Paracetamol 500mg", resp.Items[1].Name)
	s.decEqual("200", resp.Items[1].Amount)

	s.decEqual("1700", resp.TotalAmount)
	s.decEqual("1700", resp.Balance)
	s.Equal(types.InvoiceStatusPending, resp.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestAddItemExplicitPriceWins() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.GetStores().CatalogRepo.AddService("svc-consult", "Consultation", "Outpatient", dec("1000"))

	discounted := dec("750")
	resp, err := s.invoiceService.AddItem(s.GetContext(), inv.ID, &dto.AddItemRequest{
		ServiceID: "svc-consult",
		Name:      "Follow-up consultation",
		UnitPrice: &discounted,
	})
	s.NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal("Follow-up consultation", resp.Items[0].Name)
	s.decEqual("750", resp.Items[0].Amount)
}

func (s *InvoiceServiceSuite) TestAddItemValidation() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	negative := dec("-10")

	_, err := s.invoiceService.AddItem(s.GetContext(), inv.ID, &dto.AddItemRequest{
		Name:      "Refund",
		UnitPrice: &negative,
	})
	s.Error(err)
	s.True(ierr.HasReason(err, ierr.ReasonInvalidLineAmount))

	price := dec("500")
	for _, quantity := range []string{"0", "-2"} {
		_, err = s.invoiceService.AddItem(s.GetContext(), inv.ID, &dto.AddItemRequest{
			Name:      "Consultation",
			Quantity:  lo.ToPtr(dec(quantity)),
			UnitPrice: &price,
		})
		s.Error(err, "quantity %s", quantity)
		s.True(ierr.HasReason(err, ierr.ReasonInvalidLineAmount), "quantity %s", quantity)
	}

	subCent := dec("0.005")
	_, err = s.invoiceService.AddItem(s.GetContext(), inv.ID, &dto.AddItemRequest{
		Name:      "Swab",
		Quantity:  lo.ToPtr(dec("3")),
		UnitPrice: &subCent,
	})
	s.Error(err)
	s.True(ierr.HasReason(err, ierr.ReasonInvalidLineAmount))

	_, err = s.invoiceService.AddItem(s.GetContext(), inv.ID, &dto.AddItemRequest{
		ServiceID: "svc-missing",
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	stored, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Empty(stored.Items)
	s.decEqual("0", stored.TotalAmount)
}

func (s *InvoiceServiceSuite) TestDeleteItem() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(inv.ID, "Lab panel", "500")
	resp := s.addManualItem(inv.ID, "Dressing", "300")
	s.Require().Len(resp.Items, 2)
	labID, dressingID := resp.Items[0].ID, resp.Items[1].ID

	s.pay(inv.ID, "500")

	_, err := s.invoiceService.DeleteItem(s.GetContext(), labID)
	s.Error(err)
	s.True(ierr.HasReason(err, ierr.ReasonItemAlreadySettled))

	resp, err = s.invoiceService.DeleteItem(s.GetContext(), dressingID)
	s.NoError(err)
	s.Len(resp.Items, 1)
	s.decEqual("500", resp.TotalAmount)
	s.Equal(types.InvoiceStatusPaid, resp.InvoiceStatus)

	_, err = s.invoiceService.DeleteItem(s.GetContext(), dressingID)
	s.True(ierr.IsNotFound(err))

	// the row is kept for audit
	all := s.GetStores().InvoiceRepo.AllItems(s.GetContext(), inv.ID)
	s.Len(all, 2)
}

func (s *InvoiceServiceSuite) TestDistributePaymentsIsIdempotent() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(inv.ID, "Ward round", "500")
	s.addManualItem(inv.ID, "Medication", "300")
	s.pay(inv.ID, "600")

	first, err := s.invoiceService.DistributePayments(s.GetContext(), inv.ID)
	s.NoError(err)
	second, err := s.invoiceService.DistributePayments(s.GetContext(), inv.ID)
	s.NoError(err)

	s.Require().Len(second.Items, 2)
	for i := range first.Items {
		s.Equal(first.Items[i].ID, second.Items[i].ID)
		s.decEqual(first.Items[i].PaidAmount.String(), second.Items[i].PaidAmount)
	}
	s.decEqual("500", second.Items[0].PaidAmount)
	s.decEqual("100", second.Items[1].PaidAmount)
	s.decEqual(first.TotalAmount.String(), second.TotalAmount)
	s.decEqual(first.PaidAmount.String(), second.PaidAmount)
	s.Equal(first.InvoiceStatus, second.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestCancelInvoice() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(inv.ID, "Registration", "200")

	resp, err := s.invoiceService.CancelInvoice(s.GetContext(), inv.ID, &dto.CancelInvoiceRequest{Reason: "opened in error"})
	s.NoError(err)
	s.Equal(types.InvoiceStatusCancelled, resp.InvoiceStatus)
	s.Contains(resp.Notes, "Cancelled: opened in error")
	s.Require().Len(resp.Items, 1)
	s.True(resp.Items[0].IsSettled())
	s.Len(s.GetPublisher().Events(types.EventInvoiceCancelled), 1)

	// cancelling again changes nothing
	again, err := s.invoiceService.CancelInvoice(s.GetContext(), inv.ID, &dto.CancelInvoiceRequest{Reason: "again"})
	s.NoError(err)
	s.NotContains(again.Notes, "again")
	s.Len(s.GetPublisher().Events(types.EventInvoiceCancelled), 1)

	// cancelled is final
	unitPrice := dec("50")
	_, err = s.invoiceService.AddItem(s.GetContext(), inv.ID, &dto.AddItemRequest{Name: "Late charge", UnitPrice: &unitPrice})
	s.True(ierr.HasReason(err, ierr.ReasonInvoiceCancelled))

	_, err = s.paymentService.RecordPayment(s.GetContext(), inv.ID, &dto.RecordPaymentRequest{
		Amount: dec("50"),
		Method: types.PaymentMethodCash,
	})
	s.True(ierr.HasReason(err, ierr.ReasonInvoiceCancelled))

	distributed, err := s.invoiceService.DistributePayments(s.GetContext(), inv.ID)
	s.NoError(err)
	s.True(distributed.Items[0].IsSettled())

	// the subject can be billed again on a fresh invoice
	reopened := s.openVisitInvoice("visit-1", "patient-1")
	s.NotEqual(inv.ID, reopened.ID)
	s.Equal(types.InvoiceStatusPending, reopened.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestCancelInvoiceWithPayments() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(inv.ID, "Theatre fee", "5000")
	s.pay(inv.ID, "1000")

	_, err := s.invoiceService.CancelInvoice(s.GetContext(), inv.ID, &dto.CancelInvoiceRequest{Reason: "duplicate"})
	s.Error(err)
	s.True(ierr.HasReason(err, ierr.ReasonInvoiceHasPayments))

	stored, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPartial, stored.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestListOutstandingItems() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(inv.ID, "Ward round", "500")
	s.addManualItem(inv.ID, "Medication", "300")
	s.pay(inv.ID, "600")

	resp, err := s.invoiceService.ListOutstandingItems(s.GetContext(), &dto.ListInvoicesRequest{VisitID: "visit-1"})
	s.NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal("Medication", resp.Items[0].Item.Name)
	s.Equal(inv.InvoiceNumber, resp.Items[0].InvoiceNumber)
	s.decEqual("200", resp.Items[0].Outstanding)
	s.decEqual("200", resp.TotalOutstanding)

	_, err = s.invoiceService.ListOutstandingItems(s.GetContext(), &dto.ListInvoicesRequest{})
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestCheckBillingClearance() {
	inv := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(inv.ID, "Delivery package", "8000")

	req := &dto.ListInvoicesRequest{VisitID: "visit-1"}
	resp, err := s.invoiceService.CheckBillingClearance(s.GetContext(), req)
	s.NoError(err)
	s.False(resp.Cleared)
	s.decEqual("8000", resp.OutstandingBalance)
	s.Equal([]string{inv.ID}, resp.InvoiceIDs)

	s.pay(inv.ID, "8000")

	resp, err = s.invoiceService.CheckBillingClearance(s.GetContext(), req)
	s.NoError(err)
	s.True(resp.Cleared)
	s.decEqual("0", resp.OutstandingBalance)
	s.Empty(resp.InvoiceIDs)
}
