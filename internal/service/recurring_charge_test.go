package service

import (
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/medbill/ledger/internal/api/dto"
	"github.com/medbill/ledger/internal/domain/charge"
	"github.com/medbill/ledger/internal/domain/invoice"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type RecurringChargeServiceSuite struct {
	ledgerServiceSuite
	admittedAt time.Time
}

func TestRecurringChargeService(t *testing.T) {
	suite.Run(t, new(RecurringChargeServiceSuite))
}

func (s *RecurringChargeServiceSuite) SetupTest() {
	s.ledgerServiceSuite.SetupTest()
	s.admittedAt = time.Date(2026, 3, 1, 22, 15, 0, 0, time.UTC)

	catalog := s.GetStores().CatalogRepo
	catalog.AddService("svc-general", "General Ward Bed", "Inpatient", decimal.NewFromInt(2400))
	catalog.AddService("svc-body", "Body Storage", "Morgue", decimal.NewFromInt(1500))
}

func (s *RecurringChargeServiceSuite) day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func (s *RecurringChargeServiceSuite) admit(stayID, visitID, patientID string) *charge.Stay {
	stay := &charge.Stay{
		ID:        stayID,
		Kind:      types.StayKindInpatient,
		Subject:   types.Subject{PatientID: patientID, VisitID: visitID},
		WardType:  types.WardTypeGeneral,
		WardName:  "Ward 4",
		StartedAt: s.admittedAt,
	}
	s.GetStores().Registration.AddVisit(visitID, patientID)
	s.GetStores().Registration.AddStay(stay)
	return stay
}

func (s *RecurringChargeServiceSuite) visitInvoices(visitID string) []*dto.InvoiceResponse {
	list, err := s.invoiceService.ListInvoices(s.GetContext(), &dto.ListInvoicesRequest{VisitID: visitID})
	s.Require().NoError(err)
	return list.Items
}

func (s *RecurringChargeServiceSuite) TestChargesEveryElapsedDay() {
	stay := s.admit("adm-1", "visit-1", "patient-1")

	summary, err := s.chargeService.RunRecurringCharges(s.GetContext(), s.day(4))
	s.NoError(err)
	s.Equal("2026-03-04", summary.AsOf)
	s.Equal(1, summary.StaysProcessed)
	s.Equal(4, summary.ItemsCreated)
	s.Equal(0, summary.AlreadyBilled)
	s.Empty(summary.Failures)
	s.Empty(summary.Skipped)

	invoices := s.visitInvoices("visit-1")
	s.Require().Len(invoices, 1)
	inv, err := s.invoiceService.GetInvoice(s.GetContext(), invoices[0].ID)
	s.NoError(err)
	s.decEqual("9600", inv.TotalAmount)
	s.Equal(types.InvoiceStatusPending, inv.InvoiceStatus)
	s.Contains(inv.Notes, "Auto-generated invoice for inpatient admission adm-1")
	s.Require().Len(inv.Items, 4)
	s.Equal("General Ward Bed - 2026-03-01", inv.Items[0].Name)
	s.Equal("General Ward Bed - 2026-03-04", inv.Items[3].Name)

	links := s.GetStores().ChargeRepo.Links(s.GetContext(), stay.ID)
	s.Require().Len(links, 4)
	for i, link := range links {
		s.Equal(s.day(i+1), link.Day)
		s.Equal("svc-general", link.ServiceID)
		s.Equal(inv.Items[i].ID, link.InvoiceItemID)
	}

	events := s.GetPublisher().Events(types.EventChargesRunCompleted)
	s.Require().Len(events, 1)
	s.Equal(summary.RunID, events[0].Payload["run_id"])
}

func (s *RecurringChargeServiceSuite) TestRerunIsIdempotent() {
	s.admit("adm-1", "visit-1", "patient-1")

	_, err := s.chargeService.RunRecurringCharges(s.GetContext(), s.day(4))
	s.NoError(err)
	before, err := s.invoiceService.GetInvoice(s.GetContext(), s.visitInvoices("visit-1")[0].ID)
	s.NoError(err)

	summary, err := s.chargeService.RunRecurringCharges(s.GetContext(), s.day(4))
	s.NoError(err)
	s.Equal(0, summary.ItemsCreated)
	s.Equal(4, summary.AlreadyBilled)

	after, err := s.invoiceService.GetInvoice(s.GetContext(), before.ID)
	s.NoError(err)
	s.decEqual(before.TotalAmount.String(), after.TotalAmount)
	s.Equal(before.Version, after.Version)
	s.Len(after.Items, 4)
	s.Len(s.GetStores().ChargeRepo.Links(s.GetContext(), "adm-1"), 4)

	// the next day only bills the new day
	summary, err = s.chargeService.RunRecurringCharges(s.GetContext(), s.day(5))
	s.NoError(err)
	s.Equal(1, summary.ItemsCreated)
	s.Equal(4, summary.AlreadyBilled)
}

func (s *RecurringChargeServiceSuite) TestChargesLandOnExistingInvoice() {
	s.admit("adm-1", "visit-1", "patient-1")
	existing := s.openVisitInvoice("visit-1", "patient-1")
	s.addManualItem(existing.ID, "Admission fee", "1000")
	s.pay(existing.ID, "1000")

	summary, err := s.chargeService.RunRecurringCharges(s.GetContext(), s.day(2))
	s.NoError(err)
	s.Equal(2, summary.ItemsCreated)

	invoices := s.visitInvoices("visit-1")
	s.Require().Len(invoices, 1)
	s.Equal(existing.ID, invoices[0].ID)
	s.decEqual("5800", invoices[0].TotalAmount)
	s.decEqual("4800", invoices[0].Balance)
	s.Equal(types.InvoiceStatusPartial, invoices[0].InvoiceStatus)
	s.NotContains(invoices[0].Notes, "Auto-generated")
}

func (s *RecurringChargeServiceSuite) TestMortuaryStorage() {
	s.GetStores().Registration.AddStay(&charge.Stay{
		ID:        "case-1",
		Kind:      types.StayKindMortuary,
		Subject:   types.Subject{DeceasedID: "deceased-1"},
		StartedAt: time.Date(2026, 3, 3, 4, 0, 0, 0, time.UTC),
	})

	summary, err := s.chargeService.RunRecurringCharges(s.GetContext(), s.day(4))
	s.NoError(err)
	s.Equal(2, summary.ItemsCreated)

	list, err := s.invoiceService.ListInvoices(s.GetContext(), &dto.ListInvoicesRequest{DeceasedID: "deceased-1"})
	s.NoError(err)
	s.Require().Equal(1, list.Total)
	s.decEqual("3000", list.Items[0].TotalAmount)
	s.Contains(list.Items[0].Notes, "mortuary storage of deceased-1")
}

func (s *RecurringChargeServiceSuite) TestStayWithoutServiceIsSkipped() {
	s.GetStores().CatalogRepo.Clear()
	s.admit("adm-1", "visit-1", "patient-1")

	summary, err := s.chargeService.RunRecurringCharges(s.GetContext(), s.day(4))
	s.NoError(err)
	s.Equal(0, summary.ItemsCreated)
	s.Require().Len(summary.Skipped, 1)
	s.Equal("adm-1", summary.Skipped[0].StayID)
	s.Empty(s.visitInvoices("visit-1"))
}

func (s *RecurringChargeServiceSuite) TestFutureAdmissionChargesNothing() {
	s.admit("adm-1", "visit-1", "patient-1")

	summary, err := s.chargeService.RunRecurringCharges(s.GetContext(), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Equal(0, summary.ItemsCreated)
	s.Equal(0, summary.AlreadyBilled)
	s.Empty(s.visitInvoices("visit-1"))
}

func (s *RecurringChargeServiceSuite) TestIntegrityFailureAbortsOnlyThatStay() {
	s.admit("adm-1", "visit-1", "patient-1")
	s.admit("adm-2", "visit-2", "patient-2")

	// corrupt the stored total of the first stay's invoice
	tampered := s.openVisitInvoice("visit-1", "patient-1")
	stored, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), tampered.ID)
	s.Require().NoError(err)
	stored.TotalAmount = decimal.NewFromInt(999)
	s.Require().NoError(s.GetStores().InvoiceRepo.Update(s.GetContext(), stored))

	summary, err := s.chargeService.RunRecurringCharges(s.GetContext(), s.day(3))
	s.NoError(err)
	s.True(summary.HasFatal())
	s.Require().Len(summary.Failures, 1)
	s.Equal("adm-1", summary.Failures[0].StayID)
	s.Equal("2026-03-01", summary.Failures[0].Day)
	s.True(summary.Failures[0].Fatal)
	s.Equal(3, summary.ItemsCreated)

	s.Empty(s.GetStores().ChargeRepo.Links(s.GetContext(), "adm-1"))
	s.Len(s.GetStores().ChargeRepo.Links(s.GetContext(), "adm-2"), 3)

	after, err := s.invoiceService.GetInvoice(s.GetContext(), tampered.ID)
	s.NoError(err)
	s.Empty(after.Items)
	s.decEqual("999", after.TotalAmount)
}

func (s *RecurringChargeServiceSuite) TestInvalidStayIsReported() {
	s.admit("adm-1", "visit-1", "patient-1")
	s.GetStores().Registration.AddStay(&charge.Stay{
		ID:      "adm-broken",
		Kind:    types.StayKindInpatient,
		Subject: types.Subject{PatientID: "patient-9", VisitID: "visit-9"},
	})

	summary, err := s.chargeService.RunRecurringCharges(s.GetContext(), s.day(1))
	s.NoError(err)
	s.Equal(2, summary.StaysProcessed)
	s.Equal(1, summary.ItemsCreated)
	s.Require().Len(summary.Failures, 1)
	s.Equal("adm-broken", summary.Failures[0].StayID)
	s.False(summary.Failures[0].Fatal)
	s.False(summary.HasFatal())
}

func (s *RecurringChargeServiceSuite) TestStoreErrorSkipsOnlyThatDay() {
	s.admit("adm-1", "visit-1", "patient-1")
	s.admit("adm-2", "visit-2", "patient-2")
	inv := s.openVisitInvoice("visit-1", "patient-1")

	store := s.GetStores().InvoiceRepo
	store.FailCreateItem = func(item *invoice.InvoiceItem) error {
		if item.InvoiceID == inv.ID && strings.HasSuffix(item.Name, "2026-03-02") {
			return errors.New("connection reset by peer")
		}
		return nil
	}

	summary, err := s.chargeService.RunRecurringCharges(s.GetContext(), s.day(3))
	s.NoError(err)
	s.False(summary.HasFatal())
	s.Equal(5, summary.ItemsCreated)
	s.Require().Len(summary.Failures, 1)
	s.Equal("adm-1", summary.Failures[0].StayID)
	s.Equal("2026-03-02", summary.Failures[0].Day)
	s.False(summary.Failures[0].Fatal)

	links := s.GetStores().ChargeRepo.Links(s.GetContext(), "adm-1")
	s.Require().Len(links, 2)
	s.Equal(s.day(1), links[0].Day)
	s.Equal(s.day(3), links[1].Day)
	s.Len(s.GetStores().ChargeRepo.Links(s.GetContext(), "adm-2"), 3)

	partial, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Len(partial.Items, 2)
	s.decEqual("4800", partial.TotalAmount)

	// the next run fills the gap
	store.FailCreateItem = nil
	summary, err = s.chargeService.RunRecurringCharges(s.GetContext(), s.day(3))
	s.NoError(err)
	s.Empty(summary.Failures)
	s.Equal(1, summary.ItemsCreated)
	s.Equal(5, summary.AlreadyBilled)

	s.Len(s.GetStores().ChargeRepo.Links(s.GetContext(), "adm-1"), 3)
	filled, err := s.invoiceService.GetInvoice(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Len(filled.Items, 3)
	s.decEqual("7200", filled.TotalAmount)
}
