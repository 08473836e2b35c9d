package service

import (
	"github.com/medbill/ledger/internal/api/dto"
	"github.com/medbill/ledger/internal/testutil"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
)

// ledgerServiceSuite wires every ledger service over the in-memory stores
type ledgerServiceSuite struct {
	testutil.BaseServiceTestSuite
	params ServiceParams

	invoiceService  InvoiceService
	paymentService  PaymentService
	resolver        DailyServiceResolver
	chargeService   RecurringChargeService
	transferService TransferService
}

func (s *ledgerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	s.params = NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		stores.InvoiceRepo,
		stores.PaymentRepo,
		stores.ChargeRepo,
		stores.CatalogRepo,
		stores.Registration,
		stores.Registration,
		s.GetCache(),
		s.GetPublisher(),
		s.GetSentry(),
	)

	s.invoiceService = NewInvoiceService(s.params)
	s.paymentService = NewPaymentService(s.params)
	s.resolver = NewDailyServiceResolver(s.params)
	s.chargeService = NewRecurringChargeService(s.params, s.resolver)
	s.transferService = NewTransferService(s.params)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (s *ledgerServiceSuite) decEqual(expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	s.Truef(actual.Equal(dec(expected)), "expected %s, got %s %v", expected, actual.String(), msgAndArgs)
}

// openVisitInvoice registers a visit and opens its invoice
func (s *ledgerServiceSuite) openVisitInvoice(visitID, patientID string) *dto.InvoiceResponse {
	s.GetStores().Registration.AddVisit(visitID, patientID)

	resp, err := s.invoiceService.GetOrCreateInvoice(s.GetContext(), &dto.CreateInvoiceRequest{
		PatientID: patientID,
		VisitID:   visitID,
	})
	s.Require().NoError(err)
	return resp
}

// addManualItem bills a one-off line at the given price
func (s *ledgerServiceSuite) addManualItem(invoiceID, name, price string) *dto.InvoiceResponse {
	unitPrice := dec(price)
	resp, err := s.invoiceService.AddItem(s.GetContext(), invoiceID, &dto.AddItemRequest{
		Name:      name,
		UnitPrice: &unitPrice,
	})
	s.Require().NoError(err)
	return resp
}

func (s *ledgerServiceSuite) pay(invoiceID, amount string) *dto.PaymentResponse {
	resp, err := s.paymentService.RecordPayment(s.GetContext(), invoiceID, &dto.RecordPaymentRequest{
		Amount: dec(amount),
		Method: types.PaymentMethodCash,
	})
	s.Require().NoError(err)
	return resp
}
