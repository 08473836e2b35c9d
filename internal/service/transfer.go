package service

import (
	"context"
	"fmt"
	"time"

	"github.com/medbill/ledger/internal/api/dto"
	"github.com/medbill/ledger/internal/domain/invoice"
	"github.com/medbill/ledger/internal/domain/payment"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/publisher"
	"github.com/medbill/ledger/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// TransferService moves open balances when a patient's care setting changes
type TransferService interface {
	// TransferInvoice copies every open item of the previous visit's invoice onto the new visit's
	// invoice at full amount and cancels the previous invoice, all in one transaction.
	// The amount the patient owes is the same before and after.
	TransferInvoice(ctx context.Context, req *dto.TransferInvoiceRequest) (*dto.TransferResponse, error)
}

type transferService struct {
	ServiceParams
}

func NewTransferService(params ServiceParams) TransferService {
	return &transferService{
		ServiceParams: params,
	}
}

func (s *transferService) TransferInvoice(ctx context.Context, req *dto.TransferInvoiceRequest) (*dto.TransferResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	oldSubject, err := s.SubjectResolver.ResolveVisit(ctx, req.OldVisitID)
	if err != nil {
		return nil, err
	}
	newSubject, err := s.SubjectResolver.ResolveVisit(ctx, req.NewVisitID)
	if err != nil {
		return nil, err
	}
	if oldSubject.PatientID != newSubject.PatientID {
		return nil, ierr.NewError("visits belong to different patients").
			WithHint("Invoices can only be transferred between visits of the same patient").
			WithReportableDetails(map[string]any{
				"old_visit_id": req.OldVisitID,
				"new_visit_id": req.NewVisitID,
			}).
			Mark(ierr.ErrValidation)
	}

	resp := &dto.TransferResponse{
		AmountTransferred: decimal.Zero,
		CreditCarried:     decimal.Zero,
	}
	var events []*publisher.LedgerEvent

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		source, err := s.findSourceInvoice(ctx, req, oldSubject, newSubject)
		if err != nil || source == nil {
			return err
		}

		oldInv, err := lockInvoice(ctx, s.ServiceParams, source.ID)
		if err != nil {
			return err
		}
		if oldInv.IsCancelled() || oldInv.SubjectKey == newSubject.Key() {
			return nil
		}

		oldItems, err := s.InvoiceRepo.ListItems(ctx, oldInv.ID)
		if err != nil {
			return err
		}

		open := lo.Filter(oldItems, func(item *invoice.InvoiceItem, _ int) bool {
			return !item.IsSettled()
		})
		if len(open) == 0 {
			return nil
		}

		newInv, _, err := getOrCreateLiveInvoice(ctx, s.ServiceParams, newSubject)
		if err != nil {
			return err
		}

		oldBalance := oldInv.Balance()
		newBalanceBefore := newInv.Balance()
		newStatusBefore := newInv.InvoiceStatus

		// payments already absorbed by the items that stay behind; the rest follows the open items
		settledAmount := decimal.Zero
		for _, item := range oldItems {
			if item.IsSettled() {
				settledAmount = settledAmount.Add(item.Amount)
			}
		}
		credit := oldInv.PaidAmount.Sub(settledAmount)

		for _, item := range open {
			copied, err := addItem(ctx, s.ServiceParams, newInv, invoice.NewItemParams{
				Source:          item.Source,
				ServiceID:       item.ServiceID,
				InventoryItemID: item.InventoryItemID,
				Name:            item.Name,
				Quantity:        item.Quantity,
				UnitPrice:       item.UnitPrice,
			})
			if err != nil {
				return err
			}
			resp.AmountTransferred = resp.AmountTransferred.Add(copied.Amount)
		}

		newInv.InsuranceAdjustment = newInv.InsuranceAdjustment.Add(oldInv.InsuranceAdjustment)

		if credit.IsPositive() {
			err := createPayment(ctx, s.ServiceParams, &payment.Payment{
				ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
				InvoiceID:  newInv.ID,
				Amount:     credit,
				Method:     types.PaymentMethodTransferCredit,
				Reference:  oldInv.InvoiceNumber,
				Notes:      fmt.Sprintf("Amount already paid on Invoice #%s.", oldInv.InvoiceNumber),
				ReceivedAt: time.Now().UTC(),
				RecordedBy: types.GetUserID(ctx),
				BaseModel:  types.GetDefaultBaseModel(ctx),
			})
			if err != nil {
				return err
			}
		}

		newInv.AppendNote(fmt.Sprintf("Items transferred from Invoice #%s.", oldInv.InvoiceNumber))
		if _, err := reconcile(ctx, s.ServiceParams, newInv); err != nil {
			return err
		}

		if settled := invoice.SettleAll(oldItems); len(settled) > 0 {
			if err := s.InvoiceRepo.BulkSetItemPaid(ctx, settled); err != nil {
				return err
			}
		}
		oldStatusBefore := oldInv.InvoiceStatus
		oldInv.InvoiceStatus = types.InvoiceStatusCancelled
		oldInv.AppendNote(fmt.Sprintf("Items transferred to Invoice #%s via admission transition.", newInv.InvoiceNumber))
		if _, err := reconcile(ctx, s.ServiceParams, oldInv); err != nil {
			return err
		}

		if err := s.verifyTransfer(ctx, oldInv, newInv, newBalanceBefore.Add(oldBalance)); err != nil {
			return err
		}

		resp.Transferred = true
		resp.OldInvoiceID = oldInv.ID
		resp.NewInvoiceID = newInv.ID
		resp.ItemsTransferred = len(open)
		resp.CreditCarried = lo.Ternary(credit.IsPositive(), credit, decimal.Zero)

		events = append(events,
			publisher.NewLedgerEvent(types.EventInvoiceTransferred, newInv.ID, newInv.SubjectKey, resp.AmountTransferred).
				With("old_invoice_id", oldInv.ID).
				With("items_transferred", resp.ItemsTransferred).
				With("credit_carried", resp.CreditCarried.String()),
		)
		events = append(events, statusEvents(oldStatusBefore, oldInv)...)
		events = append(events, statusEvents(newStatusBefore, newInv)...)
		return nil
	})
	if err != nil {
		if ierr.IsIntegrity(err) {
			s.Sentry.CaptureLedgerFailure(err, map[string]string{
				"old_visit_id": req.OldVisitID,
				"new_visit_id": req.NewVisitID,
			})
		}
		return nil, err
	}

	if !resp.Transferred {
		s.Logger.WithContext(ctx).Infow("nothing to transfer",
			"old_visit_id", req.OldVisitID,
			"new_visit_id", req.NewVisitID,
		)
		return resp, nil
	}

	s.Logger.WithContext(ctx).Infow("transferred invoice",
		"old_invoice_id", resp.OldInvoiceID,
		"new_invoice_id", resp.NewInvoiceID,
		"items_transferred", resp.ItemsTransferred,
		"amount_transferred", resp.AmountTransferred.String(),
		"credit_carried", resp.CreditCarried.String(),
	)
	publishEvents(ctx, s.ServiceParams, events)
	return resp, nil
}

// findSourceInvoice picks the invoice to move from: the explicit one, else the live invoice of
// the previous visit, else the patient's most recent open invoice that is not the new visit's.
func (s *transferService) findSourceInvoice(ctx context.Context, req *dto.TransferInvoiceRequest, oldSubject, newSubject types.Subject) (*invoice.Invoice, error) {
	if req.PreviousInvoiceID != "" {
		inv, err := s.InvoiceRepo.Get(ctx, req.PreviousInvoiceID)
		if err != nil {
			return nil, err
		}
		if inv.PatientID != oldSubject.PatientID {
			return nil, ierr.NewError("invoice belongs to another patient").
				WithHint("The previous invoice must belong to the transferring patient").
				WithReportableDetails(map[string]any{"invoice_id": inv.ID}).
				Mark(ierr.ErrValidation)
		}
		return inv, nil
	}

	byVisit, err := s.InvoiceRepo.List(ctx, &invoice.Filter{
		SubjectKey:       oldSubject.Key(),
		ExcludeCancelled: true,
	})
	if err != nil {
		return nil, err
	}
	if len(byVisit) > 0 {
		return byVisit[0], nil
	}

	byPatient, err := s.InvoiceRepo.List(ctx, &invoice.Filter{
		PatientID: oldSubject.PatientID,
		Statuses:  []types.InvoiceStatus{types.InvoiceStatusPending, types.InvoiceStatusPartial},
	})
	if err != nil {
		return nil, err
	}
	candidate, ok := lo.Find(byPatient, func(inv *invoice.Invoice) bool {
		return inv.SubjectKey != newSubject.Key()
	})
	if !ok {
		return nil, nil
	}
	return candidate, nil
}

// verifyTransfer checks the transfer left the ledger consistent. Any mismatch rolls everything back.
func (s *transferService) verifyTransfer(ctx context.Context, oldInv, newInv *invoice.Invoice, expectedBalance decimal.Decimal) error {
	oldItems, err := s.InvoiceRepo.ListItems(ctx, oldInv.ID)
	if err != nil {
		return err
	}

	unsettled := lo.CountBy(oldItems, func(item *invoice.InvoiceItem) bool {
		return !item.IsSettled()
	})

	if oldInv.IsCancelled() && unsettled == 0 && newInv.Balance().Equal(expectedBalance) {
		return nil
	}

	return ierr.NewError("invoice transfer left the ledger inconsistent").
		WithHint("Invoice transfer could not be completed").
		WithReportableDetails(map[string]any{
			"old_invoice_id":   oldInv.ID,
			"new_invoice_id":   newInv.ID,
			"old_status":       oldInv.InvoiceStatus,
			"unsettled_items":  unsettled,
			"new_balance":      newInv.Balance().String(),
			"expected_balance": expectedBalance.String(),
		}).
		Mark(ierr.ErrIntegrity)
}
