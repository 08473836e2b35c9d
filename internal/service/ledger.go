package service

import (
	"context"
	"time"

	"github.com/medbill/ledger/internal/domain/invoice"
	"github.com/medbill/ledger/internal/domain/payment"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/publisher"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
)

// The helpers below are the single code path every ledger mutation goes through.
// All of them expect to run inside a transaction opened by the caller.

// lockInvoice loads an invoice and holds its row lock until the transaction ends
func lockInvoice(ctx context.Context, p ServiceParams, invoiceID string) (*invoice.Invoice, error) {
	return p.InvoiceRepo.GetForUpdate(ctx, invoiceID)
}

// getOrCreateLiveInvoice returns the subject's one live invoice, opening it when there is none.
// Callers for the same subject serialize on the subject lock, so they converge on one invoice.
func getOrCreateLiveInvoice(ctx context.Context, p ServiceParams, subject types.Subject) (*invoice.Invoice, bool, error) {
	if err := subject.Validate(); err != nil {
		return nil, false, err
	}

	key := subject.Key()
	if err := p.InvoiceRepo.LockSubject(ctx, key); err != nil {
		return nil, false, err
	}

	inv, err := p.InvoiceRepo.GetLiveBySubjectKey(ctx, key)
	if err == nil {
		return inv, false, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, false, err
	}

	inv = newInvoice(ctx, p, subject)
	if err := p.InvoiceRepo.Create(ctx, inv); err != nil {
		if !ierr.IsAlreadyExists(err) {
			return nil, false, err
		}
		// a writer that did not take the subject lock got there first
		inv, err = p.InvoiceRepo.GetLiveBySubjectKey(ctx, key)
		if err != nil {
			return nil, false, err
		}
		return inv, false, nil
	}

	p.Logger.Infow("opened invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"subject_key", key,
	)
	return inv, true, nil
}

func newInvoice(ctx context.Context, p ServiceParams, subject types.Subject) *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		InvoiceNumber:       types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		Subject:             subject,
		SubjectKey:          subject.Key(),
		InvoiceStatus:       types.InvoiceStatusPending,
		TotalAmount:         decimal.Zero,
		InsuranceAdjustment: decimal.Zero,
		PaidAmount:          decimal.Zero,
		BaseModel:           types.GetDefaultBaseModel(ctx),
	}

	if days := p.Config.Billing.DefaultDueDays; days > 0 {
		due := inv.CreatedAt.AddDate(0, 0, days)
		inv.DueDate = &due
	}
	return inv
}

// addItem creates a priced line on an open invoice. The caller reconciles afterwards.
func addItem(ctx context.Context, p ServiceParams, inv *invoice.Invoice, params invoice.NewItemParams) (*invoice.InvoiceItem, error) {
	if err := ensureOpen(inv); err != nil {
		return nil, err
	}

	item, err := invoice.NewInvoiceItem(ctx, inv.ID, params)
	if err != nil {
		return nil, err
	}

	if err := p.InvoiceRepo.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// createPayment inserts a payment without any balance checks. The caller reconciles afterwards.
func createPayment(ctx context.Context, p ServiceParams, pay *payment.Payment) error {
	if err := pay.Validate(); err != nil {
		return err
	}
	return p.PaymentRepo.Create(ctx, pay)
}

// reconcile re-derives item paid amounts and invoice totals from the stored items and payments
// and persists them. It recomputes from scratch, so it is safe to run any number of times.
// Cancelled invoices keep their settled items untouched.
func reconcile(ctx context.Context, p ServiceParams, inv *invoice.Invoice) ([]*invoice.InvoiceItem, error) {
	items, err := p.InvoiceRepo.ListItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	paid, err := p.PaymentRepo.Sum(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	if !inv.IsCancelled() {
		changed := invoice.DistributePayments(items, paid)
		if len(changed) > 0 {
			if err := p.InvoiceRepo.BulkSetItemPaid(ctx, changed); err != nil {
				return nil, err
			}
		}
	}

	inv.ApplyTotals(items, paid)
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	if err := p.InvoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}
	return items, nil
}

func ensureOpen(inv *invoice.Invoice) error {
	if !inv.IsCancelled() {
		return nil
	}
	return ierr.NewError("invoice is cancelled").
		WithHintf("Invoice %s is cancelled and can no longer change", inv.InvoiceNumber).
		WithReason(ierr.ReasonInvoiceCancelled, map[string]any{
			"invoice_id": inv.ID,
		}).
		Mark(ierr.ErrValidation)
}

// statusEvents describes an invoice mutation as ledger events
func statusEvents(before types.InvoiceStatus, inv *invoice.Invoice) []*publisher.LedgerEvent {
	events := []*publisher.LedgerEvent{
		publisher.NewLedgerEvent(types.EventInvoiceUpdated, inv.ID, inv.SubjectKey, inv.Balance()).
			With("status", inv.InvoiceStatus).
			With("total_amount", inv.TotalAmount.String()).
			With("paid_amount", inv.PaidAmount.String()),
	}

	if before == inv.InvoiceStatus {
		return events
	}

	switch inv.InvoiceStatus {
	case types.InvoiceStatusPaid:
		events = append(events, publisher.NewLedgerEvent(types.EventInvoicePaid, inv.ID, inv.SubjectKey, inv.PaidAmount))
	case types.InvoiceStatusCancelled:
		events = append(events, publisher.NewLedgerEvent(types.EventInvoiceCancelled, inv.ID, inv.SubjectKey, inv.TotalAmount))
	}
	return events
}

// publishEvents sends events once their transaction has committed.
// Publishing failures are logged and never undo the committed ledger change.
func publishEvents(ctx context.Context, p ServiceParams, events []*publisher.LedgerEvent) {
	for _, event := range events {
		if err := p.EventPublisher.Publish(ctx, event); err != nil {
			p.Logger.WithContext(ctx).Errorw("failed to publish ledger event",
				"error", err,
				"event_type", event.Type,
				"invoice_id", event.InvoiceID,
			)
		}
	}
}

// billingLocation is the timezone calendar days are counted in
func billingLocation(p ServiceParams) *time.Location {
	return p.Config.Billing.Location()
}
