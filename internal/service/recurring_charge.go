package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/medbill/ledger/internal/api/dto"
	"github.com/medbill/ledger/internal/domain/catalog"
	"github.com/medbill/ledger/internal/domain/charge"
	"github.com/medbill/ledger/internal/domain/invoice"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/publisher"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

// RecurringChargeService bills every active stay once per elapsed calendar day
type RecurringChargeService interface {
	// RunRecurringCharges bills each active stay for every day from its start through asOf that
	// has not been billed yet. It can be re-run any number of times for the same day.
	RunRecurringCharges(ctx context.Context, asOf time.Time) (*dto.RunSummary, error)
}

type recurringChargeService struct {
	ServiceParams
	resolver DailyServiceResolver
}

func NewRecurringChargeService(params ServiceParams, resolver DailyServiceResolver) RecurringChargeService {
	return &recurringChargeService{
		ServiceParams: params,
		resolver:      resolver,
	}
}

var errDayAlreadyBilled = ierr.NewError("day already billed").
	WithHint("This day has already been charged for the stay").
	Mark(ierr.ErrAlreadyExists)

// runRecorder collects per-stay outcomes from the worker pool
type runRecorder struct {
	mu      sync.Mutex
	summary *dto.RunSummary
}

func (r *runRecorder) record(fn func(s *dto.RunSummary)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.summary)
}

func (s *recurringChargeService) RunRecurringCharges(ctx context.Context, asOf time.Time) (*dto.RunSummary, error) {
	if types.GetUserID(ctx) == "" {
		ctx = types.SetUserID(ctx, types.SystemUserID)
	}
	asOf = types.NormalizeDay(asOf)
	log := s.Logger.WithContext(ctx)

	rec := &runRecorder{
		summary: &dto.RunSummary{
			RunID:     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE_RUN),
			AsOf:      types.FormatDay(asOf),
			Skipped:   make([]*dto.SkippedStay, 0),
			Failures:  make([]*dto.ChargeFailure, 0),
			StartedAt: time.Now().UTC(),
		},
	}

	stays, err := s.StaySource.ListActiveStays(ctx)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list active stays").
			Mark(ierr.ErrDatabase)
	}

	log.Infow("starting recurring charge run",
		"run_id", rec.summary.RunID,
		"as_of", rec.summary.AsOf,
		"stays", len(stays),
	)

	workers := s.Config.Billing.ChargesConcurrency
	if workers < 1 {
		workers = 1
	}

	// stays are independent of each other; days within a stay run in order
	p := pool.New().WithMaxGoroutines(workers)
	for _, stay := range stays {
		stay := stay
		p.Go(func() {
			s.processStay(ctx, stay, asOf, rec)
		})
	}
	p.Wait()

	summary := rec.summary
	summary.StaysProcessed = len(stays)
	summary.FinishedAt = time.Now().UTC()

	log.Infow("finished recurring charge run",
		"run_id", summary.RunID,
		"as_of", summary.AsOf,
		"stays_processed", summary.StaysProcessed,
		"items_created", summary.ItemsCreated,
		"already_billed", summary.AlreadyBilled,
		"skipped", len(summary.Skipped),
		"failures", len(summary.Failures),
	)

	publishEvents(ctx, s.ServiceParams, []*publisher.LedgerEvent{
		publisher.NewLedgerEvent(types.EventChargesRunCompleted, "", "", decimal.NewFromInt(int64(summary.ItemsCreated))).
			With("run_id", summary.RunID).
			With("as_of", summary.AsOf).
			With("stays_processed", summary.StaysProcessed).
			With("items_created", summary.ItemsCreated).
			With("failures", len(summary.Failures)).
			With("fatal", summary.HasFatal()),
	})

	return summary, nil
}

func (s *recurringChargeService) processStay(ctx context.Context, stay *charge.Stay, asOf time.Time, rec *runRecorder) {
	log := s.Logger.WithContext(ctx).With(
		"stay_id", stay.ID,
		"stay_kind", stay.Kind,
	)

	fail := func(serviceID, day string, err error, fatal bool) {
		rec.record(func(summary *dto.RunSummary) {
			summary.Failures = append(summary.Failures, &dto.ChargeFailure{
				StayID:    stay.ID,
				StayKind:  stay.Kind,
				ServiceID: serviceID,
				Day:       day,
				Error:     err.Error(),
				Fatal:     fatal,
			})
		})
	}

	if err := stay.Validate(); err != nil {
		log.Errorw("invalid stay, skipping", "error", err)
		fail("", "", err, false)
		return
	}

	svc, err := s.resolver.Resolve(ctx, stay)
	if err != nil {
		log.Errorw("failed to resolve daily service", "error", err)
		fail("", "", err, false)
		return
	}
	if svc == nil {
		rec.record(func(summary *dto.RunSummary) {
			summary.Skipped = append(summary.Skipped, &dto.SkippedStay{
				StayID:   stay.ID,
				StayKind: stay.Kind,
				Reason:   "no daily service found in catalog",
			})
		})
		return
	}

	charged, err := s.ChargeRepo.ListDays(ctx, stay.Kind, stay.ID, svc.ID)
	if err != nil {
		log.Errorw("failed to list charged days", "error", err, "service_id", svc.ID)
		fail(svc.ID, "", err, false)
		return
	}

	loc := billingLocation(s.ServiceParams)
	missing := charge.MissingDays(stay, asOf, charged, loc)
	inRange := len(types.DaysInclusive(types.DateOf(stay.StartedAt, loc), asOf))
	rec.record(func(summary *dto.RunSummary) {
		summary.AlreadyBilled += inRange - len(missing)
	})

	for _, day := range missing {
		err := s.chargeDay(ctx, stay, svc, day)
		switch {
		case err == nil:
			rec.record(func(summary *dto.RunSummary) {
				summary.ItemsCreated++
			})
		case ierr.IsAlreadyExists(err):
			// another run billed it between the listing and the insert
			rec.record(func(summary *dto.RunSummary) {
				summary.AlreadyBilled++
			})
		case ierr.IsIntegrity(err):
			log.Errorw("ledger integrity failure, aborting stay",
				"error", err,
				"service_id", svc.ID,
				"day", types.FormatDay(day),
			)
			s.Sentry.CaptureLedgerFailure(err, map[string]string{
				"stay_id":    stay.ID,
				"stay_kind":  string(stay.Kind),
				"service_id": svc.ID,
				"day":        types.FormatDay(day),
			})
			fail(svc.ID, types.FormatDay(day), err, true)
			return
		default:
			log.Errorw("failed to charge day",
				"error", err,
				"service_id", svc.ID,
				"day", types.FormatDay(day),
			)
			fail(svc.ID, types.FormatDay(day), err, false)
		}
	}
}

// chargeDay bills one day of a stay in its own transaction. The link insert is what makes the
// charge happen at most once: if it conflicts, the whole transaction is rolled back.
func (s *recurringChargeService) chargeDay(ctx context.Context, stay *charge.Stay, svc *catalog.Service, day time.Time) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, created, err := getOrCreateLiveInvoice(ctx, s.ServiceParams, stay.Subject)
		if err != nil {
			return err
		}
		if created {
			inv.AppendNote(autoInvoiceNote(stay))
		}

		totalBefore := inv.TotalAmount

		item, err := invoice.NewInvoiceItem(ctx, inv.ID, invoice.NewItemParams{
			Source:    types.ItemSourceService,
			ServiceID: svc.ID,
			Name:      fmt.Sprintf("%s - %s", svc.Name, types.FormatDay(day)),
			Quantity:  decimal.NewFromInt(1),
			UnitPrice: svc.Price,
		})
		if err != nil {
			return err
		}

		link := &charge.RecurringChargeLink{
			ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHARGE_LINK),
			StayKind:      stay.Kind,
			StayID:        stay.ID,
			ServiceID:     svc.ID,
			Day:           day,
			InvoiceItemID: item.ID,
			BaseModel:     types.GetDefaultBaseModel(ctx),
		}
		if err := s.ChargeRepo.Create(ctx, link); err != nil {
			if ierr.IsAlreadyExists(err) {
				return errDayAlreadyBilled
			}
			return err
		}

		if err := s.InvoiceRepo.CreateItem(ctx, item); err != nil {
			return err
		}

		if _, err := reconcile(ctx, s.ServiceParams, inv); err != nil {
			return err
		}

		if expected := totalBefore.Add(item.Amount); !inv.TotalAmount.Equal(expected) {
			return ierr.NewError("invoice total did not grow by the charged amount").
				WithHint("Ledger integrity check failed while billing a daily charge").
				WithReportableDetails(map[string]any{
					"invoice_id":     inv.ID,
					"total_before":   totalBefore.String(),
					"total_after":    inv.TotalAmount.String(),
					"charged_amount": item.Amount.String(),
				}).
				Mark(ierr.ErrIntegrity)
		}

		s.Logger.WithContext(ctx).Debugw("charged day",
			"stay_id", stay.ID,
			"service_id", svc.ID,
			"day", types.FormatDay(day),
			"invoice_id", inv.ID,
			"item_id", item.ID,
		)
		return nil
	})
}

func autoInvoiceNote(stay *charge.Stay) string {
	if stay.Kind == types.StayKindMortuary {
		return fmt.Sprintf("Auto-generated invoice for mortuary storage of %s.", stay.Subject.DeceasedID)
	}
	return fmt.Sprintf("Auto-generated invoice for inpatient admission %s.", stay.ID)
}
