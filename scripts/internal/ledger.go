package internal

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/medbill/ledger/internal/api/dto"
	"github.com/medbill/ledger/internal/config"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/migrations"
	"github.com/medbill/ledger/internal/postgres"
	"github.com/medbill/ledger/internal/publisher"
	repo "github.com/medbill/ledger/internal/repository/postgres"
	"github.com/medbill/ledger/internal/sentry"
	"github.com/medbill/ledger/internal/service"
	"github.com/medbill/ledger/internal/types"
	"go.uber.org/fx"
)

type ledgerScript struct {
	log            *logger.Logger
	invoiceService service.InvoiceService
	app            *fx.App
}

func newLedgerScript(ctx context.Context) (*ledgerScript, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	s := &ledgerScript{}
	s.app = fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Provide(logger.NewLogger),
		sentry.Module(),
		postgres.Module(),
		repo.Module(),
		publisher.Module(),
		service.Module(),
		fx.Populate(&s.log, &s.invoiceService),
	)
	if err := s.app.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return s, nil
}

func (s *ledgerScript) close() {
	_ = s.app.Stop(context.Background())
}

func subjectFilter() (*dto.ListInvoicesRequest, error) {
	req := &dto.ListInvoicesRequest{
		PatientID:  os.Getenv("PATIENT_ID"),
		DeceasedID: os.Getenv("DECEASED_ID"),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// RedistributePatientInvoices re-runs payment distribution on every open invoice of a subject.
// Distribution is idempotent, so this only changes invoices whose item allocation drifted.
func RedistributePatientInvoices() error {
	req, err := subjectFilter()
	if err != nil {
		return err
	}

	ctx := types.SetUserID(context.Background(), types.SystemUserID)
	s, err := newLedgerScript(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	invoices, err := s.invoiceService.ListInvoices(ctx, req)
	if err != nil {
		return err
	}

	log.Printf("Found %d open invoices", invoices.Total)
	for _, inv := range invoices.Items {
		updated, err := s.invoiceService.DistributePayments(ctx, inv.ID)
		if err != nil {
			log.Printf("failed to redistribute invoice %s: %v", inv.InvoiceNumber, err)
			continue
		}
		log.Printf("invoice %s: status=%s paid=%s balance=%s",
			updated.InvoiceNumber, updated.InvoiceStatus, updated.PaidAmount, updated.Balance)
	}
	return nil
}

// PrintClearance prints whether the subject owes anything
func PrintClearance() error {
	req, err := subjectFilter()
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := newLedgerScript(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	clearance, err := s.invoiceService.CheckBillingClearance(ctx, req)
	if err != nil {
		return err
	}

	if clearance.Cleared {
		fmt.Println("Cleared: nothing outstanding")
		return nil
	}
	fmt.Printf("Not cleared: %s outstanding across %d invoices\n",
		clearance.OutstandingBalance.StringFixed(2), len(clearance.InvoiceIDs))
	for _, id := range clearance.InvoiceIDs {
		fmt.Printf("  %s\n", id)
	}
	return nil
}

// PrintSchema prints the embedded schema without connecting to a database
func PrintSchema() error {
	for _, stmt := range migrations.Statements() {
		fmt.Printf("%s;\n\n", stmt)
	}
	return nil
}
