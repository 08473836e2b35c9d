package postgres

import (
	"context"

	"github.com/medbill/ledger/internal/domain/payment"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/postgres"
	"github.com/medbill/ledger/internal/types"
	"github.com/shopspring/decimal"
)

const paymentColumns = `id, invoice_id, amount, method, reference, notes, received_at, recorded_by,
	status, created_at, updated_at, created_by, updated_by`

type paymentRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return &paymentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (
			:id, :invoice_id, :amount, :method, :reference, :notes, :received_at, :recorded_by,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating payment",
		"payment_id", p.ID,
		"invoice_id", p.InvoiceID,
		"amount", p.Amount.String(),
		"method", p.Method,
	)

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, p); err != nil {
		return postgres.WrapError(err, "failed to create payment")
	}
	return nil
}

func (r *paymentRepository) List(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE invoice_id = $1 AND status = $2
		ORDER BY received_at ASC, id ASC`

	var payments []*payment.Payment
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments, query, invoiceID, types.StatusPublished); err != nil {
		return nil, postgres.WrapError(err, "failed to list payments")
	}
	return payments, nil
}

func (r *paymentRepository) Sum(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1 AND status = $2`

	var total decimal.Decimal
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &total, query, invoiceID, types.StatusPublished); err != nil {
		return decimal.Zero, postgres.WrapError(err, "failed to sum payments")
	}
	return total, nil
}
