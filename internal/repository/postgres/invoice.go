package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/medbill/ledger/internal/domain/invoice"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/postgres"
	"github.com/medbill/ledger/internal/types"
)

const invoiceColumns = `id, invoice_number, patient_id, deceased_id, visit_id, subject_key,
	invoice_status, total_amount, insurance_adjustment, paid_amount, due_date, notes, version,
	status, created_at, updated_at, created_by, updated_by`

const invoiceItemColumns = `id, invoice_id, source, service_id, inventory_item_id, name,
	quantity, unit_price, amount, paid_amount,
	status, created_at, updated_at, created_by, updated_by`

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewInvoiceRepository creates the ledger store for invoices and items
func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{
		db:     db,
		logger: logger,
	}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (
			:id, :invoice_number, :patient_id, :deceased_id, :visit_id, :subject_key,
			:invoice_status, :total_amount, :insurance_adjustment, :paid_amount, :due_date, :notes, :version,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)
		ON CONFLICT (subject_key) WHERE invoice_status <> 'CANCELLED' DO NOTHING`

	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"subject_key", inv.SubjectKey,
	)

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv)
	if err != nil {
		return postgres.WrapError(err, "failed to create invoice")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return postgres.WrapError(err, "failed to create invoice")
	}
	if affected == 0 {
		return ierr.NewError("live invoice already exists for subject").
			WithHint("The subject already has an open invoice").
			WithReportableDetails(map[string]any{"subject_key": inv.SubjectKey}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND status = $2`, id)
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND status = $2 FOR UPDATE`, id)
}

func (r *invoiceRepository) LockSubject(ctx context.Context, subjectKey string) error {
	if _, ok := postgres.GetTx(ctx); !ok {
		return ierr.NewError("subject lock requires a transaction").
			WithHint("Internal error").
			Mark(ierr.ErrSystem)
	}
	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, subjectKey)
	if err != nil {
		return postgres.WrapError(err, "failed to lock subject")
	}
	return nil
}

func (r *invoiceRepository) GetLiveBySubjectKey(ctx context.Context, subjectKey string) (*invoice.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE subject_key = $1 AND status = $2 AND invoice_status <> 'CANCELLED'
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`

	var inv invoice.Invoice
	err := r.db.GetQuerier(ctx).GetContext(ctx, &inv, query, subjectKey, types.StatusPublished)
	if err != nil {
		return nil, postgres.WrapError(err, fmt.Sprintf("failed to get live invoice for %s", subjectKey))
	}
	return &inv, nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *invoice.Filter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = &invoice.Filter{}
	}

	conditions := []string{"status = $1"}
	args := []interface{}{types.StatusPublished}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.PatientID != "" {
		add("patient_id = $%d", filter.PatientID)
	}
	if filter.DeceasedID != "" {
		add("deceased_id = $%d", filter.DeceasedID)
	}
	if filter.VisitID != "" {
		add("visit_id = $%d", filter.VisitID)
	}
	if filter.SubjectKey != "" {
		add("subject_key = $%d", filter.SubjectKey)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		add("invoice_status = ANY($%d)", pq.Array(statuses))
	}
	if filter.ExcludeCancelled {
		conditions = append(conditions, "invoice_status <> 'CANCELLED'")
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC, id DESC`

	var invoices []*invoice.Invoice
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, postgres.WrapError(err, "failed to list invoices")
	}
	return invoices, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	inv.UpdatedAt = time.Now().UTC()
	inv.UpdatedBy = types.GetUserID(ctx)

	query := `
		UPDATE invoices SET
			invoice_status = :invoice_status,
			total_amount = :total_amount,
			insurance_adjustment = :insurance_adjustment,
			paid_amount = :paid_amount,
			due_date = :due_date,
			notes = :notes,
			version = version + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND version = :version AND status = 'published'`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv)
	if err != nil {
		return postgres.WrapError(err, "failed to update invoice")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return postgres.WrapError(err, "failed to update invoice")
	}
	if affected == 0 {
		return ierr.NewError("invoice changed since it was read").
			WithHint("The invoice was modified concurrently, please retry").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"version":    inv.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	inv.Version++
	return nil
}

func (r *invoiceRepository) CreateItem(ctx context.Context, item *invoice.InvoiceItem) error {
	query := `
		INSERT INTO invoice_items (` + invoiceItemColumns + `)
		VALUES (
			:id, :invoice_id, :source, :service_id, :inventory_item_id, :name,
			:quantity, :unit_price, :amount, :paid_amount,
			:status, :created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating invoice item",
		"invoice_id", item.InvoiceID,
		"item_id", item.ID,
		"amount", item.Amount.String(),
	)

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, item); err != nil {
		return postgres.WrapError(err, "failed to create invoice item")
	}
	return nil
}

func (r *invoiceRepository) GetItem(ctx context.Context, id string) (*invoice.InvoiceItem, error) {
	query := `SELECT ` + invoiceItemColumns + ` FROM invoice_items WHERE id = $1 AND status = $2`

	var item invoice.InvoiceItem
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &item, query, id, types.StatusPublished); err != nil {
		return nil, postgres.WrapError(err, fmt.Sprintf("failed to get invoice item %s", id))
	}
	return &item, nil
}

func (r *invoiceRepository) ListItems(ctx context.Context, invoiceID string) ([]*invoice.InvoiceItem, error) {
	query := `
		SELECT ` + invoiceItemColumns + `
		FROM invoice_items
		WHERE invoice_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC`

	var items []*invoice.InvoiceItem
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &items, query, invoiceID, types.StatusPublished); err != nil {
		return nil, postgres.WrapError(err, "failed to list invoice items")
	}
	return items, nil
}

func (r *invoiceRepository) DeleteItem(ctx context.Context, item *invoice.InvoiceItem) error {
	query := `
		UPDATE invoice_items
		SET status = $1, updated_at = $2, updated_by = $3
		WHERE id = $4 AND status = $5`

	_, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.StatusDeleted,
		time.Now().UTC(),
		types.GetUserID(ctx),
		item.ID,
		types.StatusPublished,
	)
	if err != nil {
		return postgres.WrapError(err, "failed to delete invoice item")
	}
	item.Status = types.StatusDeleted
	return nil
}

// BulkSetItemPaid writes all allocations in one statement
func (r *invoiceRepository) BulkSetItemPaid(ctx context.Context, allocations []invoice.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}

	ids := make([]string, 0, len(allocations))
	amounts := make([]string, 0, len(allocations))
	for _, a := range allocations {
		ids = append(ids, a.ItemID)
		amounts = append(amounts, a.PaidAmount.String())
	}

	query := `
		UPDATE invoice_items AS it
		SET paid_amount = v.paid_amount, updated_at = NOW()
		FROM (
			SELECT UNNEST($1::text[]) AS id, UNNEST($2::numeric[]) AS paid_amount
		) AS v
		WHERE it.id = v.id`

	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, pq.Array(ids), pq.Array(amounts)); err != nil {
		return postgres.WrapError(err, "failed to set item paid amounts")
	}
	return nil
}

func (r *invoiceRepository) getOne(ctx context.Context, query, id string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &inv, query, id, types.StatusPublished); err != nil {
		return nil, postgres.WrapError(err, fmt.Sprintf("failed to get invoice %s", id))
	}
	return &inv, nil
}
