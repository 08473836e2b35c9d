package invoice

import (
	"context"

	"github.com/medbill/ledger/internal/types"
)

// Filter narrows invoice listings. Empty fields match everything.
type Filter struct {
	PatientID        string
	DeceasedID       string
	VisitID          string
	SubjectKey       string
	Statuses         []types.InvoiceStatus
	ExcludeCancelled bool
}

// Repository defines the interface for ledger store operations on invoices and their items
type Repository interface {
	// Create inserts a new invoice
	Create(ctx context.Context, inv *Invoice) error

	// Get retrieves an invoice by ID
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetForUpdate retrieves an invoice and holds its row lock until the transaction ends
	GetForUpdate(ctx context.Context, id string) (*Invoice, error)

	// LockSubject serializes get-or-create callers for one subject key until the transaction ends
	LockSubject(ctx context.Context, subjectKey string) error

	// GetLiveBySubjectKey returns the non-cancelled invoice for the subject, locked. ErrNotFound if none.
	GetLiveBySubjectKey(ctx context.Context, subjectKey string) (*Invoice, error)

	// List returns invoices matching filter, newest first
	List(ctx context.Context, filter *Filter) ([]*Invoice, error)

	// Update persists an invoice if its version is unchanged and bumps the version.
	// A stale version yields ErrVersionConflict.
	Update(ctx context.Context, inv *Invoice) error

	// CreateItem inserts a new item
	CreateItem(ctx context.Context, item *InvoiceItem) error

	// GetItem retrieves a live item by ID
	GetItem(ctx context.Context, id string) (*InvoiceItem, error)

	// ListItems returns the live items of an invoice in FIFO order
	ListItems(ctx context.Context, invoiceID string) ([]*InvoiceItem, error)

	// DeleteItem soft deletes an item
	DeleteItem(ctx context.Context, item *InvoiceItem) error

	// BulkSetItemPaid writes paid amounts directly without triggering any recompute
	BulkSetItemPaid(ctx context.Context, allocations []Allocation) error
}
