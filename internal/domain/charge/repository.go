package charge

import (
	"context"
	"time"

	"github.com/medbill/ledger/internal/types"
)

// Repository stores recurring charge links
type Repository interface {
	// Create inserts a link. A link that already exists for the same stay, service and day
	// yields ErrAlreadyExists, which callers treat as "already billed".
	Create(ctx context.Context, link *RecurringChargeLink) error

	// ListDays returns the days already billed for a stay and service
	ListDays(ctx context.Context, kind types.StayKind, stayID, serviceID string) ([]time.Time, error)
}

// StaySource lists the stays that are accruing daily charges right now.
// It is owned by the admission and mortuary modules.
type StaySource interface {
	ListActiveStays(ctx context.Context) ([]*Stay, error)
}
