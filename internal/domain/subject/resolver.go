package subject

import (
	"context"

	"github.com/medbill/ledger/internal/types"
)

// Resolver maps registration records to the billing subject they belong to.
// It is owned by the registration module.
type Resolver interface {
	// ResolveVisit returns the patient subject scoped to the visit
	ResolveVisit(ctx context.Context, visitID string) (types.Subject, error)
	// ResolveDeceased returns the deceased subject
	ResolveDeceased(ctx context.Context, deceasedID string) (types.Subject, error)
}
