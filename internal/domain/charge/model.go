package charge

import (
	"time"

	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
)

// Stay is a long-running billable episode: an inpatient admission or an unreleased mortuary case.
type Stay struct {
	ID       string         `db:"id" json:"id"`
	Kind     types.StayKind `db:"kind" json:"kind"`
	Subject  types.Subject  `json:"subject"`
	WardType types.WardType `db:"ward_type" json:"ward_type,omitempty"`
	WardName string         `db:"ward_name" json:"ward_name,omitempty"`
	// StartedAt is the admission time. For mortuary cases it is the earliest morgue admission,
	// or the deceased registration time when no admission was recorded.
	StartedAt time.Time `db:"started_at" json:"started_at"`
}

func (s *Stay) Validate() error {
	if s.ID == "" {
		return ierr.NewError("stay id is required").
			WithHint("Stay must have an id").
			Mark(ierr.ErrValidation)
	}
	if err := s.Kind.Validate(); err != nil {
		return err
	}
	if s.StartedAt.IsZero() {
		return ierr.NewError("stay start is required").
			WithHint("Stay must have a start time").
			WithReportableDetails(map[string]any{"stay_id": s.ID}).
			Mark(ierr.ErrValidation)
	}
	return s.Subject.Validate()
}

// RecurringChargeLink proves a service was billed for a stay on one calendar day.
// At most one exists per (stay kind, stay, service, day).
type RecurringChargeLink struct {
	ID            string         `db:"id" json:"id"`
	StayKind      types.StayKind `db:"stay_kind" json:"stay_kind"`
	StayID        string         `db:"stay_id" json:"stay_id"`
	ServiceID     string         `db:"service_id" json:"service_id"`
	Day           time.Time      `db:"day" json:"day"`
	InvoiceItemID string         `db:"invoice_item_id" json:"invoice_item_id"`
	types.BaseModel
}

// MissingDays lists every calendar day of the stay from its start through asOf, inclusive,
// that is not in charged. Days are counted in loc. It never reads the clock.
func MissingDays(stay *Stay, asOf time.Time, charged []time.Time, loc *time.Location) []time.Time {
	start := types.DateOf(stay.StartedAt, loc)
	end := types.NormalizeDay(asOf)

	seen := make(map[string]struct{}, len(charged))
	for _, day := range charged {
		seen[types.FormatDay(day)] = struct{}{}
	}

	missing := make([]time.Time, 0)
	for _, day := range types.DaysInclusive(start, end) {
		if _, ok := seen[types.FormatDay(day)]; ok {
			continue
		}
		missing = append(missing, day)
	}
	return missing
}
