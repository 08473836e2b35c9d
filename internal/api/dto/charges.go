package dto

import (
	"time"

	"github.com/medbill/ledger/internal/types"
)

// RunRecurringChargesRequest triggers the daily charge job. AsOf defaults to today.
type RunRecurringChargesRequest struct {
	AsOf string `json:"as_of,omitempty" form:"as_of"`
}

// ParseAsOf returns the requested calendar day, or today in loc
func (r *RunRecurringChargesRequest) ParseAsOf(loc *time.Location) (time.Time, error) {
	if r.AsOf == "" {
		return types.Today(loc), nil
	}
	return types.ParseDay(r.AsOf)
}

// SkippedStay is a stay that could not be billed because no daily service resolved
type SkippedStay struct {
	StayID   string         `json:"stay_id"`
	StayKind types.StayKind `json:"stay_kind"`
	Reason   string         `json:"reason"`
}

// ChargeFailure is one (stay, day) attempt that did not commit.
// Fatal marks integrity failures, which abort the rest of the stay.
type ChargeFailure struct {
	StayID    string         `json:"stay_id"`
	StayKind  types.StayKind `json:"stay_kind"`
	ServiceID string         `json:"service_id,omitempty"`
	Day       string         `json:"day,omitempty"`
	Error     string         `json:"error"`
	Fatal     bool           `json:"fatal"`
}

// RunSummary reports one run of the recurring charge generator
type RunSummary struct {
	RunID          string           `json:"run_id"`
	AsOf           string           `json:"as_of"`
	StaysProcessed int              `json:"stays_processed"`
	ItemsCreated   int              `json:"items_created"`
	AlreadyBilled  int              `json:"already_billed"`
	Skipped        []*SkippedStay   `json:"skipped,omitempty"`
	Failures       []*ChargeFailure `json:"failures,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
}

// HasFatal reports whether any stay hit an integrity failure
func (s *RunSummary) HasFatal() bool {
	for _, f := range s.Failures {
		if f.Fatal {
			return true
		}
	}
	return false
}
