package types

import (
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/samber/lo"
)

// StayKind is the kind of long-running episode that accrues daily charges
type StayKind string

const (
	StayKindInpatient StayKind = "INPATIENT"
	StayKindMortuary  StayKind = "MORTUARY"
)

func (k StayKind) Validate() error {
	allowed := []StayKind{StayKindInpatient, StayKindMortuary}
	if !lo.Contains(allowed, k) {
		return ierr.NewError("invalid stay kind").
			WithHint("Stay must be an inpatient admission or a mortuary case").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// WardType mirrors the ward categories used by the inpatient module
type WardType string

const (
	WardTypeGeneral   WardType = "General"
	WardTypeICU       WardType = "ICU"
	WardTypeHDU       WardType = "HDU"
	WardTypePediatric WardType = "Pediatric"
	WardTypeMaternity WardType = "Maternity"
	WardTypeSurgical  WardType = "Surgical"
	WardTypeEmergency WardType = "Emergency"
)
