package types

import (
	"fmt"

	ierr "github.com/medbill/ledger/internal/errors"
)

// Subject is who an invoice is billed to: a patient (optionally for one visit) or a deceased person.
type Subject struct {
	PatientID  string `db:"patient_id" json:"patient_id,omitempty"`
	DeceasedID string `db:"deceased_id" json:"deceased_id,omitempty"`
	VisitID    string `db:"visit_id" json:"visit_id,omitempty"`
}

func (s Subject) Validate() error {
	hasPatient := s.PatientID != ""
	hasDeceased := s.DeceasedID != ""

	if hasPatient == hasDeceased {
		return ierr.NewError("invoice subject must be exactly one of patient or deceased").
			WithHint("Provide either a patient or a deceased record, not both").
			WithReason(ierr.ReasonSubjectAmbiguous, map[string]any{
				"patient_id":  s.PatientID,
				"deceased_id": s.DeceasedID,
			}).
			Mark(ierr.ErrValidation)
	}

	if hasDeceased && s.VisitID != "" {
		return ierr.NewError("deceased subjects are not billed per visit").
			WithHint("A visit can only be attached to a patient invoice").
			WithReason(ierr.ReasonSubjectAmbiguous, map[string]any{
				"deceased_id": s.DeceasedID,
				"visit_id":    s.VisitID,
			}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

// Key identifies the billing context that may hold at most one live invoice.
// A visit is its own context; a patient without a visit and a deceased record are each one context.
func (s Subject) Key() string {
	switch {
	case s.DeceasedID != "":
		return fmt.Sprintf("deceased:%s", s.DeceasedID)
	case s.VisitID != "":
		return fmt.Sprintf("visit:%s", s.VisitID)
	default:
		return fmt.Sprintf("patient:%s", s.PatientID)
	}
}

func (s Subject) String() string {
	return s.Key()
}
