package testutil

import (
	"context"
	"sync"

	"github.com/medbill/ledger/internal/domain/charge"
	"github.com/medbill/ledger/internal/domain/subject"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/samber/lo"
)

var (
	_ subject.Resolver  = (*InMemoryRegistrationStore)(nil)
	_ charge.StaySource = (*InMemoryRegistrationStore)(nil)
)

// InMemoryRegistrationStore stands in for the registration, inpatient and mortuary modules
type InMemoryRegistrationStore struct {
	mu       sync.RWMutex
	visits   map[string]string
	deceased map[string]bool
	stays    map[string]*charge.Stay
}

func NewInMemoryRegistrationStore() *InMemoryRegistrationStore {
	return &InMemoryRegistrationStore{
		visits:   make(map[string]string),
		deceased: make(map[string]bool),
		stays:    make(map[string]*charge.Stay),
	}
}

func (s *InMemoryRegistrationStore) AddVisit(visitID, patientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits[visitID] = patientID
}

func (s *InMemoryRegistrationStore) AddDeceased(deceasedID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deceased[deceasedID] = true
}

// AddStay registers an active stay
func (s *InMemoryRegistrationStore) AddStay(stay *charge.Stay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stays[stay.ID] = stay
}

// EndStay discharges or releases a stay
func (s *InMemoryRegistrationStore) EndStay(stayID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stays, stayID)
}

func (s *InMemoryRegistrationStore) ResolveVisit(ctx context.Context, visitID string) (types.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patientID, ok := s.visits[visitID]
	if !ok {
		return types.Subject{}, ierr.NewError("visit not found").
			WithHintf("Visit %s was not found", visitID).
			Mark(ierr.ErrNotFound)
	}
	return types.Subject{PatientID: patientID, VisitID: visitID}, nil
}

func (s *InMemoryRegistrationStore) ResolveDeceased(ctx context.Context, deceasedID string) (types.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.deceased[deceasedID] {
		return types.Subject{}, ierr.NewError("deceased not found").
			WithHintf("Deceased record %s was not found", deceasedID).
			Mark(ierr.ErrNotFound)
	}
	return types.Subject{DeceasedID: deceasedID}, nil
}

func (s *InMemoryRegistrationStore) ListActiveStays(ctx context.Context) ([]*charge.Stay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stays := lo.Values(s.stays)
	return lo.Map(stays, func(st *charge.Stay, _ int) *charge.Stay {
		cp := *st
		return &cp
	}), nil
}
