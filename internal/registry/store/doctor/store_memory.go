// Package doctor persists doctor records. Every backend enforces license
// uniqueness and exposes Execute for atomic validate-then-mutate.
package doctor

import (
	"context"
	"iter"
	"sync"

	"docverify/internal/registry/models"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
)

// InMemory keeps doctors in process memory in insertion order.
type InMemory struct {
	mu        sync.RWMutex
	byID      map[id.DoctorID]*models.Doctor
	byLicense map[string]id.DoctorID
	order     []id.DoctorID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:      make(map[id.DoctorID]*models.Doctor),
		byLicense: make(map[string]id.DoctorID),
	}
}

// Create inserts a new doctor. A taken license returns sentinel.ErrAlreadyUsed
// and writes nothing.
func (s *InMemory) Create(_ context.Context, d *models.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byLicense[d.LicenseNumber]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.byID[d.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[d.ID] = d.Clone()
	s.byLicense[d.LicenseNumber] = d.ID
	s.order = append(s.order, d.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, doctorID id.DoctorID) (*models.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[doctorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return d.Clone(), nil
}

func (s *InMemory) FindByLicense(_ context.Context, license string) (*models.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doctorID, ok := s.byLicense[license]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[doctorID].Clone(), nil
}

// List yields matching doctors lazily in insertion order. Each record is read
// at the moment it is yielded, so it reflects the latest committed value.
func (s *InMemory) List(ctx context.Context, filter models.DoctorFilter) iter.Seq2[*models.Doctor, error] {
	return func(yield func(*models.Doctor, error) bool) {
		s.mu.RLock()
		ids := append([]id.DoctorID(nil), s.order...)
		s.mu.RUnlock()

		for _, doctorID := range ids {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			s.mu.RLock()
			d := s.byID[doctorID].Clone()
			s.mu.RUnlock()
			if !filter.Matches(d) {
				continue
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}

func (s *InMemory) Count(_ context.Context, filter models.DoctorFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.byID {
		if filter.Matches(d) {
			n++
		}
	}
	return n, nil
}

// Execute runs validate then mutate on a copy of the record under the store
// lock and commits the copy only if validate passes.
func (s *InMemory) Execute(_ context.Context, doctorID id.DoctorID, validate func(*models.Doctor) error, mutate func(*models.Doctor)) (*models.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[doctorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.byID[doctorID] = working
	return working.Clone(), nil
}
