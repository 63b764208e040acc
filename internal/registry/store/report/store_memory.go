// Package report persists public reports about doctors.
package report

import (
	"context"
	"iter"
	"sync"

	"docverify/internal/registry/models"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
)

// InMemory keeps reports in process memory in insertion order.
type InMemory struct {
	mu    sync.RWMutex
	byID  map[id.ReportID]*models.Report
	order []id.ReportID
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.ReportID]*models.Report)}
}

func (s *InMemory) Create(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[r.ID] = r.Clone()
	s.order = append(s.order, r.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, reportID id.ReportID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemory) List(ctx context.Context, filter models.ReportFilter) iter.Seq2[*models.Report, error] {
	return func(yield func(*models.Report, error) bool) {
		s.mu.RLock()
		ids := append([]id.ReportID(nil), s.order...)
		s.mu.RUnlock()

		for _, reportID := range ids {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			s.mu.RLock()
			r := s.byID[reportID].Clone()
			s.mu.RUnlock()
			if !filter.Matches(r) {
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (s *InMemory) Count(_ context.Context, filter models.ReportFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.byID {
		if filter.Matches(r) {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) Execute(_ context.Context, reportID id.ReportID, validate func(*models.Report) error, mutate func(*models.Report)) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[reportID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.byID[reportID] = working
	return working.Clone(), nil
}
