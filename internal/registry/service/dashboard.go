package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"docverify/internal/registry/models"
	dErrors "docverify/pkg/domain-errors"
)

// Dashboard gathers the admin overview counters in parallel.
func (s *Service) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	g, ctx := errgroup.WithContext(ctx)
	active := true
	out := &models.Dashboard{}

	countDoctors := func(dst *int, filter models.DoctorFilter) {
		g.Go(func() error {
			n, err := s.doctors.Count(ctx, filter)
			*dst = n
			return err
		})
	}
	countReports := func(dst *int, filter models.ReportFilter) {
		g.Go(func() error {
			n, err := s.reports.Count(ctx, filter)
			*dst = n
			return err
		})
	}

	countDoctors(&out.PendingDoctors, models.DoctorFilter{Status: models.DoctorStatusPending})
	countDoctors(&out.VerifiedDoctors, models.DoctorFilter{Status: models.DoctorStatusVerified})
	countDoctors(&out.ActiveDoctors, models.DoctorFilter{IsActive: &active})
	countReports(&out.OpenReports, models.ReportFilter{OpenOnly: true})
	countReports(&out.HighPriorityReports, models.ReportFilter{OpenOnly: true, Priority: models.PriorityHigh})

	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build dashboard")
	}
	return out, nil
}
