package service

import (
	"context"

	"docverify/internal/registry/models"
	"docverify/internal/registry/store"
	dErrors "docverify/pkg/domain-errors"
)

// SeedDemoData loads the demo doctors and reports through the normal
// lifecycle, so verified demo doctors carry real ledger receipts. Doctors
// already present are skipped; reports are only seeded into an empty store.
func (s *Service) SeedDemoData(ctx context.Context) error {
	for _, demo := range store.DemoDoctors() {
		d, err := s.SubmitDoctor(ctx, demo.LicenseNumber, demo.Profile)
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			continue
		}
		if err != nil {
			return err
		}
		if demo.Verified {
			if _, err := s.ApproveDoctor(ctx, d.ID, ""); err != nil {
				return err
			}
		}
	}

	existing, err := s.reports.Count(ctx, models.ReportFilter{})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count reports")
	}
	if existing > 0 {
		return nil
	}
	for _, demo := range store.DemoReports() {
		r, err := s.SubmitReport(ctx, demo.Content)
		if err != nil {
			return err
		}
		if demo.Status != models.ReportStatusPending {
			if _, err := s.AdvanceReportStatus(ctx, r.ID, demo.Status); err != nil {
				return err
			}
		}
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "demo data seeded")
	}
	return nil
}
