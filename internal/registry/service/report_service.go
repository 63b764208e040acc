package service

import (
	"context"
	"iter"
	"slices"

	"docverify/internal/registry/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/audit"
	"docverify/pkg/platform/middleware/metadata"
	"docverify/pkg/requestcontext"
)

// SubmitReport records a public report. Priority is derived from the concern
// type here and never recomputed. The submitter's IP and device are kept for
// abuse triage.
func (s *Service) SubmitReport(ctx context.Context, content models.ReportContent) (*models.Report, error) {
	reporter := models.Reporter{
		ClientIP: requestcontext.ClientIP(ctx),
		Device:   metadata.DescribeUserAgent(requestcontext.UserAgent(ctx)),
	}
	r, err := models.NewReport(id.NewReportID(), content, reporter, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			de, _ := dErrors.From(err)
			return nil, dErrors.New(dErrors.CodeValidation, de.Message)
		}
		return nil, err
	}
	if err := s.reports.Create(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create report")
	}

	s.logAudit(ctx, audit.EventReportSubmitted,
		"subject", r.ID.String(),
		"record_id", r.ID.String(),
		"reason", string(r.ConcernType),
	)
	s.metrics.IncrementReportSubmitted(string(r.Priority))
	return r, nil
}

func (s *Service) GetReport(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	r, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, wrapReportErr(err)
	}
	return r, nil
}

// ListReports yields matching reports lazily in insertion order.
func (s *Service) ListReports(ctx context.Context, filter models.ReportFilter) iter.Seq2[*models.Report, error] {
	return func(yield func(*models.Report, error) bool) {
		for r, err := range s.reports.List(ctx, filter) {
			if err != nil {
				yield(nil, wrapReportErr(err))
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// RecentReports returns matching reports with the most recent reportDate first.
// Reports filed at the same instant keep insertion order.
func (s *Service) RecentReports(ctx context.Context, filter models.ReportFilter) ([]*models.Report, error) {
	var out []*models.Report
	for r, err := range s.ListReports(ctx, filter) {
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b *models.Report) int {
		return b.ReportDate.Compare(a.ReportDate)
	})
	return out, nil
}

// AdvanceReportStatus moves a report forward. Skips are allowed; staying put
// or moving back is an InvalidTransition.
func (s *Service) AdvanceReportStatus(ctx context.Context, reportID id.ReportID, next models.ReportStatus) (*models.Report, error) {
	if reportID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "report id is required")
	}
	if !next.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "status must be one of pending, investigating, resolved")
	}

	var previous models.ReportStatus
	now := requestcontext.Now(ctx)
	updated, err := s.reports.Execute(ctx, reportID,
		func(r *models.Report) error {
			previous = r.Status
			return r.CanAdvanceTo(next)
		},
		func(r *models.Report) {
			r.ApplyStatus(next, now)
		},
	)
	if err != nil {
		return nil, wrapReportErr(err)
	}

	s.logAudit(ctx, audit.EventReportStatusChanged,
		"subject", updated.ID.String(),
		"record_id", updated.ID.String(),
		"reason", string(previous)+"->"+string(next),
	)
	return updated, nil
}
