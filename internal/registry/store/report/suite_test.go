package report

import (
	"context"
	"iter"
	"time"

	"github.com/stretchr/testify/suite"

	"docverify/internal/registry/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
)

type store interface {
	Create(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) iter.Seq2[*models.Report, error]
	Count(ctx context.Context, filter models.ReportFilter) (int, error)
	Execute(ctx context.Context, reportID id.ReportID, validate func(*models.Report) error, mutate func(*models.Report)) (*models.Report, error)
}

type contractSuite struct {
	suite.Suite
	ctx      context.Context
	store    store
	newStore func() store
}

func (s *contractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
}

func (s *contractSuite) newReport(concern models.ConcernType) *models.Report {
	r, err := models.NewReport(id.NewReportID(), models.ReportContent{
		DoctorName:  "Dr. Fake",
		Location:    "Springfield",
		ConcernType: concern,
		Description: "suspicious diploma",
	}, models.Reporter{ClientIP: "203.0.113.7", Device: "Chrome on Linux"}, time.Now().UTC().Truncate(time.Millisecond))
	s.Require().NoError(err)
	return r
}

func (s *contractSuite) TestCreateAndFind() {
	r := s.newReport(models.ConcernImpersonation)
	s.Require().NoError(s.store.Create(s.ctx, r))

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.PriorityHigh, found.Priority)
	s.Equal(models.ReportStatusPending, found.Status)
	s.False(found.Resolved)
	s.Equal("Chrome on Linux", found.Reporter.Device)

	_, err = s.store.FindByID(s.ctx, id.NewReportID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestListFiltersInInsertionOrder() {
	high := s.newReport(models.ConcernFakeCredentials)
	medium := s.newReport(models.ConcernExpiredLicense)
	low := s.newReport("billing")
	for _, r := range []*models.Report{high, medium, low} {
		s.Require().NoError(s.store.Create(s.ctx, r))
	}

	var all []id.ReportID
	for r, err := range s.store.List(s.ctx, models.ReportFilter{}) {
		s.Require().NoError(err)
		all = append(all, r.ID)
	}
	s.Equal([]id.ReportID{high.ID, medium.ID, low.ID}, all)

	var lows []models.ConcernType
	for r, err := range s.store.List(s.ctx, models.ReportFilter{Priority: models.PriorityLow}) {
		s.Require().NoError(err)
		lows = append(lows, r.ConcernType)
	}
	s.Equal([]models.ConcernType{"billing"}, lows)
}

func (s *contractSuite) TestExecuteAdvancesForwardOnly() {
	r := s.newReport(models.ConcernOther)
	s.Require().NoError(s.store.Create(s.ctx, r))

	advance := func(next models.ReportStatus) (*models.Report, error) {
		return s.store.Execute(s.ctx, r.ID,
			func(cur *models.Report) error { return cur.CanAdvanceTo(next) },
			func(cur *models.Report) { cur.ApplyStatus(next, time.Now().UTC()) },
		)
	}

	updated, err := advance(models.ReportStatusResolved)
	s.Require().NoError(err)
	s.True(updated.Resolved)

	_, err = advance(models.ReportStatusInvestigating)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	stored, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.ReportStatusResolved, stored.Status)
	s.True(stored.Resolved)

	open, err := s.store.Count(s.ctx, models.ReportFilter{OpenOnly: true})
	s.Require().NoError(err)
	s.Equal(0, open)
}
