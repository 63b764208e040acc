package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/ledger"
	"docverify/internal/ledger/journal"
	"docverify/internal/registry/models"
	doctorstore "docverify/internal/registry/store/doctor"
	reportstore "docverify/internal/registry/store/report"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/requestcontext"
	"docverify/pkg/testutil"
)

func newJournalService(t *testing.T) *Service {
	t.Helper()
	client := ledger.NewJournalClient(journal.New(journal.NewMemoryBackend()))
	return New(doctorstore.NewInMemory(), reportstore.NewInMemory(), client,
		WithDefaultApprover(defaultApprover))
}

func reportContent(concern models.ConcernType) models.ReportContent {
	return models.ReportContent{
		DoctorName:  "Dr. Fake",
		Location:    "Springfield",
		ConcernType: concern,
		Description: "no record with the medical board",
	}
}

func TestSubmitReport(t *testing.T) {
	svc := newJournalService(t)
	ctx := requestcontext.WithClientMetadata(
		requestcontext.WithTime(context.Background(), testNow),
		"198.51.100.4",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	)

	testutil.Given(t, "an impersonation report", func(t *testing.T) {
		r, err := svc.SubmitReport(ctx, reportContent(models.ConcernImpersonation))
		require.NoError(t, err)

		testutil.Then(t, "it is high priority, pending and unresolved", func(t *testing.T) {
			assert.Equal(t, models.PriorityHigh, r.Priority)
			assert.Equal(t, models.ReportStatusPending, r.Status)
			assert.False(t, r.Resolved)
			assert.Equal(t, testNow, r.ReportDate)
		})

		testutil.Then(t, "reporter metadata is captured", func(t *testing.T) {
			assert.Equal(t, "198.51.100.4", r.Reporter.ClientIP)
			assert.Contains(t, r.Reporter.Device, "Chrome")
		})
	})

	testutil.Given(t, "a report missing its description", func(t *testing.T) {
		c := reportContent(models.ConcernOther)
		c.Description = ""
		_, err := svc.SubmitReport(ctx, c)

		testutil.Then(t, "it is a validation error naming the field", func(t *testing.T) {
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), "description")
		})
	})
}

func TestAdvanceReportStatus(t *testing.T) {
	svc := newJournalService(t)
	ctx := requestcontext.WithTime(context.Background(), testNow)
	r, err := svc.SubmitReport(ctx, reportContent(models.ConcernExpiredLicense))
	require.NoError(t, err)

	updated, err := svc.AdvanceReportStatus(ctx, r.ID, models.ReportStatusInvestigating)
	require.NoError(t, err)
	assert.False(t, updated.Resolved)

	_, err = svc.AdvanceReportStatus(ctx, r.ID, models.ReportStatusPending)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	_, err = svc.AdvanceReportStatus(ctx, r.ID, models.ReportStatusInvestigating)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "same state is not a move")

	updated, err = svc.AdvanceReportStatus(ctx, r.ID, models.ReportStatusResolved)
	require.NoError(t, err)
	assert.True(t, updated.Resolved)
	assert.Equal(t, models.PriorityMedium, updated.Priority, "priority is never recomputed")

	_, err = svc.AdvanceReportStatus(ctx, id.NewReportID(), models.ReportStatusResolved)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.AdvanceReportStatus(ctx, r.ID, "closed")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRecentReportsNewestFirst(t *testing.T) {
	svc := newJournalService(t)
	base := context.Background()

	for i, concern := range []models.ConcernType{models.ConcernOther, models.ConcernFakeCredentials, models.ConcernExpiredLicense} {
		ctx := requestcontext.WithTime(base, testNow.Add(time.Duration(i)*time.Hour))
		_, err := svc.SubmitReport(ctx, reportContent(concern))
		require.NoError(t, err)
	}

	reports, err := svc.RecentReports(base, models.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, models.ConcernExpiredLicense, reports[0].ConcernType)
	assert.Equal(t, models.ConcernOther, reports[2].ConcernType)

	high, err := svc.RecentReports(base, models.ReportFilter{Priority: models.PriorityHigh})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, models.ConcernFakeCredentials, high[0].ConcernType)
}

func TestDashboardAndSeed(t *testing.T) {
	svc := newJournalService(t)
	ctx := requestcontext.WithTime(context.Background(), testNow)

	require.NoError(t, svc.SeedDemoData(ctx))
	require.NoError(t, svc.SeedDemoData(ctx), "seeding twice is a no-op")

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.Dashboard{
		PendingDoctors:      1,
		VerifiedDoctors:     4,
		ActiveDoctors:       4,
		OpenReports:         2,
		HighPriorityReports: 1,
	}, dash)

	jane, err := svc.LookupDoctor(ctx, "MD12345678")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Jane Smith", jane.Name)
	require.NotNil(t, jane.Verification)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, jane.Verification.LedgerReceipt)
	assert.WithinDuration(t, testNow.Add(730*24*time.Hour), jane.Verification.ExpiryDate, 24*time.Hour)
}

func TestApproveThroughJournalLedger(t *testing.T) {
	svc := newJournalService(t)
	ctx := requestcontext.WithTime(context.Background(), testNow)

	d, err := svc.SubmitDoctor(ctx, "MD1", profile("Dr. A"))
	require.NoError(t, err)
	approved, err := svc.ApproveDoctor(ctx, d.ID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, approved.Verification.LedgerReceipt)

	view, err := svc.ledger.QueryRegistration(ctx, "MD1")
	require.NoError(t, err)
	assert.Equal(t, approved.Verification.LedgerReceipt, view.RegistrationReceipt.String())

	revoked, err := svc.RevokeLicense(ctx, "MD1", "")
	require.NoError(t, err)
	assert.False(t, revoked.IsActive)

	view, err = svc.ledger.QueryRegistration(ctx, "MD1")
	require.NoError(t, err)
	assert.False(t, view.IsActive)
	assert.NotEqual(t, view.RegistrationReceipt, view.LatestReceipt)
}

// A license re-registered after the local store lost its record must not be
// verified on the earlier registrant's anchor.
func TestApproveRefusesStaleJournalAnchor(t *testing.T) {
	client := ledger.NewJournalClient(journal.New(journal.NewMemoryBackend()))
	earlier := requestcontext.WithTime(context.Background(), testNow.AddDate(-2, 0, 0))
	_, err := client.AnchorRegistration(earlier, ledger.Registration{
		LicenseNumber:  "MD1",
		Name:           "Dr. Old",
		Specialization: "Dermatology",
		Institution:    "Old School",
		GraduationYear: 1990,
		ExpiryDate:     testNow.AddDate(-1, 0, 0),
		Approver:       defaultApprover,
	})
	require.NoError(t, err)

	svc := New(doctorstore.NewInMemory(), reportstore.NewInMemory(), client,
		WithDefaultApprover(defaultApprover))
	ctx := requestcontext.WithTime(context.Background(), testNow)

	d, err := svc.SubmitDoctor(ctx, "MD1", profile("Dr. New"))
	require.NoError(t, err)
	_, err = svc.ApproveDoctor(ctx, d.ID, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	stored, err := svc.GetDoctorByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DoctorStatusPending, stored.Status)
	assert.Nil(t, stored.Verification)
}
