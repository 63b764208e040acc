package doctor

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"docverify/internal/registry/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
)

type store interface {
	Create(ctx context.Context, d *models.Doctor) error
	FindByID(ctx context.Context, doctorID id.DoctorID) (*models.Doctor, error)
	FindByLicense(ctx context.Context, license string) (*models.Doctor, error)
	List(ctx context.Context, filter models.DoctorFilter) iter.Seq2[*models.Doctor, error]
	Count(ctx context.Context, filter models.DoctorFilter) (int, error)
	Execute(ctx context.Context, doctorID id.DoctorID, validate func(*models.Doctor) error, mutate func(*models.Doctor)) (*models.Doctor, error)
}

// contractSuite holds behaviour every backend must share. Backend suites embed
// it and set newStore.
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

// now is truncated so values survive a round trip through Postgres.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func approve(d *models.Doctor, receipt, approver string) {
	t := now()
	d.ApplyApproval(t, models.ExpiryFrom(t), receipt, approver)
}

func (s *contractSuite) newDoctor(license string) *models.Doctor {
	d, err := models.NewDoctor(id.NewDoctorID(), license, models.Profile{
		Name:           "Dr. " + license,
		Email:          license + "@example.com",
		Specialization: "Cardiology",
		Institution:    "Harvard Medical School",
		GraduationYear: 2010,
		Documents:      []string{"diploma.pdf", "license.pdf"},
	}, now())
	s.Require().NoError(err)
	return d
}

func (s *contractSuite) collect(filter models.DoctorFilter) []string {
	var licenses []string
	for d, err := range s.store.List(s.ctx, filter) {
		s.Require().NoError(err)
		licenses = append(licenses, d.LicenseNumber)
	}
	return licenses
}

func (s *contractSuite) TestCreateAndFind() {
	d := s.newDoctor("MD1")
	s.Require().NoError(s.store.Create(s.ctx, d))

	byID, err := s.store.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("MD1", byID.LicenseNumber)
	s.Equal(models.DoctorStatusPending, byID.Status)
	s.Equal([]string{"diploma.pdf", "license.pdf"}, byID.Documents)
	s.WithinDuration(d.SubmittedDate, byID.SubmittedDate, time.Millisecond)

	byLicense, err := s.store.FindByLicense(s.ctx, "MD1")
	s.Require().NoError(err)
	s.Equal(d.ID, byLicense.ID)

	_, err = s.store.FindByID(s.ctx, id.NewDoctorID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByLicense(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestDuplicateLicense() {
	s.Require().NoError(s.store.Create(s.ctx, s.newDoctor("MD2")))

	err := s.store.Create(s.ctx, s.newDoctor("MD2"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	count, err := s.store.Count(s.ctx, models.DoctorFilter{})
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *contractSuite) TestListKeepsInsertionOrderAndFilters() {
	for _, lic := range []string{"MD-C", "MD-A", "MD-B"} {
		s.Require().NoError(s.store.Create(s.ctx, s.newDoctor(lic)))
	}
	s.Equal([]string{"MD-C", "MD-A", "MD-B"}, s.collect(models.DoctorFilter{}))

	approved, err := s.store.FindByLicense(s.ctx, "MD-A")
	s.Require().NoError(err)
	_, err = s.store.Execute(s.ctx, approved.ID, (*models.Doctor).CanApprove, func(d *models.Doctor) {
		approve(d, "0xreceipt", "admin")
	})
	s.Require().NoError(err)

	active := true
	s.Equal([]string{"MD-A"}, s.collect(models.DoctorFilter{Status: models.DoctorStatusVerified, IsActive: &active}))
	s.Equal([]string{"MD-C", "MD-B"}, s.collect(models.DoctorFilter{Status: models.DoctorStatusPending}))

	n, err := s.store.Count(s.ctx, models.DoctorFilter{IsActive: &active})
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *contractSuite) TestListStopsEarly() {
	for _, lic := range []string{"MD-1", "MD-2", "MD-3"} {
		s.Require().NoError(s.store.Create(s.ctx, s.newDoctor(lic)))
	}
	seen := 0
	for _, err := range s.store.List(s.ctx, models.DoctorFilter{}) {
		s.Require().NoError(err)
		seen++
		if seen == 2 {
			break
		}
	}
	s.Equal(2, seen)
}

func (s *contractSuite) TestExecute() {
	d := s.newDoctor("MD3")
	s.Require().NoError(s.store.Create(s.ctx, d))

	s.Run("commits mutation when validation passes", func() {
		updated, err := s.store.Execute(s.ctx, d.ID, (*models.Doctor).CanApprove, func(doc *models.Doctor) {
			approve(doc, "0xabc", "admin")
		})
		s.Require().NoError(err)
		s.True(updated.IsActive)

		stored, err := s.store.FindByID(s.ctx, d.ID)
		s.Require().NoError(err)
		s.Equal(models.DoctorStatusVerified, stored.Status)
		s.Require().NotNil(stored.Verification)
		s.Equal("0xabc", stored.Verification.LedgerReceipt)
	})

	s.Run("leaves record untouched when validation fails", func() {
		mutated := false
		_, err := s.store.Execute(s.ctx, d.ID, (*models.Doctor).CanApprove, func(*models.Doctor) {
			mutated = true
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.False(mutated)
	})

	s.Run("unknown id", func() {
		_, err := s.store.Execute(s.ctx, id.NewDoctorID(), func(*models.Doctor) error { return nil }, func(*models.Doctor) {})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *contractSuite) TestConcurrentExecuteSerializes() {
	d := s.newDoctor("MD4")
	s.Require().NoError(s.store.Create(s.ctx, d))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(s.ctx, d.ID, (*models.Doctor).CanApprove, func(doc *models.Doctor) {
				approve(doc, "0xabc", "admin")
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, successes)
}
