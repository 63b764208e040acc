package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docverify/internal/ledger/journal"
	"docverify/pkg/requestcontext"
)

type JournalClientSuite struct {
	suite.Suite
	client *JournalClient
	ctx    context.Context
	now    time.Time
}

func TestJournalClientSuite(t *testing.T) {
	suite.Run(t, new(JournalClientSuite))
}

func (s *JournalClientSuite) SetupTest() {
	s.client = NewJournalClient(journal.New(journal.NewMemoryBackend()))
	s.now = time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *JournalClientSuite) registration(license string) Registration {
	return Registration{
		LicenseNumber:  license,
		Name:           "Dr. Jane Smith",
		Specialization: "Cardiology",
		Institution:    "Harvard Medical School",
		GraduationYear: 2005,
		ExpiryDate:     s.now.Add(2 * 365 * 24 * time.Hour),
		Approver:       "0xadmin",
	}
}

func (s *JournalClientSuite) TestQueryBeforeAnchorIsNotFound() {
	_, err := s.client.QueryRegistration(s.ctx, "MD404")
	s.Require().ErrorIs(err, ErrNotAnchored)
}

func (s *JournalClientSuite) TestAnchorAndQuery() {
	receipt, err := s.client.AnchorRegistration(s.ctx, s.registration("MD1"))
	s.Require().NoError(err)
	s.True(strings.HasPrefix(receipt.String(), "0x"))

	view, err := s.client.QueryRegistration(s.ctx, "MD1")
	s.Require().NoError(err)
	s.Equal("Dr. Jane Smith", view.Name)
	s.Equal(2005, view.GraduationYear)
	s.True(view.IsActive)
	s.Equal(receipt, view.RegistrationReceipt)
	s.Equal(s.now, view.RegisteredAt)
}

func (s *JournalClientSuite) TestRegistrationIsAnchoredOnce() {
	_, err := s.client.AnchorRegistration(s.ctx, s.registration("MD1"))
	s.Require().NoError(err)

	_, err = s.client.AnchorRegistration(s.ctx, s.registration("MD1"))
	s.Require().ErrorIs(err, ErrAlreadyAnchored)
}

func (s *JournalClientSuite) TestRevocationTogglesView() {
	regReceipt, err := s.client.AnchorRegistration(s.ctx, s.registration("MD1"))
	s.Require().NoError(err)

	r1, err := s.client.AnchorRevocation(s.ctx, "MD1", "0xadmin")
	s.Require().NoError(err)
	r2, err := s.client.AnchorRevocation(s.ctx, "MD1", "0xadmin")
	s.Require().NoError(err)
	s.NotEqual(r1, r2, "each anchor gets a unique receipt")

	view, err := s.client.QueryRegistration(s.ctx, "MD1")
	s.Require().NoError(err)
	s.False(view.IsActive)
	s.Equal(r2, view.LatestReceipt)
	s.Equal(regReceipt, view.RegistrationReceipt)

	r3, err := s.client.AnchorReactivation(s.ctx, "MD1", "0xadmin")
	s.Require().NoError(err)
	view, err = s.client.QueryRegistration(s.ctx, "MD1")
	s.Require().NoError(err)
	s.True(view.IsActive)
	s.Equal(r3, view.LatestReceipt)
}

func (s *JournalClientSuite) TestRevocationWithoutRegistrationHasNoView() {
	_, err := s.client.AnchorRevocation(s.ctx, "MD2", "0xadmin")
	s.Require().NoError(err)

	_, err = s.client.QueryRegistration(s.ctx, "MD2")
	s.Require().ErrorIs(err, ErrNotAnchored)
}

func (s *JournalClientSuite) TestVerify() {
	_, err := s.client.AnchorRegistration(s.ctx, s.registration("MD1"))
	s.Require().NoError(err)
	_, err = s.client.AnchorRevocation(s.ctx, "MD1", "0xadmin")
	s.Require().NoError(err)

	report, err := s.client.Verify(s.ctx)
	s.Require().NoError(err)
	s.True(report.Valid)
	s.Equal(uint64(2), report.Entries)
	s.NotEmpty(report.Head)
}
