package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"docverify/internal/ledger"
	"docverify/internal/ledger/journal"
	"docverify/internal/registry/service"
	doctorstore "docverify/internal/registry/store/doctor"
	reportstore "docverify/internal/registry/store/report"
	"docverify/pkg/platform/audit/publisher"
	auditmemory "docverify/pkg/platform/audit/store/memory"
	"docverify/pkg/platform/middleware/admin"
	"docverify/pkg/requestcontext"
	"docverify/pkg/testutil"
)

const adminToken = "secret-token"

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	clock  time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.clock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	auditLog := publisher.NewPublisher(auditmemory.NewInMemoryStore())
	svc := service.New(
		doctorstore.NewInMemory(),
		reportstore.NewInMemory(),
		ledger.NewJournalClient(journal.New(journal.NewMemoryBackend())),
		service.WithAuditPublisher(auditLog),
		service.WithDefaultApprover("registry-admin"),
	)
	h := New(svc, logger, WithAuditLog(auditLog))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithTime(req.Context(), s.clock)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Register(r)
	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(adminToken, logger))
		h.RegisterAdmin(r)
	})
	s.router = r
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) adminDo(method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	return s.do(testutil.AsAdmin(req, adminToken))
}

func validRegistration(license string) map[string]any {
	return map[string]any{
		"licenseNumber":  license,
		"name":           "Dr. Jane Smith",
		"email":          "Jane.Smith@Hospital.example",
		"specialization": "Cardiology",
		"institution":    "Harvard Medical School",
		"graduationYear": 2010,
		"documents":      []string{"license.pdf", "license.pdf", "diploma.pdf"},
	}
}

func (s *HandlerSuite) register(license string) string {
	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/doctors", validRegistration(license)))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[CreatedResponse](s.T(), rr)
	s.Require().True(resp.Success)
	s.Require().NotEmpty(resp.ID)
	return resp.ID
}

func (s *HandlerSuite) approve(doctorID string) *ActionResponse {
	rr := s.adminDo(http.MethodPost, "/admin/approve", map[string]string{"doctorId": doctorID})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[ActionResponse](s.T(), rr)
}

func (s *HandlerSuite) TestRegisterDoctor() {
	s.Run("created pending", func() {
		s.register("MD12345678")
	})

	s.Run("duplicate license is a conflict", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/doctors", validRegistration("MD12345678")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("missing name names the field", func() {
		body := validRegistration("MD2")
		delete(body, "name")
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/doctors", body))
		s.Equal(http.StatusBadRequest, rr.Code)
		resp := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal("validation_error", resp["error"])
		s.Equal("name is required", resp["error_description"])
	})

	s.Run("invalid email", func() {
		body := validRegistration("MD3")
		body["email"] = "not-an-email"
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/doctors", body))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("graduation year must be a year", func() {
		body := validRegistration("MD4")
		body["graduationYear"] = 10
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/doctors", body))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("wrong JSON types fail the schema check", func() {
		for _, year := range []any{"twenty-ten", true, []int{2010}} {
			body := validRegistration("MD5")
			body["graduationYear"] = year
			rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/doctors", body))
			s.Equal(http.StatusBadRequest, rr.Code, year)
			s.Contains(testutil.UnmarshalErrorResponse(s.T(), rr)["error_description"], "graduationYear", year)
		}
	})

	s.Run("graduation year posted as a numeric string", func() {
		body := validRegistration("MD7")
		body["graduationYear"] = "2010"
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/doctors", body))
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

		doctorID := testutil.UnmarshalResponse[CreatedResponse](s.T(), rr).ID
		approved := s.approve(doctorID)
		s.NotEmpty(approved.Receipt)
		rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/doctors/MD7"))
		s.Require().Equal(http.StatusOK, rr.Code)
		s.Equal(2010, testutil.UnmarshalResponse[LookupResponse](s.T(), rr).Doctor.GraduationYear)
	})

	s.Run("malformed JSON", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/doctors", `{"licenseNumber":`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("license with spaces inside is rejected", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/doctors", validRegistration("MD 6")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *HandlerSuite) TestLookupFollowsVerification() {
	doctorID := s.register("MD12345678")

	s.Run("pending doctors are not visible", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/doctors/MD12345678"))
		s.Equal(http.StatusNotFound, rr.Code)
		resp := testutil.UnmarshalResponse[LookupMissResponse](s.T(), rr)
		s.False(resp.Success)
		s.Equal("not_found", resp.Error)
	})

	approved := s.approve(doctorID)
	s.Regexp(`^0x[0-9a-f]{64}$`, approved.Receipt)

	s.Run("verified doctors are visible by path and by query", func() {
		for _, path := range []string{"/doctors/MD12345678", "/doctors?licenseNumber=%20MD12345678%20"} {
			rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, path))
			s.Require().Equal(http.StatusOK, rr.Code, path)
			resp := testutil.UnmarshalResponse[LookupResponse](s.T(), rr)
			s.True(resp.Success)
			s.Equal("Dr. Jane Smith", resp.Doctor.Name)
			s.Equal(2010, resp.Doctor.GraduationYear)
			s.True(resp.Doctor.IsActive)
			s.Require().NotNil(resp.Doctor.ExpiryDate)
			s.True(s.clock.Add(2*365*24*time.Hour).Equal(*resp.Doctor.ExpiryDate))
		}
	})

	s.Run("public view hides contact details", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/doctors/MD12345678"))
		s.NotContains(rr.Body.String(), "hospital.example")
		s.NotContains(rr.Body.String(), approved.Receipt)
	})

	s.Run("missing license", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/doctors"))
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("revoked doctors stay visible as inactive", func() {
		rr := s.adminDo(http.MethodPost, "/admin/licenses/MD12345678/revoke", nil)
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

		rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/doctors/MD12345678"))
		s.Require().Equal(http.StatusOK, rr.Code)
		s.False(testutil.UnmarshalResponse[LookupResponse](s.T(), rr).Doctor.IsActive)
	})
}

func (s *HandlerSuite) TestApprove() {
	doctorID := s.register("MD1")

	s.Run("admin token is required", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/approve", map[string]string{"doctorId": doctorID}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("doctorId is required", func() {
		rr := s.adminDo(http.MethodPost, "/admin/approve", map[string]string{})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("unknown doctor", func() {
		rr := s.adminDo(http.MethodPost, "/admin/approve", map[string]string{"doctorId": "8f14e45f-ceea-4e7b-9f4b-7b1b6b0c1a11"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("approval records the default approver", func() {
		resp := s.approve(doctorID)
		s.True(resp.Success)
		s.Require().NotNil(resp.Doctor)
		s.Equal("registry-admin", resp.Doctor.Verification.ApprovedBy)
	})

	s.Run("second approval is a conflict", func() {
		rr := s.adminDo(http.MethodPost, "/admin/approve", map[string]string{"doctorId": doctorID})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})
}

func (s *HandlerSuite) TestRejectAndReactivate() {
	doctorID := s.register("MD1")

	rr := s.adminDo(http.MethodPost, "/admin/licenses/MD1/reactivate", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")

	rr = s.adminDo(http.MethodPost, "/admin/doctors/"+doctorID+"/reject", map[string]string{"reason": "documents unreadable"})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[ActionResponse](s.T(), rr)
	s.Equal("rejected", string(resp.Doctor.Status))
	s.Equal("documents unreadable", resp.Doctor.Rejection.Reason)

	rr = s.adminDo(http.MethodPost, "/admin/approve", map[string]string{"doctorId": doctorID})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")

	rr = s.adminDo(http.MethodPost, "/admin/doctors/not-a-uuid/reject", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
}

func (s *HandlerSuite) TestListDoctors() {
	s.approve(s.register("MD1"))
	s.register("MD2")

	rr := s.adminDo(http.MethodGet, "/admin/doctors?status=verified", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[DoctorListResponse](s.T(), rr)
	s.Equal(1, resp.Total)
	s.Equal("MD1", resp.Doctors[0].LicenseNumber)

	rr = s.adminDo(http.MethodGet, "/admin/doctors?q=md2", nil)
	s.Equal(1, testutil.UnmarshalResponse[DoctorListResponse](s.T(), rr).Total)

	rr = s.adminDo(http.MethodGet, "/admin/doctors?active=false", nil)
	s.Equal(1, testutil.UnmarshalResponse[DoctorListResponse](s.T(), rr).Total)

	rr = s.adminDo(http.MethodGet, "/admin/doctors?status=archived", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")

	rr = s.adminDo(http.MethodGet, "/admin/doctors?active=maybe", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
}

func (s *HandlerSuite) submitReport(body map[string]string) string {
	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reports", body))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[CreatedResponse](s.T(), rr).ID
}

func (s *HandlerSuite) TestReports() {
	first := s.submitReport(map[string]string{
		"doctorName":  "Dr. John Doe",
		"location":    "New York",
		"concernType": "fake_credentials",
		"description": "claims a board certification that does not exist",
	})
	s.clock = s.clock.Add(time.Hour)
	s.submitReport(map[string]string{
		"doctorName":   "Dr. Lisa Anderson",
		"location":     "Los Angeles",
		"concernType":  "expired_license",
		"description":  "license lapsed last year",
		"contactEmail": "reporter@example.com",
	})

	s.Run("missing fields", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/reports", map[string]string{"doctorName": "Dr. X"}))
		s.Equal(http.StatusBadRequest, rr.Code)
		s.Equal("location is required", testutil.UnmarshalErrorResponse(s.T(), rr)["error_description"])
	})

	s.Run("listing is newest first and carries derived priority", func() {
		rr := s.adminDo(http.MethodGet, "/admin/reports", nil)
		s.Require().Equal(http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[ReportListResponse](s.T(), rr)
		s.Require().Equal(2, resp.Total)
		s.Equal("Dr. Lisa Anderson", resp.Reports[0].DoctorName)
		s.Equal("medium", string(resp.Reports[0].Priority))
		s.Equal("high", string(resp.Reports[1].Priority))
	})

	s.Run("filters and search", func() {
		rr := s.adminDo(http.MethodGet, "/admin/reports?priority=high", nil)
		s.Equal(1, testutil.UnmarshalResponse[ReportListResponse](s.T(), rr).Total)
		rr = s.adminDo(http.MethodGet, "/admin/reports?q=los%20angeles", nil)
		s.Equal(1, testutil.UnmarshalResponse[ReportListResponse](s.T(), rr).Total)
	})

	s.Run("status only moves forward", func() {
		rr := s.adminDo(http.MethodPost, "/admin/reports/"+first+"/status", map[string]string{"status": "resolved"})
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		s.True(testutil.UnmarshalResponse[ActionResponse](s.T(), rr).Report.Resolved)

		rr = s.adminDo(http.MethodPost, "/admin/reports/"+first+"/status", map[string]string{"status": "investigating"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "invalid_transition")
	})

	s.Run("dashboard counts", func() {
		rr := s.adminDo(http.MethodGet, "/admin/dashboard", nil)
		s.Require().Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "openReports", float64(1))
	})
}

func (s *HandlerSuite) TestAuditLog() {
	s.approve(s.register("MD1"))

	rr := s.adminDo(http.MethodGet, "/admin/audit?subject=MD1", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[struct {
		Events []struct {
			Action  string `json:"action"`
			Receipt string `json:"receipt"`
		} `json:"events"`
	}](s.T(), rr)
	s.Require().Len(resp.Events, 2)
	s.Equal("doctor_submitted", resp.Events[0].Action)
	s.Equal("doctor_approved", resp.Events[1].Action)
	s.NotEmpty(resp.Events[1].Receipt)

	rr = s.adminDo(http.MethodGet, "/admin/audit?limit=0", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
}
