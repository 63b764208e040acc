package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/ledger"
	"docverify/internal/ledger/journal"
	registryhandler "docverify/internal/registry/handler"
	"docverify/internal/registry/models"
	"docverify/internal/registry/service"
	doctorstore "docverify/internal/registry/store/doctor"
	reportstore "docverify/internal/registry/store/report"
	"docverify/internal/verification"
	"docverify/pkg/requestcontext"
	"docverify/pkg/testutil"
)

var clock = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func setup(t *testing.T) (http.Handler, *service.Service) {
	t.Helper()
	svc := service.New(
		doctorstore.NewInMemory(),
		reportstore.NewInMemory(),
		ledger.NewJournalClient(journal.New(journal.NewMemoryBackend())),
		service.WithDefaultApprover("admin"),
	)
	h := New(svc, verification.NewIssuer("k", "https://docverify.example", time.Hour),
		slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(requestcontext.WithTime(req.Context(), clock)))
		})
	})
	h.Register(r)
	r.Route("/admin", h.RegisterAdmin)
	return r, svc
}

func registerDoctor(t *testing.T, svc *service.Service, license string, approve bool) {
	t.Helper()
	ctx := requestcontext.WithTime(context.Background(), clock)
	d, err := svc.SubmitDoctor(ctx, license, models.Profile{
		Name: "Dr. Michael Johnson", Email: "mj@example.com", Specialization: "Neurology",
		Institution: "Johns Hopkins University", GraduationYear: 2008,
	})
	require.NoError(t, err)
	if approve {
		_, err = svc.ApproveDoctor(ctx, d.ID, "")
		require.NoError(t, err)
	}
}

func TestQRCodeRoundTrip(t *testing.T) {
	router, svc := setup(t)
	registerDoctor(t, svc, "MD87654321", true)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/admin/doctors/MD87654321/qr"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	tok := testutil.UnmarshalResponse[verification.Token](t, rr)

	link, err := url.Parse(tok.URL)
	require.NoError(t, err)
	assert.Equal(t, "docverify.example", link.Host)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, link.RequestURI()))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[registryhandler.LookupResponse](t, rr)
	assert.Equal(t, "MD87654321", resp.Doctor.LicenseNumber)
	assert.True(t, resp.Doctor.IsActive)
}

func TestQRCodeRequiresVerifiedDoctor(t *testing.T) {
	router, svc := setup(t)
	registerDoctor(t, svc, "MD23456789", false)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/admin/doctors/MD23456789/qr"))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/admin/doctors/MD0/qr"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	router, _ := setup(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/verify"))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/verify?token=abc.def.ghi"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}
