// Package handler exposes the registry over JSON HTTP routes.
package handler

import (
	"bytes"
	"context"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xeipuuv/gojsonschema"

	"docverify/internal/registry/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/audit"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/requestcontext"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Service is the registry surface the handler needs.
type Service interface {
	SubmitDoctor(ctx context.Context, license string, profile models.Profile) (*models.Doctor, error)
	LookupDoctor(ctx context.Context, license string) (*models.Doctor, error)
	ListDoctors(ctx context.Context, filter models.DoctorFilter) iter.Seq2[*models.Doctor, error]
	ApproveDoctor(ctx context.Context, doctorID id.DoctorID, approver string) (*models.Doctor, error)
	RejectDoctor(ctx context.Context, doctorID id.DoctorID, approver, reason string) (*models.Doctor, error)
	RevokeLicense(ctx context.Context, license, approver string) (*models.Doctor, error)
	ReactivateLicense(ctx context.Context, license, approver string) (*models.Doctor, error)
	SubmitReport(ctx context.Context, content models.ReportContent) (*models.Report, error)
	RecentReports(ctx context.Context, filter models.ReportFilter) ([]*models.Report, error)
	AdvanceReportStatus(ctx context.Context, reportID id.ReportID, next models.ReportStatus) (*models.Report, error)
	Dashboard(ctx context.Context) (*models.Dashboard, error)
}

// AuditLog reads back published audit events.
type AuditLog interface {
	List(ctx context.Context, subject string) ([]audit.Event, error)
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

type Handler struct {
	service     Service
	logger      *slog.Logger
	auditLog    AuditLog
	submitLimit func(http.Handler) http.Handler
	lookupLimit func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithAuditLog enables GET /admin/audit.
func WithAuditLog(log AuditLog) Option {
	return func(h *Handler) {
		h.auditLog = log
	}
}

// WithRateLimits wraps the public write and lookup routes.
func WithRateLimits(submit, lookup func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitLimit = submit
		h.lookupLimit = lookup
	}
}

func passThrough(next http.Handler) http.Handler { return next }

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:     service,
		logger:      logger,
		submitLimit: passThrough,
		lookupLimit: passThrough,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public routes.
func (h *Handler) Register(r chi.Router) {
	r.With(h.submitLimit).Post("/doctors", h.HandleRegisterDoctor)
	r.With(h.lookupLimit).Get("/doctors", h.HandleLookupDoctor)
	r.With(h.lookupLimit).Get("/doctors/{license}", h.HandleLookupDoctor)
	r.With(h.submitLimit).Post("/reports", h.HandleSubmitReport)
}

// RegisterAdmin mounts the admin routes. The caller mounts them under /admin
// behind the admin token gate.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/approve", h.HandleApprove)
	r.Get("/doctors", h.HandleListDoctors)
	r.Post("/doctors/{id}/reject", h.HandleReject)
	r.Post("/licenses/{license}/revoke", h.HandleRevoke)
	r.Post("/licenses/{license}/reactivate", h.HandleReactivate)
	r.Get("/reports", h.HandleListReports)
	r.Post("/reports/{id}/status", h.HandleAdvanceReport)
	r.Get("/dashboard", h.HandleDashboard)
	if h.auditLog != nil {
		r.Get("/audit", h.HandleAudit)
	}
}

// HandleRegisterDoctor handles POST /doctors.
func (h *Handler) HandleRegisterDoctor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := decodeWithSchema[RegisterDoctorRequest](w, r, h.logger, doctorSchema)
	if !ok {
		return
	}

	d, err := h.service.SubmitDoctor(ctx, req.LicenseNumber, req.Profile())
	if err != nil {
		h.logger.WarnContext(ctx, "doctor registration failed",
			"request_id", requestID,
			"license_number", req.LicenseNumber,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "doctor registered",
		"request_id", requestID,
		"doctor_id", d.ID.String(),
		"license_number", d.LicenseNumber,
	)
	httputil.WriteJSON(w, http.StatusCreated, CreatedResponse{
		Success: true,
		Message: "Registration submitted and awaiting verification",
		ID:      d.ID.String(),
	})
}

// HandleLookupDoctor handles GET /doctors?licenseNumber= and GET /doctors/{license}.
func (h *Handler) HandleLookupDoctor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	license := chi.URLParam(r, "license")
	if license == "" {
		license = r.URL.Query().Get("licenseNumber")
	}
	if strings.TrimSpace(license) == "" {
		writeLookupMiss(w, dErrors.New(dErrors.CodeValidation, "licenseNumber is required"))
		return
	}

	d, err := h.service.LookupDoctor(ctx, license)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "doctor lookup failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		writeLookupMiss(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LookupResponse{Success: true, Doctor: ToPublicDoctor(d)})
}

// HandleSubmitReport handles POST /reports.
func (h *Handler) HandleSubmitReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := decodeWithSchema[SubmitReportRequest](w, r, h.logger, reportSchema)
	if !ok {
		return
	}

	report, err := h.service.SubmitReport(ctx, req.Content())
	if err != nil {
		h.logger.WarnContext(ctx, "report submission failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "report submitted",
		"request_id", requestID,
		"report_id", report.ID.String(),
		"priority", report.Priority,
	)
	httputil.WriteJSON(w, http.StatusCreated, CreatedResponse{
		Success: true,
		Message: "Report submitted. Our team will investigate.",
		ID:      report.ID.String(),
	})
}

// HandleApprove handles POST /admin/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ApproveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.ApproveDoctor(ctx, req.ParsedID(), req.ApproverIdentity)
	if err != nil {
		h.logActionFailure(ctx, "approve", req.DoctorID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "doctor approved",
		"request_id", requestID,
		"doctor_id", d.ID.String(),
		"receipt", d.Verification.LedgerReceipt,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, ActionResponse{
		Success: true,
		Message: "Doctor approved and anchored on the ledger",
		Receipt: d.Verification.LedgerReceipt,
		Doctor:  d,
	})
}

// HandleReject handles POST /admin/doctors/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	doctorID, err := id.ParseDoctorID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := decodeOptional[RejectRequest](w, r, h.logger)
	if !ok {
		return
	}

	d, err := h.service.RejectDoctor(ctx, doctorID, req.ApproverIdentity, req.Reason)
	if err != nil {
		h.logActionFailure(ctx, "reject", doctorID.String(), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ActionResponse{
		Success: true,
		Message: "Registration rejected",
		Doctor:  d,
	})
}

// HandleRevoke handles POST /admin/licenses/{license}/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	h.handleLicenseAction(w, r, "revoke", h.service.RevokeLicense, "License revoked")
}

// HandleReactivate handles POST /admin/licenses/{license}/reactivate.
func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.handleLicenseAction(w, r, "reactivate", h.service.ReactivateLicense, "License reactivated")
}

func (h *Handler) handleLicenseAction(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	apply func(ctx context.Context, license, approver string) (*models.Doctor, error),
	message string,
) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	license := chi.URLParam(r, "license")

	req, ok := decodeOptional[LicenseActionRequest](w, r, h.logger)
	if !ok {
		return
	}

	d, err := apply(ctx, license, req.ApproverIdentity)
	if err != nil {
		h.logActionFailure(ctx, action, license, err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "license status changed",
		"action", action,
		"request_id", requestID,
		"license_number", d.LicenseNumber,
		"is_active", d.IsActive,
	)
	httputil.WriteJSON(w, http.StatusOK, ActionResponse{Success: true, Message: message, Doctor: d})
}

// HandleListDoctors handles GET /admin/doctors.
func (h *Handler) HandleListDoctors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseDoctorFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	doctors := make([]*models.Doctor, 0)
	for d, err := range h.service.ListDoctors(ctx, filter) {
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to list doctors",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		if q == "" || doctorContains(d, q) {
			doctors = append(doctors, d)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, DoctorListResponse{Doctors: doctors, Total: len(doctors)})
}

// HandleListReports handles GET /admin/reports.
func (h *Handler) HandleListReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseReportFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	reports, err := h.service.RecentReports(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list reports",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	out := make([]*models.Report, 0, len(reports))
	for _, rep := range reports {
		if q == "" || reportContains(rep, q) {
			out = append(out, rep)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, ReportListResponse{Reports: out, Total: len(out)})
}

// HandleAdvanceReport handles POST /admin/reports/{id}/status.
func (h *Handler) HandleAdvanceReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AdvanceStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.service.AdvanceReportStatus(ctx, reportID, req.ParsedStatus())
	if err != nil {
		h.logActionFailure(ctx, "advance_report", reportID.String(), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ActionResponse{
		Success: true,
		Message: "Report moved to " + string(report.Status),
		Report:  report,
	})
}

// HandleDashboard handles GET /admin/dashboard.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.Dashboard(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dash)
}

// HandleAudit handles GET /admin/audit?subject=&limit=.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var (
		events []audit.Event
		err    error
	)
	if subject := strings.TrimSpace(query.Get("subject")); subject != "" {
		events, err = h.auditLog.List(ctx, subject)
	} else {
		limit := defaultAuditLimit
		if raw := query.Get("limit"); raw != "" {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil || n <= 0 || n > maxAuditLimit {
				httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 500"))
				return
			}
			limit = n
		}
		events, err = h.auditLog.Recent(ctx, limit)
	}
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit log"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// decodeWithSchema reads the body once, checks its shape against schema and
// then decodes, normalizes and validates it.
func decodeWithSchema[T any, PT interface {
	*T
	httputil.Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, schema *gojsonschema.Schema) (*T, bool) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	body, err := httputil.ReadBody(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	if err := checkSchema(schema, body); err != nil {
		logger.WarnContext(ctx, "request failed schema check",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return nil, false
	}
	return httputil.PrepareBytes[T, PT](w, body, logger, ctx, requestID)
}

// decodeOptional accepts an empty body as the zero request.
func decodeOptional[T any, PT interface {
	*T
	httputil.Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	ctx := r.Context()
	body, err := httputil.ReadBody(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	return httputil.PrepareBytes[T, PT](w, body, logger, ctx, requestcontext.RequestID(ctx))
}

func writeLookupMiss(w http.ResponseWriter, err error) {
	de, ok := dErrors.From(err)
	if !ok {
		de = &dErrors.Error{Code: dErrors.CodeInternal, Message: "internal server error"}
	}
	resp := LookupMissResponse{Success: false, Error: string(de.Code)}
	if de.Code != dErrors.CodeInternal {
		resp.ErrorDescription = de.Message
	}
	httputil.WriteJSON(w, httputil.StatusFor(de.Code), resp)
}

func (h *Handler) logActionFailure(ctx context.Context, action, target string, err error) {
	level := slog.LevelWarn
	if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeLedgerAnchorFailed) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "admin action failed",
		"request_id", requestcontext.RequestID(ctx),
		"action", action,
		"target", target,
		"error", err,
	)
}

func parseDoctorFilter(r *http.Request) (models.DoctorFilter, error) {
	query := r.URL.Query()
	var filter models.DoctorFilter
	if raw := query.Get("status"); raw != "" {
		status, err := models.ParseDoctorStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if raw := query.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeValidation, "active must be true or false")
		}
		filter.IsActive = &active
	}
	filter.Specialization = strings.TrimSpace(query.Get("specialization"))
	return filter, nil
}

func parseReportFilter(r *http.Request) (models.ReportFilter, error) {
	query := r.URL.Query()
	var filter models.ReportFilter
	if raw := query.Get("status"); raw != "" {
		status, err := models.ParseReportStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if raw := query.Get("priority"); raw != "" {
		priority, err := models.ParsePriority(raw)
		if err != nil {
			return filter, err
		}
		filter.Priority = priority
	}
	filter.ConcernType = models.ConcernType(strings.TrimSpace(query.Get("concernType")))
	return filter, nil
}

// doctorContains matches q (lowercased) against the fields an admin searches by.
func doctorContains(d *models.Doctor, q string) bool {
	for _, field := range []string{d.Name, d.LicenseNumber, d.Specialization, d.Institution, d.Email} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func reportContains(r *models.Report, q string) bool {
	for _, field := range []string{r.DoctorName, r.LicenseNumber, r.Location, r.Description} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
