// Package handler serves QR verification codes and the route they point at.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	registryhandler "docverify/internal/registry/handler"
	"docverify/internal/registry/models"
	"docverify/internal/verification"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/requestcontext"
)

// Registry is the read side of the registry service used here.
type Registry interface {
	LookupDoctor(ctx context.Context, license string) (*models.Doctor, error)
	GetDoctorByLicense(ctx context.Context, license string) (*models.Doctor, error)
}

// Tokens issues and validates verification tokens.
type Tokens interface {
	Issue(ctx context.Context, d *models.Doctor) (*verification.Token, error)
	Validate(ctx context.Context, token string) (*verification.Claims, error)
}

type Handler struct {
	registry Registry
	tokens   Tokens
	logger   *slog.Logger
}

func New(registry Registry, tokens Tokens, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, tokens: tokens, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/verify", h.HandleVerify)
}

// RegisterAdmin mounts GET /doctors/{license}/qr; the caller prefixes /admin.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/doctors/{license}/qr", h.HandleIssue)
}

// HandleIssue handles GET /admin/doctors/{license}/qr.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.registry.GetDoctorByLicense(ctx, chi.URLParam(r, "license"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	tok, err := h.tokens.Issue(ctx, d)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "verification code issued",
		"request_id", requestcontext.RequestID(ctx),
		"license_number", d.LicenseNumber,
		"expires_at", tok.ExpiresAt,
	)
	httputil.WriteJSON(w, http.StatusOK, tok)
}

// HandleVerify handles GET /verify?token=. The token only proves the code was
// issued by this registry; the doctor's current state is read fresh.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token is required"))
		return
	}
	claims, err := h.tokens.Validate(ctx, token)
	if err != nil {
		h.logger.WarnContext(ctx, "verification token rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	d, err := h.registry.LookupDoctor(ctx, claims.Subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if d.ID.String() != claims.DoctorID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "doctor not found or not verified"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, registryhandler.LookupResponse{
		Success: true,
		Doctor:  registryhandler.ToPublicDoctor(d),
	})
}
