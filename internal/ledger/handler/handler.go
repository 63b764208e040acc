// Package handler serves the ledger's anchoring proofs.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"docverify/internal/ledger"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/requestcontext"
)

// Reader is the read side of ledger.Client.
type Reader interface {
	QueryRegistration(ctx context.Context, license string) (*ledger.DoctorView, error)
	Verify(ctx context.Context) (*ledger.IntegrityReport, error)
}

type Handler struct {
	ledger Reader
	logger *slog.Logger
}

func New(reader Reader, logger *slog.Logger) *Handler {
	return &Handler{ledger: reader, logger: logger}
}

// ProofResponse is the ledger's own view of a license.
type ProofResponse struct {
	Success bool               `json:"success"`
	Ledger  *ledger.DoctorView `json:"ledger"`
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/doctors/{license}/ledger", h.HandleProof)
}

// RegisterAdmin mounts GET /ledger/verify; the caller prefixes /admin.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/ledger/verify", h.HandleVerify)
}

// HandleProof handles GET /doctors/{license}/ledger.
func (h *Handler) HandleProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	license, err := id.NormalizeLicense(chi.URLParam(r, "license"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.ledger.QueryRegistration(ctx, license)
	if err != nil {
		if errors.Is(err, ledger.ErrNotAnchored) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no ledger registration for this license"))
			return
		}
		h.logger.ErrorContext(ctx, "ledger query failed",
			"request_id", requestcontext.RequestID(ctx),
			"license_number", license,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeLedgerAnchorFailed, "ledger unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ProofResponse{Success: true, Ledger: view})
}

// HandleVerify handles GET /admin/ledger/verify. A broken chain is reported in
// the body with valid=false, not as an HTTP error.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.ledger.Verify(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "ledger verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeLedgerAnchorFailed, "ledger unavailable"))
		return
	}
	if !report.Valid {
		h.logger.WarnContext(ctx, "ledger chain broken",
			"broken_at", report.BrokenAt,
			"reason", report.Reason,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
