// Package service orchestrates the doctor verification and report triage lifecycles.
//
// Every doctor lifecycle change follows the same order: take the per-license
// lock, re-validate, anchor on the ledger, then commit through the store's
// Execute. A failed anchor leaves the record untouched.
package service

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"docverify/internal/ledger"
	"docverify/internal/registry/metrics"
	"docverify/internal/registry/models"
	"docverify/pkg/attrs"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/audit"
	"docverify/pkg/platform/keylock"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

type DoctorStore interface {
	Create(ctx context.Context, d *models.Doctor) error
	FindByID(ctx context.Context, doctorID id.DoctorID) (*models.Doctor, error)
	FindByLicense(ctx context.Context, license string) (*models.Doctor, error)
	List(ctx context.Context, filter models.DoctorFilter) iter.Seq2[*models.Doctor, error]
	Count(ctx context.Context, filter models.DoctorFilter) (int, error)
	Execute(ctx context.Context, doctorID id.DoctorID, validate func(*models.Doctor) error, mutate func(*models.Doctor)) (*models.Doctor, error)
}

type ReportStore interface {
	Create(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) iter.Seq2[*models.Report, error]
	Count(ctx context.Context, filter models.ReportFilter) (int, error)
	Execute(ctx context.Context, reportID id.ReportID, validate func(*models.Report) error, mutate func(*models.Report)) (*models.Report, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service owns doctor and report records. It is the only component that mutates them.
type Service struct {
	doctors         DoctorStore
	reports         ReportStore
	ledger          ledger.Client
	locker          keylock.Locker
	logger          *slog.Logger
	auditPublisher  AuditPublisher
	metrics         *metrics.Metrics
	defaultApprover string
	lookups         singleflight.Group
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker replaces the in-process per-license lock, e.g. with a Redis lock
// shared by several replicas.
func WithLocker(l keylock.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

// WithDefaultApprover sets the identity recorded when an admin action names none.
func WithDefaultApprover(approver string) Option {
	return func(s *Service) {
		s.defaultApprover = approver
	}
}

// New constructs a Service.
func New(doctors DoctorStore, reports ReportStore, client ledger.Client, opts ...Option) *Service {
	s := &Service{doctors: doctors, reports: reports, ledger: client}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = keylock.NewMemory()
	}
	return s
}

func (s *Service) approverOr(approver string) string {
	if approver != "" {
		return approver
	}
	return s.defaultApprover
}

func (s *Service) lockLicense(ctx context.Context, license string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, "license:"+license)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "another update for this license is in progress")
		case errors.Is(err, context.Canceled):
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled while waiting for license lock")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire license lock")
	}
	return unlock, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return
	}
	fields := attrs.Strings(attributes)
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Subject:  fields["subject"],
		Action:   string(event),
		RecordID: fields["record_id"],
		ActorID:  fields["actor"],
		Reason:   fields["reason"],
		Receipt:  fields["receipt"],
		ClientIP: requestcontext.ClientIP(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to publish audit event",
			"event", string(event),
			"error", err,
		)
	}
}

func wrapDoctorErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "doctor not found")
	}
	if _, ok := dErrors.From(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "doctor store failure")
}

func wrapReportErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "report not found")
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConflict, "report was updated concurrently, retry")
	}
	if _, ok := dErrors.From(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "report store failure")
}

// transitionConflict turns a model invariant violation into a Conflict for callers.
func transitionConflict(check func() error) error {
	if err := check(); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			de, _ := dErrors.From(err)
			return dErrors.New(dErrors.CodeConflict, de.Message)
		}
		return err
	}
	return nil
}

func wrapLedgerErr(err error) error {
	if errors.Is(err, ledger.ErrAlreadyAnchored) {
		return dErrors.New(dErrors.CodeConflict, "license is already anchored on the ledger")
	}
	return dErrors.Wrap(err, dErrors.CodeLedgerAnchorFailed, "ledger anchoring failed")
}

// outcome labels metrics with the domain error code.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if de, ok := dErrors.From(err); ok {
		return string(de.Code)
	}
	return string(dErrors.CodeInternal)
}
