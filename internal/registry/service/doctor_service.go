package service

import (
	"context"
	"errors"
	"iter"
	"time"

	"docverify/internal/ledger"
	"docverify/internal/registry/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/audit"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/platform/strings"
	"docverify/pkg/requestcontext"
)

// SubmitDoctor registers a pending, inactive doctor. A taken license is a
// Conflict and writes nothing.
func (s *Service) SubmitDoctor(ctx context.Context, license string, profile models.Profile) (*models.Doctor, error) {
	license, err := id.NormalizeLicense(license)
	if err != nil {
		return nil, err
	}
	profile.Documents = strings.DedupeAndTrim(profile.Documents)

	d, err := models.NewDoctor(id.NewDoctorID(), license, profile, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			de, _ := dErrors.From(err)
			return nil, dErrors.New(dErrors.CodeValidation, de.Message)
		}
		return nil, err
	}

	if err := s.doctors.Create(ctx, d); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "a doctor with this license number already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create doctor")
	}

	s.logAudit(ctx, audit.EventDoctorSubmitted,
		"subject", d.LicenseNumber,
		"record_id", d.ID.String(),
	)
	s.metrics.IncrementDoctorSubmitted()
	return d, nil
}

func (s *Service) GetDoctorByID(ctx context.Context, doctorID id.DoctorID) (*models.Doctor, error) {
	if doctorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "doctorId is required")
	}
	d, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		return nil, wrapDoctorErr(err)
	}
	return d, nil
}

// GetDoctorByLicense returns a doctor in any status. Admin callers only.
func (s *Service) GetDoctorByLicense(ctx context.Context, license string) (*models.Doctor, error) {
	license, err := id.NormalizeLicense(license)
	if err != nil {
		return nil, err
	}
	d, err := s.doctors.FindByLicense(ctx, license)
	if err != nil {
		return nil, wrapDoctorErr(err)
	}
	return d, nil
}

// LookupDoctor is the public verification read. Only verified doctors are
// visible; pending and rejected registrations read as not found. Concurrent
// lookups of the same license share one store read.
func (s *Service) LookupDoctor(ctx context.Context, license string) (*models.Doctor, error) {
	license, err := id.NormalizeLicense(license)
	if err != nil {
		return nil, err
	}
	// The shared read must not fail for every waiter when the first caller goes away.
	readCtx := context.WithoutCancel(ctx)
	v, err, shared := s.lookups.Do(license, func() (any, error) {
		return s.doctors.FindByLicense(readCtx, license)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.ObserveLookup(false, shared)
			return nil, dErrors.New(dErrors.CodeNotFound, "doctor not found or not verified")
		}
		return nil, wrapDoctorErr(err)
	}
	d := v.(*models.Doctor)
	if !d.IsVerified() {
		s.metrics.ObserveLookup(false, shared)
		return nil, dErrors.New(dErrors.CodeNotFound, "doctor not found or not verified")
	}
	s.metrics.ObserveLookup(true, shared)
	return d.Clone(), nil
}

// ListDoctors yields matching doctors lazily in insertion order.
func (s *Service) ListDoctors(ctx context.Context, filter models.DoctorFilter) iter.Seq2[*models.Doctor, error] {
	return func(yield func(*models.Doctor, error) bool) {
		for d, err := range s.doctors.List(ctx, filter) {
			if err != nil {
				yield(nil, wrapDoctorErr(err))
				return
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}

// ApproveDoctor anchors the registration on the ledger and then marks the
// doctor verified. If the ledger already holds this license's registration
// (a previous approval anchored but did not commit), that anchor is reused.
func (s *Service) ApproveDoctor(ctx context.Context, doctorID id.DoctorID, approver string) (*models.Doctor, error) {
	start := time.Now()
	defer s.metrics.ObserveApproval(start)

	d, err := s.approveDoctor(ctx, doctorID, s.approverOr(approver))
	s.metrics.ObserveLifecycle("approve", outcome(err))
	return d, err
}

func (s *Service) approveDoctor(ctx context.Context, doctorID id.DoctorID, approver string) (*models.Doctor, error) {
	existing, err := s.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockLicense(ctx, existing.LicenseNumber)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock: another approval may have committed while we waited.
	current, err := s.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if err := transitionConflict(current.CanApprove); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	expiry := models.ExpiryFrom(now)
	receipt, err := s.ledger.AnchorRegistration(ctx, ledger.Registration{
		LicenseNumber:  current.LicenseNumber,
		Name:           current.Name,
		Specialization: current.Specialization,
		Institution:    current.Institution,
		GraduationYear: current.GraduationYear,
		ExpiryDate:     expiry,
		Approver:       approver,
	})
	if errors.Is(err, ledger.ErrAlreadyAnchored) {
		receipt, expiry, err = s.recoverAnchor(ctx, current, now, err)
	}
	if err != nil {
		return nil, wrapLedgerErr(err)
	}

	updated, err := s.doctors.Execute(ctx, doctorID,
		func(d *models.Doctor) error {
			return transitionConflict(d.CanApprove)
		},
		func(d *models.Doctor) {
			d.ApplyApproval(now, expiry, receipt.String(), approver)
		},
	)
	if err != nil {
		s.logCommitFailure(ctx, "approve", current.LicenseNumber, receipt, err)
		return nil, wrapDoctorErr(err)
	}

	s.logAudit(ctx, audit.EventDoctorApproved,
		"subject", updated.LicenseNumber,
		"record_id", updated.ID.String(),
		"actor", approver,
		"receipt", receipt.String(),
	)
	return updated, nil
}

// recoverAnchor returns the existing registration anchor for a license whose
// local record is still pending, as left behind by a commit that failed after
// anchoring. The anchor is only reused when it registers this record's profile,
// is still active and has not expired; anything else keeps the original error.
func (s *Service) recoverAnchor(ctx context.Context, current *models.Doctor, now time.Time, anchorErr error) (ledger.Receipt, time.Time, error) {
	view, err := s.ledger.QueryRegistration(ctx, current.LicenseNumber)
	if err != nil || view == nil || view.RegistrationReceipt == "" {
		return "", time.Time{}, anchorErr
	}
	if !anchorMatches(view, current, now) {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "existing ledger registration does not match pending doctor",
				"license", current.LicenseNumber,
				"receipt", view.RegistrationReceipt.String(),
				"anchored_expiry", view.ExpiryDate,
			)
		}
		return "", time.Time{}, anchorErr
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "reusing existing ledger registration for pending doctor",
			"license", current.LicenseNumber,
			"receipt", view.RegistrationReceipt.String(),
		)
	}
	return view.RegistrationReceipt, view.ExpiryDate, nil
}

func anchorMatches(view *ledger.DoctorView, d *models.Doctor, now time.Time) bool {
	return view.IsActive &&
		view.ExpiryDate.After(now) &&
		view.Name == d.Name &&
		view.Specialization == d.Specialization &&
		view.Institution == d.Institution &&
		view.GraduationYear == d.GraduationYear
}

// RejectDoctor closes a pending registration. Nothing was anchored, so the
// ledger is not involved.
func (s *Service) RejectDoctor(ctx context.Context, doctorID id.DoctorID, approver, reason string) (*models.Doctor, error) {
	d, err := s.rejectDoctor(ctx, doctorID, s.approverOr(approver), reason)
	s.metrics.ObserveLifecycle("reject", outcome(err))
	return d, err
}

func (s *Service) rejectDoctor(ctx context.Context, doctorID id.DoctorID, approver, reason string) (*models.Doctor, error) {
	existing, err := s.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockLicense(ctx, existing.LicenseNumber)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := requestcontext.Now(ctx)
	updated, err := s.doctors.Execute(ctx, doctorID,
		func(d *models.Doctor) error {
			return transitionConflict(d.CanReject)
		},
		func(d *models.Doctor) {
			d.ApplyRejection(now, reason, approver)
		},
	)
	if err != nil {
		return nil, wrapDoctorErr(err)
	}

	s.logAudit(ctx, audit.EventDoctorRejected,
		"subject", updated.LicenseNumber,
		"record_id", updated.ID.String(),
		"actor", approver,
		"reason", reason,
	)
	return updated, nil
}

// RevokeLicense deactivates a doctor in any status. Revoking an inactive
// doctor again is allowed and still anchored, so every admin action leaves a
// ledger trace.
func (s *Service) RevokeLicense(ctx context.Context, license, approver string) (*models.Doctor, error) {
	d, err := s.toggleActive(ctx, license, s.approverOr(approver), toggle{
		action: "revoke",
		event:  audit.EventLicenseRevoked,
		check:  (*models.Doctor).CanRevoke,
		apply:  (*models.Doctor).ApplyRevocation,
		anchor: s.ledger.AnchorRevocation,
	})
	s.metrics.ObserveLifecycle("revoke", outcome(err))
	return d, err
}

// ReactivateLicense re-activates a verified doctor.
//
// Unlike RevokeLicense, which accepts a record in any status, reactivation is
// restricted to status=verified. A pending or rejected record fails with a
// Conflict before the ledger is called, because it has no anchored
// registration to reactivate and would otherwise become active without one.
// Unknown licenses are NotFound.
func (s *Service) ReactivateLicense(ctx context.Context, license, approver string) (*models.Doctor, error) {
	d, err := s.toggleActive(ctx, license, s.approverOr(approver), toggle{
		action: "reactivate",
		event:  audit.EventLicenseReactivated,
		check:  (*models.Doctor).CanReactivate,
		apply:  (*models.Doctor).ApplyReactivation,
		anchor: s.ledger.AnchorReactivation,
	})
	s.metrics.ObserveLifecycle("reactivate", outcome(err))
	return d, err
}

type toggle struct {
	action string
	event  audit.AuditEvent
	check  func(*models.Doctor) error
	apply  func(*models.Doctor, time.Time)
	anchor func(ctx context.Context, license, approver string) (ledger.Receipt, error)
}

func (s *Service) toggleActive(ctx context.Context, license, approver string, t toggle) (*models.Doctor, error) {
	license, err := id.NormalizeLicense(license)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockLicense(ctx, license)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.doctors.FindByLicense(ctx, license)
	if err != nil {
		return nil, wrapDoctorErr(err)
	}
	if err := transitionConflict(func() error { return t.check(current) }); err != nil {
		return nil, err
	}

	receipt, err := t.anchor(ctx, license, approver)
	if err != nil {
		return nil, wrapLedgerErr(err)
	}

	now := requestcontext.Now(ctx)
	updated, err := s.doctors.Execute(ctx, current.ID,
		func(d *models.Doctor) error {
			return transitionConflict(func() error { return t.check(d) })
		},
		func(d *models.Doctor) {
			t.apply(d, now)
		},
	)
	if err != nil {
		s.logCommitFailure(ctx, t.action, license, receipt, err)
		return nil, wrapDoctorErr(err)
	}

	s.logAudit(ctx, t.event,
		"subject", license,
		"record_id", updated.ID.String(),
		"actor", approver,
		"receipt", receipt.String(),
	)
	return updated, nil
}

// logCommitFailure records an anchor that has no matching local commit. The
// anchor is final, so the receipt must be recoverable from the logs.
func (s *Service) logCommitFailure(ctx context.Context, action, license string, receipt ledger.Receipt, err error) {
	if s.logger == nil {
		return
	}
	s.logger.ErrorContext(ctx, "ledger anchored but local commit failed",
		"action", action,
		"license", license,
		"receipt", receipt.String(),
		"error", err,
	)
}
