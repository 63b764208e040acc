package models

import (
	"time"

	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
)

// CredentialValidity is how long an approval lasts. It is a fixed duration,
// not calendar-aware.
const CredentialValidity = 2 * 365 * 24 * time.Hour

// Profile holds the fields a doctor supplies at registration.
type Profile struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Specialization string   `json:"specialization"`
	Institution    string   `json:"institution"`
	GraduationYear int      `json:"graduationYear"`
	Address        string   `json:"address,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	Documents      []string `json:"documents"`
}

// Verification is present iff the doctor is verified.
type Verification struct {
	VerifiedDate  time.Time `json:"verifiedDate"`
	ExpiryDate    time.Time `json:"expiryDate"`
	LedgerReceipt string    `json:"ledgerReceipt"`
	ApprovedBy    string    `json:"approvedBy"`
}

// Rejection is present iff the doctor is rejected.
type Rejection struct {
	RejectedDate time.Time `json:"rejectedDate"`
	Reason       string    `json:"reason,omitempty"`
	RejectedBy   string    `json:"rejectedBy"`
}

// Doctor is the aggregate root for a registered doctor.
//
// Invariants:
//   - LicenseNumber is unique across all records
//   - Verification is set iff Status is verified, Rejection iff Status is rejected
//   - Pending and rejected doctors are never active
//   - Status never returns to pending
//
// The per-status detail lives in the Verification and Rejection variants so a
// verified doctor without a receipt cannot be built through the Apply methods.
type Doctor struct {
	ID            id.DoctorID `json:"id"`
	LicenseNumber string      `json:"licenseNumber"`
	Profile
	Status        DoctorStatus  `json:"status"`
	IsActive      bool          `json:"isActive"`
	SubmittedDate time.Time     `json:"submittedDate"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Verification  *Verification `json:"verification,omitempty"`
	Rejection     *Rejection    `json:"rejection,omitempty"`
}

// NewDoctor builds a pending, inactive doctor.
func NewDoctor(doctorID id.DoctorID, license string, profile Profile, now time.Time) (*Doctor, error) {
	if doctorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "doctor id cannot be nil")
	}
	if license == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "licenseNumber is required")
	}
	if profile.Name == "" || profile.Specialization == "" || profile.Institution == "" || profile.Email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "name, email, specialization and institution are required")
	}
	if profile.GraduationYear <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "graduationYear is required")
	}
	if profile.Documents == nil {
		profile.Documents = []string{}
	}
	return &Doctor{
		ID:            doctorID,
		LicenseNumber: license,
		Profile:       profile,
		Status:        DoctorStatusPending,
		IsActive:      false,
		SubmittedDate: now,
		UpdatedAt:     now,
	}, nil
}

func (d *Doctor) IsVerified() bool {
	return d.Status == DoctorStatusVerified
}

// CanApprove checks the pending → verified transition.
// Use with ApplyApproval in Execute callbacks.
func (d *Doctor) CanApprove() error {
	switch d.Status {
	case DoctorStatusVerified:
		return dErrors.New(dErrors.CodeInvariantViolation, "doctor is already verified")
	case DoctorStatusRejected:
		return dErrors.New(dErrors.CodeInvariantViolation, "doctor registration was rejected")
	}
	return nil
}

// ApplyApproval marks the doctor verified and active with the anchoring receipt.
// The expiry is the one anchored on the ledger. Call CanApprove first.
func (d *Doctor) ApplyApproval(now, expiry time.Time, receipt, approver string) {
	d.Status = DoctorStatusVerified
	d.IsActive = true
	d.Verification = &Verification{
		VerifiedDate:  now,
		ExpiryDate:    expiry,
		LedgerReceipt: receipt,
		ApprovedBy:    approver,
	}
	d.Rejection = nil
	d.UpdatedAt = now
}

// CanReject checks the pending → rejected transition.
func (d *Doctor) CanReject() error {
	if d.Status != DoctorStatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "only pending registrations can be rejected")
	}
	return nil
}

func (d *Doctor) ApplyRejection(now time.Time, reason, rejectedBy string) {
	d.Status = DoctorStatusRejected
	d.IsActive = false
	d.Rejection = &Rejection{RejectedDate: now, Reason: reason, RejectedBy: rejectedBy}
	d.Verification = nil
	d.UpdatedAt = now
}

// CanRevoke always succeeds for an existing record; revoking twice is allowed.
func (d *Doctor) CanRevoke() error {
	return nil
}

func (d *Doctor) ApplyRevocation(now time.Time) {
	d.IsActive = false
	d.UpdatedAt = now
}

// CanReactivate requires a verified doctor, keeping non-verified records inactive.
func (d *Doctor) CanReactivate() error {
	if d.Status != DoctorStatusVerified {
		return dErrors.New(dErrors.CodeInvariantViolation, "only verified doctors can be reactivated")
	}
	return nil
}

func (d *Doctor) ApplyReactivation(now time.Time) {
	d.IsActive = true
	d.UpdatedAt = now
}

// CheckInvariants reports whether a rehydrated record is in a legal state.
// Stores call it when loading rows written by other processes.
func (d *Doctor) CheckInvariants() error {
	if !d.Status.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown doctor status "+string(d.Status))
	}
	if (d.Verification != nil) != (d.Status == DoctorStatusVerified) {
		return dErrors.New(dErrors.CodeInvariantViolation, "verification detail does not match status")
	}
	if (d.Rejection != nil) != (d.Status == DoctorStatusRejected) {
		return dErrors.New(dErrors.CodeInvariantViolation, "rejection detail does not match status")
	}
	if d.Verification != nil && d.Verification.LedgerReceipt == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "verified doctor has no ledger receipt")
	}
	if d.IsActive && d.Status != DoctorStatusVerified {
		return dErrors.New(dErrors.CodeInvariantViolation, "only verified doctors can be active")
	}
	return nil
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (d *Doctor) Clone() *Doctor {
	if d == nil {
		return nil
	}
	c := *d
	c.Documents = append([]string(nil), d.Documents...)
	if d.Verification != nil {
		v := *d.Verification
		c.Verification = &v
	}
	if d.Rejection != nil {
		r := *d.Rejection
		c.Rejection = &r
	}
	return &c
}

// ExpiryFrom returns the credential expiry for an approval at now.
func ExpiryFrom(now time.Time) time.Time {
	return now.Add(CredentialValidity)
}
