package handler

import (
	"time"

	"docverify/internal/registry/models"
)

// CreatedResponse acknowledges a registration or a report.
type CreatedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// PublicDoctor is the verification view of a doctor. It never carries contact
// details, documents or the ledger receipt.
type PublicDoctor struct {
	Name           string     `json:"name"`
	LicenseNumber  string     `json:"licenseNumber"`
	Specialization string     `json:"specialization"`
	Institution    string     `json:"institution"`
	GraduationYear int        `json:"graduationYear"`
	VerifiedDate   *time.Time `json:"verifiedDate,omitempty"`
	ExpiryDate     *time.Time `json:"expiryDate,omitempty"`
	IsActive       bool       `json:"isActive"`
}

// LookupResponse is the body of a successful public lookup.
type LookupResponse struct {
	Success bool          `json:"success"`
	Doctor  *PublicDoctor `json:"doctor"`
}

// LookupMissResponse keeps the success flag on lookup misses.
type LookupMissResponse struct {
	Success          bool   `json:"success"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ActionResponse reports the outcome of an admin lifecycle action.
type ActionResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Receipt string         `json:"receipt,omitempty"`
	Doctor  *models.Doctor `json:"doctor,omitempty"`
	Report  *models.Report `json:"report,omitempty"`
}

// DoctorListResponse is the admin listing of doctors.
type DoctorListResponse struct {
	Doctors []*models.Doctor `json:"doctors"`
	Total   int              `json:"total"`
}

// ReportListResponse is the admin listing of reports, newest first.
type ReportListResponse struct {
	Reports []*models.Report `json:"reports"`
	Total   int              `json:"total"`
}

// ToPublicDoctor projects a doctor onto the public view.
func ToPublicDoctor(d *models.Doctor) *PublicDoctor {
	out := &PublicDoctor{
		Name:           d.Name,
		LicenseNumber:  d.LicenseNumber,
		Specialization: d.Specialization,
		Institution:    d.Institution,
		GraduationYear: d.GraduationYear,
		IsActive:       d.IsActive,
	}
	if v := d.Verification; v != nil {
		verified, expiry := v.VerifiedDate, v.ExpiryDate
		out.VerifiedDate = &verified
		out.ExpiryDate = &expiry
	}
	return out
}
