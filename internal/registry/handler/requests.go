package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"

	"docverify/internal/registry/models"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
)

const (
	minGraduationYear = 1900
	maxGraduationYear = 2100
	maxReasonLength   = 1000
	maxApproverLength = 200
)

// RegisterDoctorRequest is the body of POST /doctors.
type RegisterDoctorRequest struct {
	LicenseNumber  string   `json:"licenseNumber"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Specialization string   `json:"specialization"`
	Institution    string   `json:"institution"`
	GraduationYear Year     `json:"graduationYear"`
	Address        string   `json:"address"`
	Bio            string   `json:"bio"`
	Documents      []string `json:"documents"`
}

// Year is a calendar year that decodes from a JSON number or a numeric string
// such as "2010", which is what form-based clients post.
type Year int

func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*y = 0
			return nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("year %q is not a number", raw)
		}
		*y = Year(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*y = Year(n)
	return nil
}

func (r *RegisterDoctorRequest) Normalize() {
	r.LicenseNumber = strings.TrimSpace(r.LicenseNumber)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Specialization = strings.TrimSpace(r.Specialization)
	r.Institution = strings.TrimSpace(r.Institution)
	r.Address = strings.TrimSpace(r.Address)
	r.Bio = strings.TrimSpace(r.Bio)
	docs := r.Documents[:0]
	for _, d := range r.Documents {
		if d = strings.TrimSpace(d); d != "" {
			docs = append(docs, d)
		}
	}
	r.Documents = docs
}

func (r *RegisterDoctorRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	required := []struct{ field, value string }{
		{"licenseNumber", r.LicenseNumber},
		{"name", r.Name},
		{"email", r.Email},
		{"specialization", r.Specialization},
		{"institution", r.Institution},
	}
	for _, f := range required {
		if f.value == "" {
			return dErrors.New(dErrors.CodeValidation, f.field+" is required")
		}
	}
	if r.GraduationYear == 0 {
		return dErrors.New(dErrors.CodeValidation, "graduationYear is required")
	}
	if r.GraduationYear < minGraduationYear || r.GraduationYear > maxGraduationYear {
		return dErrors.New(dErrors.CodeValidation, "graduationYear must be a four-digit year")
	}
	if !govalidator.StringLength(r.Email, "3", "254") || !govalidator.IsEmail(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email must be a valid address")
	}
	license, err := id.NormalizeLicense(r.LicenseNumber)
	if err != nil {
		return err
	}
	r.LicenseNumber = license
	return nil
}

// Profile returns the validated profile fields.
func (r *RegisterDoctorRequest) Profile() models.Profile {
	return models.Profile{
		Name:           r.Name,
		Email:          r.Email,
		Specialization: r.Specialization,
		Institution:    r.Institution,
		GraduationYear: int(r.GraduationYear),
		Address:        r.Address,
		Bio:            r.Bio,
		Documents:      r.Documents,
	}
}

// SubmitReportRequest is the body of POST /reports.
type SubmitReportRequest struct {
	DoctorName    string `json:"doctorName"`
	LicenseNumber string `json:"licenseNumber"`
	Location      string `json:"location"`
	ConcernType   string `json:"concernType"`
	Description   string `json:"description"`
	ContactEmail  string `json:"contactEmail"`
}

func (r *SubmitReportRequest) Normalize() {
	r.DoctorName = strings.TrimSpace(r.DoctorName)
	r.LicenseNumber = strings.TrimSpace(r.LicenseNumber)
	r.Location = strings.TrimSpace(r.Location)
	r.ConcernType = strings.ToLower(strings.TrimSpace(r.ConcernType))
	r.Description = strings.TrimSpace(r.Description)
	r.ContactEmail = strings.ToLower(strings.TrimSpace(r.ContactEmail))
}

func (r *SubmitReportRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	required := []struct{ field, value string }{
		{"doctorName", r.DoctorName},
		{"location", r.Location},
		{"concernType", r.ConcernType},
		{"description", r.Description},
	}
	for _, f := range required {
		if f.value == "" {
			return dErrors.New(dErrors.CodeValidation, f.field+" is required")
		}
	}
	if r.ContactEmail != "" && !govalidator.IsEmail(r.ContactEmail) {
		return dErrors.New(dErrors.CodeValidation, "contactEmail must be a valid address")
	}
	return nil
}

// Content returns the validated report content. Unknown concern types are kept as given.
func (r *SubmitReportRequest) Content() models.ReportContent {
	return models.ReportContent{
		DoctorName:    r.DoctorName,
		LicenseNumber: r.LicenseNumber,
		Location:      r.Location,
		ConcernType:   models.ConcernType(r.ConcernType),
		Description:   r.Description,
		ContactEmail:  r.ContactEmail,
	}
}

// ApproveRequest is the body of POST /admin/approve.
type ApproveRequest struct {
	DoctorID         string `json:"doctorId"`
	ApproverIdentity string `json:"approverIdentity"`

	parsedID id.DoctorID
}

func (r *ApproveRequest) Normalize() {
	r.DoctorID = strings.TrimSpace(r.DoctorID)
	r.ApproverIdentity = strings.TrimSpace(r.ApproverIdentity)
}

func (r *ApproveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.DoctorID == "" {
		return dErrors.New(dErrors.CodeValidation, "doctorId is required")
	}
	if len(r.ApproverIdentity) > maxApproverLength {
		return dErrors.New(dErrors.CodeValidation, "approverIdentity is too long")
	}
	doctorID, err := id.ParseDoctorID(r.DoctorID)
	if err != nil {
		return err
	}
	r.parsedID = doctorID
	return nil
}

func (r *ApproveRequest) ParsedID() id.DoctorID {
	return r.parsedID
}

// RejectRequest is the body of POST /admin/doctors/{id}/reject.
type RejectRequest struct {
	Reason           string `json:"reason"`
	ApproverIdentity string `json:"approverIdentity"`
}

func (r *RejectRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
	r.ApproverIdentity = strings.TrimSpace(r.ApproverIdentity)
}

func (r *RejectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Reason) > maxReasonLength {
		return dErrors.New(dErrors.CodeValidation, "reason is too long")
	}
	if len(r.ApproverIdentity) > maxApproverLength {
		return dErrors.New(dErrors.CodeValidation, "approverIdentity is too long")
	}
	return nil
}

// LicenseActionRequest is the optional body of the revoke and reactivate routes.
type LicenseActionRequest struct {
	ApproverIdentity string `json:"approverIdentity"`
}

func (r *LicenseActionRequest) Normalize() {
	r.ApproverIdentity = strings.TrimSpace(r.ApproverIdentity)
}

func (r *LicenseActionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.ApproverIdentity) > maxApproverLength {
		return dErrors.New(dErrors.CodeValidation, "approverIdentity is too long")
	}
	return nil
}

// AdvanceStatusRequest is the body of POST /admin/reports/{id}/status.
type AdvanceStatusRequest struct {
	Status string `json:"status"`

	parsedStatus models.ReportStatus
}

func (r *AdvanceStatusRequest) Normalize() {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
}

func (r *AdvanceStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	status, err := models.ParseReportStatus(r.Status)
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

func (r *AdvanceStatusRequest) ParsedStatus() models.ReportStatus {
	return r.parsedStatus
}
