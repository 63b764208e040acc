package models

import (
	"time"

	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
)

// ReportContent is what a member of the public submits.
type ReportContent struct {
	DoctorName    string      `json:"doctorName"`
	LicenseNumber string      `json:"licenseNumber,omitempty"`
	Location      string      `json:"location"`
	ConcernType   ConcernType `json:"concernType"`
	Description   string      `json:"description"`
	ContactEmail  string      `json:"contactEmail,omitempty"`
}

// Reporter is submission metadata kept for abuse triage. Admin-only.
type Reporter struct {
	ClientIP string `json:"clientIp,omitempty"`
	Device   string `json:"device,omitempty"`
}

// Report is a public concern about a doctor.
//
// Invariants:
//   - Priority is derived from ConcernType at creation and never recomputed
//   - Status only moves forward: pending < investigating < resolved
//   - Resolved is true iff Status is resolved
type Report struct {
	ID id.ReportID `json:"id"`
	ReportContent
	Status     ReportStatus `json:"status"`
	Priority   Priority     `json:"priority"`
	Resolved   bool         `json:"resolved"`
	ReportDate time.Time    `json:"reportDate"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	Reporter   Reporter     `json:"reporter"`
}

func NewReport(reportID id.ReportID, content ReportContent, reporter Reporter, now time.Time) (*Report, error) {
	if reportID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report id cannot be nil")
	}
	if missing := content.missingField(); missing != "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, missing+" is required")
	}
	return &Report{
		ID:            reportID,
		ReportContent: content,
		Status:        ReportStatusPending,
		Priority:      PriorityFor(content.ConcernType),
		Resolved:      false,
		ReportDate:    now,
		UpdatedAt:     now,
		Reporter:      reporter,
	}, nil
}

func (c ReportContent) missingField() string {
	switch {
	case c.DoctorName == "":
		return "doctorName"
	case c.Location == "":
		return "location"
	case c.ConcernType == "":
		return "concernType"
	case c.Description == "":
		return "description"
	}
	return ""
}

// CanAdvanceTo checks a forward status move.
func (r *Report) CanAdvanceTo(next ReportStatus) error {
	if !next.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown report status "+string(next))
	}
	if !r.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"report cannot move from "+string(r.Status)+" to "+string(next))
	}
	return nil
}

func (r *Report) ApplyStatus(next ReportStatus, now time.Time) {
	r.Status = next
	r.Resolved = next == ReportStatusResolved
	r.UpdatedAt = now
}

// IsOpen reports whether the report still needs attention.
func (r *Report) IsOpen() bool {
	return r.Status != ReportStatusResolved
}

func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
