package models

import (
	dErrors "docverify/pkg/domain-errors"
)

// DoctorStatus is the registration lifecycle state.
type DoctorStatus string

const (
	DoctorStatusPending  DoctorStatus = "pending"
	DoctorStatusVerified DoctorStatus = "verified"
	DoctorStatusRejected DoctorStatus = "rejected"
)

func (s DoctorStatus) IsValid() bool {
	switch s {
	case DoctorStatusPending, DoctorStatusVerified, DoctorStatusRejected:
		return true
	}
	return false
}

func ParseDoctorStatus(s string) (DoctorStatus, error) {
	status := DoctorStatus(s)
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of pending, verified, rejected")
	}
	return status, nil
}

// ReportStatus is the triage state of a report. States only move forward.
type ReportStatus string

const (
	ReportStatusPending       ReportStatus = "pending"
	ReportStatusInvestigating ReportStatus = "investigating"
	ReportStatusResolved      ReportStatus = "resolved"
)

var reportStatusRank = map[ReportStatus]int{
	ReportStatusPending:       0,
	ReportStatusInvestigating: 1,
	ReportStatusResolved:      2,
}

func (s ReportStatus) IsValid() bool {
	_, ok := reportStatusRank[s]
	return ok
}

// CanTransitionTo allows any strictly forward move, including skips.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	from, ok := reportStatusRank[s]
	if !ok {
		return false
	}
	to, ok := reportStatusRank[next]
	if !ok {
		return false
	}
	return to > from
}

func ParseReportStatus(s string) (ReportStatus, error) {
	status := ReportStatus(s)
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of pending, investigating, resolved")
	}
	return status, nil
}

// Priority is fixed when a report is created.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "priority must be one of high, medium, low")
	}
	return p, nil
}

// ConcernType classifies a report. Values outside the known set are kept as
// submitted and prioritized low.
type ConcernType string

const (
	ConcernFakeCredentials ConcernType = "fake_credentials"
	ConcernImpersonation   ConcernType = "impersonation"
	ConcernExpiredLicense  ConcernType = "expired_license"
	ConcernOther           ConcernType = "other"
)

// PriorityFor derives a report priority from its concern type. Total over all strings.
func PriorityFor(c ConcernType) Priority {
	switch c {
	case ConcernFakeCredentials, ConcernImpersonation:
		return PriorityHigh
	case ConcernExpiredLicense:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
