package models

// DoctorFilter is a conjunction of exact-match predicates. Zero fields match anything.
type DoctorFilter struct {
	Status         DoctorStatus
	IsActive       *bool
	Specialization string
}

func (f DoctorFilter) Matches(d *Doctor) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.IsActive != nil && d.IsActive != *f.IsActive {
		return false
	}
	if f.Specialization != "" && d.Specialization != f.Specialization {
		return false
	}
	return true
}

// ReportFilter is a conjunction of exact-match predicates. Zero fields match anything.
type ReportFilter struct {
	Status      ReportStatus
	Priority    Priority
	ConcernType ConcernType
	// OpenOnly restricts to unresolved reports.
	OpenOnly bool
}

func (f ReportFilter) Matches(r *Report) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.ConcernType != "" && r.ConcernType != f.ConcernType {
		return false
	}
	if f.OpenOnly && !r.IsOpen() {
		return false
	}
	return true
}

// Dashboard summarizes the registry for the admin overview.
type Dashboard struct {
	PendingDoctors      int `json:"pendingDoctors"`
	VerifiedDoctors     int `json:"verifiedDoctors"`
	ActiveDoctors       int `json:"activeDoctors"`
	OpenReports         int `json:"openReports"`
	HighPriorityReports int `json:"highPriorityOpenReports"`
}
