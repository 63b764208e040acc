package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers credential decisions with regulatory weight.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers fraud and impersonation signals.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine intake and triage activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It is transport
// agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	// Subject is the business key the event is about (license number or report id).
	Subject   string `json:"subject"`
	Action    string `json:"action"`
	RecordID  string `json:"record_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Receipt   string `json:"receipt,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
}

type AuditEvent string

const (
	EventDoctorSubmitted     AuditEvent = "doctor_submitted"
	EventDoctorApproved      AuditEvent = "doctor_approved"
	EventDoctorRejected      AuditEvent = "doctor_rejected"
	EventLicenseRevoked      AuditEvent = "license_revoked"
	EventLicenseReactivated  AuditEvent = "license_reactivated"
	EventReportSubmitted     AuditEvent = "report_submitted"
	EventReportStatusChanged AuditEvent = "report_status_changed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDoctorApproved:     CategoryCompliance,
	EventDoctorRejected:     CategoryCompliance,
	EventLicenseRevoked:     CategoryCompliance,
	EventLicenseReactivated: CategoryCompliance,

	EventReportSubmitted: CategorySecurity,

	EventDoctorSubmitted:     CategoryOperations,
	EventReportStatusChanged: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Sink receives events for durable or remote delivery.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a Sink that can also be queried.
type Store interface {
	Sink
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
