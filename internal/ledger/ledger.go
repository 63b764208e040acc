// Package ledger anchors credential lifecycle events in an append-only,
// hash-chained journal and hands back receipts that prove the anchor happened.
//
// The registry calls the ledger before committing a lifecycle change locally.
// A returned receipt is final: nothing is rolled back if the local commit later fails.
package ledger

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -source=ledger.go -destination=mocks/mocks.go -package=mocks Client

// Receipt is the content-addressed proof of an anchor: "0x" followed by the
// hex Keccak-256 digest of the journal entry.
type Receipt string

func (r Receipt) String() string { return string(r) }

// EventType names the kind of lifecycle event anchored.
type EventType string

const (
	EventRegistration EventType = "registration"
	EventRevocation   EventType = "revocation"
	EventReactivation EventType = "reactivation"
)

var (
	// ErrNotAnchored is returned by QueryRegistration for a license with no registration entry.
	ErrNotAnchored = errors.New("ledger: license not anchored")
	// ErrAlreadyAnchored is returned when a license is registered a second time.
	ErrAlreadyAnchored = errors.New("ledger: license already anchored")
)

// Registration carries the fields anchored when a doctor is approved.
type Registration struct {
	LicenseNumber  string    `json:"licenseNumber"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Institution    string    `json:"institution"`
	GraduationYear int       `json:"graduationYear"`
	ExpiryDate     time.Time `json:"expiryDate"`
	Approver       string    `json:"approver"`
}

// DoctorView is the ledger's own projection of a license: the anchored
// registration with revocations and reactivations folded in.
type DoctorView struct {
	LicenseNumber       string    `json:"licenseNumber"`
	Name                string    `json:"name"`
	Specialization      string    `json:"specialization"`
	Institution         string    `json:"institution"`
	GraduationYear      int       `json:"graduationYear"`
	RegisteredAt        time.Time `json:"registeredAt"`
	ExpiryDate          time.Time `json:"expiryDate"`
	IsActive            bool      `json:"isActive"`
	Approver            string    `json:"approver"`
	RegistrationReceipt Receipt   `json:"registrationReceipt"`
	LatestReceipt       Receipt   `json:"latestReceipt"`
}

// IntegrityReport is the result of walking the hash chain.
type IntegrityReport struct {
	Entries  uint64  `json:"entries"`
	Head     Receipt `json:"head,omitempty"`
	Valid    bool    `json:"valid"`
	BrokenAt uint64  `json:"brokenAt,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// Client is the registry's view of the anchoring system.
type Client interface {
	AnchorRegistration(ctx context.Context, reg Registration) (Receipt, error)
	QueryRegistration(ctx context.Context, license string) (*DoctorView, error)
	AnchorRevocation(ctx context.Context, license, approver string) (Receipt, error)
	AnchorReactivation(ctx context.Context, license, approver string) (Receipt, error)
	Verify(ctx context.Context) (*IntegrityReport, error)
}
