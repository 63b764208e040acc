package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"docverify/internal/ledger/journal"
	"docverify/pkg/requestcontext"
)

// JournalClient implements Client directly on a hash-chained journal.
type JournalClient struct {
	journal *journal.Journal
}

func NewJournalClient(j *journal.Journal) *JournalClient {
	return &JournalClient{journal: j}
}

// AnchorRegistration records an approval. A license can be registered once.
func (c *JournalClient) AnchorRegistration(ctx context.Context, reg Registration) (Receipt, error) {
	payload, err := json.Marshal(reg)
	if err != nil {
		return "", fmt.Errorf("encode registration: %w", err)
	}
	entry, err := c.journal.AppendIf(ctx, journal.Draft{
		Type:      string(EventRegistration),
		License:   reg.LicenseNumber,
		Approver:  reg.Approver,
		Timestamp: requestcontext.Now(ctx),
		Payload:   payload,
	}, func(existing []journal.Entry) error {
		for _, e := range existing {
			if e.Type == string(EventRegistration) {
				return ErrAlreadyAnchored
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return Receipt(entry.Hash), nil
}

// AnchorRevocation records a revocation. Repeated revocations each get their own entry.
func (c *JournalClient) AnchorRevocation(ctx context.Context, license, approver string) (Receipt, error) {
	return c.anchorToggle(ctx, EventRevocation, license, approver)
}

// AnchorReactivation records a reactivation.
func (c *JournalClient) AnchorReactivation(ctx context.Context, license, approver string) (Receipt, error) {
	return c.anchorToggle(ctx, EventReactivation, license, approver)
}

func (c *JournalClient) anchorToggle(ctx context.Context, typ EventType, license, approver string) (Receipt, error) {
	entry, err := c.journal.Append(ctx, journal.Draft{
		Type:      string(typ),
		License:   license,
		Approver:  approver,
		Timestamp: requestcontext.Now(ctx),
	})
	if err != nil {
		return "", err
	}
	return Receipt(entry.Hash), nil
}

// QueryRegistration folds a license's entries into its current ledger view.
func (c *JournalClient) QueryRegistration(ctx context.Context, license string) (*DoctorView, error) {
	entries, err := c.journal.ForLicense(ctx, license)
	if err != nil {
		return nil, err
	}

	var view *DoctorView
	for _, e := range entries {
		switch EventType(e.Type) {
		case EventRegistration:
			var reg Registration
			if err := json.Unmarshal(e.Payload, &reg); err != nil {
				return nil, fmt.Errorf("decode registration %d: %w", e.Seq, err)
			}
			view = &DoctorView{
				LicenseNumber:       reg.LicenseNumber,
				Name:                reg.Name,
				Specialization:      reg.Specialization,
				Institution:         reg.Institution,
				GraduationYear:      reg.GraduationYear,
				RegisteredAt:        e.Timestamp,
				ExpiryDate:          reg.ExpiryDate,
				IsActive:            true,
				Approver:            reg.Approver,
				RegistrationReceipt: Receipt(e.Hash),
				LatestReceipt:       Receipt(e.Hash),
			}
		case EventRevocation, EventReactivation:
			// Toggles before a registration describe a pending record; they have no view.
			if view == nil {
				continue
			}
			view.IsActive = EventType(e.Type) == EventReactivation
			view.LatestReceipt = Receipt(e.Hash)
		}
	}
	if view == nil {
		return nil, ErrNotAnchored
	}
	return view, nil
}

// Verify walks the whole chain.
func (c *JournalClient) Verify(ctx context.Context) (*IntegrityReport, error) {
	v, err := c.journal.Verify(ctx)
	report := &IntegrityReport{
		Entries:  v.Entries,
		Head:     Receipt(v.Head),
		Valid:    err == nil,
		BrokenAt: v.BrokenAt,
		Reason:   v.Reason,
	}
	if err != nil && !errors.Is(err, journal.ErrBroken) {
		return nil, err
	}
	return report, nil
}
