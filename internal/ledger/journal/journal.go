package journal

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"docverify/pkg/platform/sentinel"
)

// Backend persists entries. Appends are serialized by Journal; backends only
// need to make a single Append durable and atomic.
type Backend interface {
	Head(ctx context.Context) (Entry, bool, error)
	Append(ctx context.Context, e Entry) error
	ForLicense(ctx context.Context, license string) ([]Entry, error)
	// All yields entries in sequence order.
	All(ctx context.Context) iter.Seq2[Entry, error]
	Close() error
}

// Guard inspects the license's existing entries under the append lock and
// returns an error to refuse the append.
type Guard func(existing []Entry) error

// Journal chains entries on top of a Backend.
type Journal struct {
	mu      sync.Mutex
	backend Backend
}

func New(backend Backend) *Journal {
	return &Journal{backend: backend}
}

// Append links draft to the current head and persists it.
func (j *Journal) Append(ctx context.Context, d Draft) (Entry, error) {
	return j.AppendIf(ctx, d, nil)
}

// AppendIf is Append with a guard evaluated atomically with the write.
func (j *Journal) AppendIf(ctx context.Context, d Draft, guard Guard) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if guard != nil {
		existing, err := j.backend.ForLicense(ctx, d.License)
		if err != nil {
			return Entry{}, fmt.Errorf("load license entries: %w", err)
		}
		if err := guard(existing); err != nil {
			return Entry{}, err
		}
	}

	head, ok, err := j.backend.Head(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("load journal head: %w", err)
	}
	e := Entry{
		Seq:       1,
		Type:      d.Type,
		License:   d.License,
		Approver:  d.Approver,
		Timestamp: d.Timestamp.UTC(),
		Payload:   d.Payload,
		PrevHash:  GenesisHash,
	}
	if ok {
		e.Seq = head.Seq + 1
		e.PrevHash = head.Hash
	}
	e.Hash = ComputeHash(e)

	if err := j.backend.Append(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("append journal entry: %w", err)
	}
	return e, nil
}

// ForLicense returns a license's entries in sequence order.
func (j *Journal) ForLicense(ctx context.Context, license string) ([]Entry, error) {
	return j.backend.ForLicense(ctx, license)
}

// Head returns the latest entry, or sentinel.ErrNotFound on an empty journal.
func (j *Journal) Head(ctx context.Context) (Entry, error) {
	head, ok, err := j.backend.Head(ctx)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, sentinel.ErrNotFound
	}
	return head, nil
}

// ErrBroken reports a chain integrity failure.
var ErrBroken = errors.New("journal chain broken")

// Verification is the outcome of Verify.
type Verification struct {
	Entries  uint64
	Head     string
	BrokenAt uint64
	Reason   string
}

// Verify walks the chain from genesis, checking sequence continuity, back
// links and recomputed hashes. A broken chain is reported in the result with
// an error wrapping ErrBroken; backend failures return a plain error.
func (j *Journal) Verify(ctx context.Context) (Verification, error) {
	var v Verification
	prev := GenesisHash
	for e, err := range j.backend.All(ctx) {
		if err != nil {
			return v, fmt.Errorf("read journal: %w", err)
		}
		expectSeq := v.Entries + 1
		switch {
		case e.Seq != expectSeq:
			v.BrokenAt, v.Reason = expectSeq, fmt.Sprintf("sequence gap: expected %d, found %d", expectSeq, e.Seq)
		case e.PrevHash != prev:
			v.BrokenAt, v.Reason = e.Seq, "previous hash does not match"
		case ComputeHash(e) != e.Hash:
			v.BrokenAt, v.Reason = e.Seq, "entry hash does not match contents"
		}
		if v.Reason != "" {
			return v, fmt.Errorf("%w at %d: %s", ErrBroken, v.BrokenAt, v.Reason)
		}
		v.Entries++
		prev = e.Hash
		v.Head = e.Hash
	}
	return v, nil
}

// Close releases the backend.
func (j *Journal) Close() error {
	return j.backend.Close()
}
