// Package journal is an append-only, hash-chained event log. Each entry commits
// to its predecessor's hash, so rewriting any entry breaks every later link.
package journal

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// GenesisHash is the previous-hash of the first entry.
const GenesisHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one anchored event.
type Entry struct {
	Seq       uint64          `json:"seq"`
	Type      string          `json:"type"`
	License   string          `json:"license"`
	Approver  string          `json:"approver"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	PrevHash  string          `json:"prevHash"`
	Hash      string          `json:"hash"`
}

// Draft is what callers append; the journal assigns sequence and hashes.
type Draft struct {
	Type      string
	License   string
	Approver  string
	Timestamp time.Time
	Payload   json.RawMessage
}

// ComputeHash returns "0x"+Keccak-256 over the entry's canonical encoding.
// The stored Hash field is not part of the input.
func ComputeHash(e Entry) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(e.Seq, 10))
	b.WriteByte('|')
	b.WriteString(e.Type)
	b.WriteByte('|')
	b.WriteString(e.License)
	b.WriteByte('|')
	b.WriteString(e.Approver)
	b.WriteByte('|')
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(e.PrevHash)
	b.WriteByte('|')
	b.Write(e.Payload)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(b.String()))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
