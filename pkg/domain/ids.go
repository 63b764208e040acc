// Package domain holds identifier types shared across modules.
//
// IDs are distinct named UUID types so a report id can never be passed where a
// doctor id is expected.
package domain

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "docverify/pkg/domain-errors"
)

type (
	DoctorID uuid.UUID
	ReportID uuid.UUID
)

func NewDoctorID() DoctorID { return DoctorID(uuid.New()) }
func NewReportID() ReportID { return ReportID(uuid.New()) }

func ParseDoctorID(s string) (DoctorID, error) {
	u, err := parseUUID(s, "doctor id")
	return DoctorID(u), err
}

func ParseReportID(s string) (ReportID, error) {
	u, err := parseUUID(s, "report id")
	return ReportID(u), err
}

func (id DoctorID) String() string { return uuid.UUID(id).String() }
func (id DoctorID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ReportID) String() string { return uuid.UUID(id).String() }
func (id ReportID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id DoctorID) MarshalJSON() ([]byte, error) { return json.Marshal(id.String()) }
func (id ReportID) MarshalJSON() ([]byte, error) { return json.Marshal(id.String()) }

func (id *DoctorID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDoctorID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ReportID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseReportID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" || len(s) > 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	u, err := uuid.Parse(s)
	if err != nil || u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	return u, nil
}

// licensePattern admits letters, digits and hyphens. Storage keys embed the
// license, so separators like ':' and '/' are refused.
var licensePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{1,63}$`)

// NormalizeLicense trims a license number and checks its format. Comparison is
// exact after trimming; case is preserved.
func NormalizeLicense(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "licenseNumber is required")
	}
	if !licensePattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeValidation, "licenseNumber must be 2-64 letters, digits or hyphens")
	}
	return s, nil
}
