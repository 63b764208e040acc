package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseDoctorID checks parsing never panics and valid IDs round-trip.
func FuzzParseDoctorID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("'; DROP TABLE doctors;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseDoctorID(input)
		if err == nil {
			roundTrip, err2 := ParseDoctorID(id.String())
			if err2 != nil || roundTrip != id {
				t.Errorf("valid id failed round-trip: %v", err2)
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzNormalizeLicense checks accepted licenses are stable under renormalization.
func FuzzNormalizeLicense(f *testing.F) {
	f.Add("MD12345678")
	f.Add("  md-1  ")
	f.Add("license:with:colons")

	f.Fuzz(func(t *testing.T, input string) {
		got, err := NormalizeLicense(input)
		if err != nil {
			return
		}
		again, err := NormalizeLicense(got)
		if err != nil || again != got {
			t.Errorf("normalization not idempotent for %q", input)
		}
	})
}
