// Package sentinel holds the infrastructure-level facts stores report back to services.
//
// Stores return these (optionally wrapped with %w) and services translate them
// into domain errors:
//   - ErrNotFound: no record with the requested key
//   - ErrAlreadyUsed: a unique business key (license number) is taken
//   - ErrInvalidState: the record is in the wrong state for the mutation
//   - ErrExpired: a signed artifact is past its expiry
//   - ErrUnavailable: a backing service is down or the lock could not be acquired
//
// Input validation failures belong in pkg/domain-errors, not here.
package sentinel

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
