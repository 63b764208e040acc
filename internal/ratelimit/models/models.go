package models

import "time"

// Class groups endpoints that share a rate limit budget.
type Class string

const (
	// ClassSubmission covers public writes: doctor registration and concern reports.
	ClassSubmission Class = "submission"
	// ClassLookup covers public credential lookups and token verification.
	ClassLookup Class = "lookup"
)

// Policy is the request budget for one Class.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of a single rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, set when not allowed
}

// ExceededResponse is the API response when a client runs out of budget.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, never below one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	wait := resetAt.Sub(now)
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
