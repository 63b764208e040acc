package ratelimit

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// maxAttempts bounds the loop so a server without rate limiting fails fast.
const maxAttempts = 2000

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	GetLastResponseStatus() int
	License(base string) string
	SetClientIP(ip string)
}

// RegisterSteps registers rate limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I am calling from IP "([^"]*)"$`, steps.callingFromIP)
	ctx.Step(`^I keep looking up license "([^"]*)" until I am throttled$`, steps.lookupUntilThrottled)
}

type ratelimitSteps struct {
	tc TestContext
}

func (s *ratelimitSteps) callingFromIP(ctx context.Context, ip string) error {
	s.tc.SetClientIP(ip)
	return nil
}

func (s *ratelimitSteps) lookupUntilThrottled(ctx context.Context, license string) error {
	path := "/doctors/" + url.PathEscape(s.tc.License(license))
	for range maxAttempts {
		if err := s.tc.GET(path); err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() == 429 {
			return nil
		}
	}
	return fmt.Errorf("no 429 after %d lookups", maxAttempts)
}
