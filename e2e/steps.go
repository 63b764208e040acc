package e2e

import (
	"github.com/cucumber/godog"

	"docverify/e2e/steps/common"
	"docverify/e2e/steps/ratelimit"
	"docverify/e2e/steps/registry"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	registry.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
