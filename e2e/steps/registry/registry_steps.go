package registry

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	AdminPOST(path string, body any) error
	AdminGET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	License(base string) string
	Remember(key, value string)
	Recall(key string) (string, error)
}

// RegisterSteps registers doctor lifecycle and report step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrySteps{tc: tc}

	ctx.Step(`^I register doctor "([^"]*)" with license "([^"]*)"$`, steps.registerDoctor)
	ctx.Step(`^I register a doctor without an email$`, steps.registerWithoutEmail)
	ctx.Step(`^a registered doctor "([^"]*)" with license "([^"]*)"$`, steps.givenRegisteredDoctor)
	ctx.Step(`^a verified doctor "([^"]*)" with license "([^"]*)"$`, steps.givenVerifiedDoctor)
	ctx.Step(`^I look up license "([^"]*)"$`, steps.lookUpLicense)
	ctx.Step(`^I approve the doctor with license "([^"]*)"$`, steps.approveDoctor)
	ctx.Step(`^I reject the doctor with license "([^"]*)" because "([^"]*)"$`, steps.rejectDoctor)
	ctx.Step(`^I revoke license "([^"]*)"$`, steps.revokeLicense)
	ctx.Step(`^I reactivate license "([^"]*)"$`, steps.reactivateLicense)
	ctx.Step(`^I request the ledger proof for license "([^"]*)"$`, steps.ledgerProof)
	ctx.Step(`^I verify the ledger chain$`, steps.verifyChain)
	ctx.Step(`^the response receipt should be a ledger hash$`, steps.receiptShouldBeHash)

	ctx.Step(`^I report doctor "([^"]*)" for "([^"]*)"$`, steps.submitReport)
	ctx.Step(`^I save the report id$`, steps.saveReportID)
	ctx.Step(`^I move the report to "([^"]*)"$`, steps.advanceReport)
	ctx.Step(`^I list reports with priority "([^"]*)"$`, steps.listReportsByPriority)
	ctx.Step(`^the listed reports should include the saved report$`, steps.listedReportsIncludeSaved)
}

type registrySteps struct {
	tc TestContext
}

func (s *registrySteps) doctorBody(name, license string) map[string]any {
	return map[string]any{
		"licenseNumber":  s.tc.License(license),
		"name":           name,
		"email":          "doctor@example.com",
		"specialization": "Cardiology",
		"institution":    "General Hospital",
		"graduationYear": 2010,
		"documents":      []string{"license.pdf"},
	}
}

func (s *registrySteps) registerDoctor(ctx context.Context, name, license string) error {
	if err := s.tc.POST("/doctors", s.doctorBody(name, license)); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == 201 {
		id, err := s.tc.GetResponseField("id")
		if err != nil {
			return err
		}
		s.tc.Remember("doctor:"+license, fmt.Sprint(id))
	}
	return nil
}

func (s *registrySteps) registerWithoutEmail(ctx context.Context) error {
	body := s.doctorBody("No Email", "MD-NOEMAIL")
	delete(body, "email")
	return s.tc.POST("/doctors", body)
}

func (s *registrySteps) givenRegisteredDoctor(ctx context.Context, name, license string) error {
	if err := s.registerDoctor(ctx, name, license); err != nil {
		return err
	}
	return s.expect(201)
}

func (s *registrySteps) givenVerifiedDoctor(ctx context.Context, name, license string) error {
	if err := s.givenRegisteredDoctor(ctx, name, license); err != nil {
		return err
	}
	if err := s.approveDoctor(ctx, license); err != nil {
		return err
	}
	return s.expect(200)
}

func (s *registrySteps) lookUpLicense(ctx context.Context, license string) error {
	return s.tc.GET("/doctors/" + url.PathEscape(s.tc.License(license)))
}

func (s *registrySteps) approveDoctor(ctx context.Context, license string) error {
	id, err := s.tc.Recall("doctor:" + license)
	if err != nil {
		return err
	}
	return s.tc.AdminPOST("/approve", map[string]any{
		"doctorId":         id,
		"approverIdentity": "e2e-admin",
	})
}

func (s *registrySteps) rejectDoctor(ctx context.Context, license, reason string) error {
	id, err := s.tc.Recall("doctor:" + license)
	if err != nil {
		return err
	}
	return s.tc.AdminPOST("/doctors/"+id+"/reject", map[string]any{
		"reason":           reason,
		"approverIdentity": "e2e-admin",
	})
}

func (s *registrySteps) revokeLicense(ctx context.Context, license string) error {
	return s.tc.AdminPOST("/licenses/"+url.PathEscape(s.tc.License(license))+"/revoke", map[string]any{})
}

func (s *registrySteps) reactivateLicense(ctx context.Context, license string) error {
	return s.tc.AdminPOST("/licenses/"+url.PathEscape(s.tc.License(license))+"/reactivate", map[string]any{})
}

func (s *registrySteps) ledgerProof(ctx context.Context, license string) error {
	return s.tc.GET("/doctors/" + url.PathEscape(s.tc.License(license)) + "/ledger")
}

func (s *registrySteps) verifyChain(ctx context.Context) error {
	return s.tc.AdminGET("/ledger/verify")
}

func (s *registrySteps) receiptShouldBeHash(ctx context.Context) error {
	v, err := s.tc.GetResponseField("receipt")
	if err != nil {
		return err
	}
	receipt, _ := v.(string)
	if len(receipt) != 66 || receipt[:2] != "0x" {
		return fmt.Errorf("expected 0x-prefixed 32 byte hash, got %q", receipt)
	}
	return nil
}

func (s *registrySteps) submitReport(ctx context.Context, doctorName, concern string) error {
	return s.tc.POST("/reports", map[string]any{
		"doctorName":  doctorName,
		"location":    "Springfield",
		"concernType": concern,
		"description": "reported during e2e run",
	})
}

func (s *registrySteps) saveReportID(ctx context.Context) error {
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.Remember("report", fmt.Sprint(id))
	return nil
}

func (s *registrySteps) advanceReport(ctx context.Context, status string) error {
	id, err := s.tc.Recall("report")
	if err != nil {
		return err
	}
	return s.tc.AdminPOST("/reports/"+id+"/status", map[string]any{"status": status})
}

func (s *registrySteps) listReportsByPriority(ctx context.Context, priority string) error {
	return s.tc.AdminGET("/reports?priority=" + url.QueryEscape(priority))
}

func (s *registrySteps) listedReportsIncludeSaved(ctx context.Context) error {
	id, err := s.tc.Recall("report")
	if err != nil {
		return err
	}
	v, err := s.tc.GetResponseField("reports")
	if err != nil {
		return err
	}
	items, _ := v.([]any)
	for _, item := range items {
		if r, ok := item.(map[string]any); ok && fmt.Sprint(r["id"]) == id {
			return nil
		}
	}
	return fmt.Errorf("report %s not in listing: %s", id, s.tc.GetLastResponseBody())
}

func (s *registrySteps) expect(status int) error {
	if got := s.tc.GetLastResponseStatus(); got != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, got, s.tc.GetLastResponseBody())
	}
	return nil
}
