package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// TestContext carries HTTP state across the steps of one scenario.
type TestContext struct {
	BaseURL    string
	AdminToken string
	HTTPClient *http.Client

	runID        string
	lastStatus   int
	lastBody     []byte
	lastHeaders  http.Header
	lastDecoded  map[string]any
	remembered   map[string]string
	forwardedFor string
}

// NewTestContext reads E2E_BASE_URL and E2E_ADMIN_TOKEN.
func NewTestContext() *TestContext {
	baseURL := os.Getenv("E2E_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &TestContext{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AdminToken: os.Getenv("E2E_ADMIN_TOKEN"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears per-scenario state and picks a fresh suffix for license numbers.
func (tc *TestContext) Reset() {
	tc.runID = strconv.FormatInt(time.Now().UnixNano()%1_000_000_000, 36)
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeaders = nil
	tc.lastDecoded = nil
	tc.remembered = make(map[string]string)
	tc.forwardedFor = ""
}

// License turns a feature-file license into one unique to this scenario so
// runs against a long-lived server do not collide.
func (tc *TestContext) License(base string) string {
	return strings.ToUpper(base + "-" + tc.runID)
}

// SetClientIP makes later requests carry X-Forwarded-For. The server only
// honors it when TRUSTED_PROXIES covers the address the suite connects from.
func (tc *TestContext) SetClientIP(ip string) {
	tc.forwardedFor = ip
}

func (tc *TestContext) Remember(key, value string) {
	tc.remembered[key] = value
}

func (tc *TestContext) Recall(key string) (string, error) {
	v, ok := tc.remembered[key]
	if !ok {
		return "", fmt.Errorf("nothing remembered as %q", key)
	}
	return v, nil
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, false)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, false)
}

func (tc *TestContext) AdminPOST(path string, body any) error {
	return tc.do(http.MethodPost, "/admin"+path, body, true)
}

func (tc *TestContext) AdminGET(path string) error {
	return tc.do(http.MethodGet, "/admin"+path, nil, true)
}

func (tc *TestContext) GetLastResponseStatus() int {
	return tc.lastStatus
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.lastBody
}

func (tc *TestContext) GetLastResponseHeader(name string) string {
	if tc.lastHeaders == nil {
		return ""
	}
	return tc.lastHeaders.Get(name)
}

// GetResponseField resolves a dotted path such as "doctor.status" in the last JSON body.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	if tc.lastDecoded == nil {
		return nil, fmt.Errorf("last response was not a JSON object: %s", tc.lastBody)
	}
	var cur any = tc.lastDecoded
	for _, part := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		cur, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response: %s", field, tc.lastBody)
		}
	}
	return cur, nil
}

func (tc *TestContext) do(method, path string, body any, admin bool) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), tc.HTTPClient.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin && tc.AdminToken != "" {
		req.Header.Set("X-Admin-Token", tc.AdminToken)
	}
	if tc.forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", tc.forwardedFor)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	if tc.lastBody, err = io.ReadAll(resp.Body); err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	tc.lastDecoded = nil
	var decoded map[string]any
	if json.Unmarshal(tc.lastBody, &decoded) == nil {
		tc.lastDecoded = decoded
	}
	return nil
}
