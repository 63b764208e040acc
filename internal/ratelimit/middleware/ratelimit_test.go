package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/ratelimit/models"
	"docverify/internal/ratelimit/store/bucket"
	"docverify/pkg/platform/middleware/metadata"
	"docverify/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*models.Result, error) {
	return nil, errors.New("redis: connection refused")
}

func serve(t *testing.T, h http.Handler, ip string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/doctors/MD12345678", nil)
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, "test"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitDeniesOverBudget(t *testing.T) {
	m := New(bucket.NewInMemoryBucketStore(), slog.Default(),
		WithPolicy(models.ClassLookup, 2, time.Minute),
	)
	h := m.RateLimit(models.ClassLookup)(okHandler)

	first := serve(t, h, "203.0.113.7")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Reset"))

	assert.Equal(t, http.StatusOK, serve(t, h, "203.0.113.7").Code)

	denied := serve(t, h, "203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.NotEmpty(t, denied.Header().Get("Retry-After"))

	var body models.ExceededResponse
	require.NoError(t, json.NewDecoder(denied.Body).Decode(&body))
	assert.Equal(t, "rate_limit_exceeded", body.Error)
	assert.Positive(t, body.RetryAfter)

	assert.Equal(t, http.StatusOK, serve(t, h, "198.51.100.2").Code, "other clients keep their own budget")
}

func TestRateLimitClassesAreSeparate(t *testing.T) {
	m := New(bucket.NewInMemoryBucketStore(), slog.Default(),
		WithPolicy(models.ClassSubmission, 1, time.Minute),
		WithPolicy(models.ClassLookup, 5, time.Minute),
	)
	submit := m.RateLimit(models.ClassSubmission)(okHandler)
	lookup := m.RateLimit(models.ClassLookup)(okHandler)

	assert.Equal(t, http.StatusOK, serve(t, submit, "203.0.113.7").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(t, submit, "203.0.113.7").Code)
	assert.Equal(t, http.StatusOK, serve(t, lookup, "203.0.113.7").Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	m := New(failingStore{}, slog.Default(), WithPolicy(models.ClassLookup, 1, time.Minute))
	h := m.RateLimit(models.ClassLookup)(okHandler)

	rec := serve(t, h, "203.0.113.7")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitPassThrough(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		m := New(failingStore{}, slog.Default(),
			WithPolicy(models.ClassLookup, 1, time.Minute),
			WithDisabled(true),
		)
		h := m.RateLimit(models.ClassLookup)(okHandler)
		for range 3 {
			assert.Equal(t, http.StatusOK, serve(t, h, "203.0.113.7").Code)
		}
	})

	t.Run("class without policy", func(t *testing.T) {
		m := New(failingStore{}, slog.Default())
		h := m.RateLimit(models.ClassSubmission)(okHandler)
		assert.Equal(t, http.StatusOK, serve(t, h, "203.0.113.7").Code)
	})
}

func TestAnonymizeIP(t *testing.T) {
	assert.Equal(t, "203.0.113.0/24", anonymizeIP("203.0.113.7"))
	assert.Equal(t, "2001:db8:abcd::/48", anonymizeIP("2001:db8:abcd:12::1"))
	assert.Equal(t, "invalid", anonymizeIP("unknown"))
}

func TestRateLimitIgnoresSpoofedForwardingHeaders(t *testing.T) {
	m := New(bucket.NewInMemoryBucketStore(), slog.Default(),
		WithPolicy(models.ClassLookup, 3, time.Minute),
	)
	limited := m.RateLimit(models.ClassLookup)(okHandler)

	send := func(h http.Handler, remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/doctors/MD12345678", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("rotating header from a direct peer shares one budget", func(t *testing.T) {
		h := metadata.ClientMetadata()(limited)
		allowed := 0
		for i := range 20 {
			if send(h, "198.51.100.77:40000", fmt.Sprintf("203.0.%d.%d", i/250, i%250+1)) == http.StatusOK {
				allowed++
			}
		}
		assert.Equal(t, 3, allowed)
	})

	t.Run("trusted proxy forwards distinct clients", func(t *testing.T) {
		h := metadata.ClientMetadata(netip.MustParsePrefix("10.0.0.0/8"))(limited)
		for i := range 5 {
			assert.Equal(t, http.StatusOK, send(h, "10.0.0.3:40000", fmt.Sprintf("192.0.2.%d", i+1)))
		}
	})
}
