package health

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/pkg/testutil"
)

func fixedHost(context.Context) Host {
	return Host{CPUPercent: 12.5, MemoryUsedPercent: 40}
}

func serve(t *testing.T, h *Handler) *Response {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	resp := testutil.UnmarshalResponse[Response](t, rr)
	if resp.Status == "ok" {
		require.Equal(t, http.StatusOK, rr.Code)
	} else {
		require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	}
	return resp
}

func TestHealthy(t *testing.T) {
	resp := serve(t, New(
		WithHostStats(fixedHost),
		WithCheck("store", func(context.Context) error { return nil }),
		WithCheck("ledger", func(context.Context) error { return nil }),
	))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]string{"store": "ok", "ledger": "ok"}, resp.Checks)
	assert.Equal(t, 12.5, resp.Host.CPUPercent)
}

func TestDegraded(t *testing.T) {
	resp := serve(t, New(
		WithHostStats(fixedHost),
		WithCheck("store", func(context.Context) error { return nil }),
		WithCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
	))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["redis"])
}

func TestSampleHostDoesNotFail(t *testing.T) {
	host := SampleHost(context.Background())
	assert.GreaterOrEqual(t, host.MemoryUsedPercent, 0.0)
}
