package metadata

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)

	request := func(remote string, headers map[string]string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		for k, v := range headers {
			r.Header.Set(k, v)
		}
		return r
	}

	t.Run("forwarding headers ignored from an untrusted peer", func(t *testing.T) {
		r := request("198.51.100.20:4000", map[string]string{
			"X-Forwarded-For": "203.0.113.7",
			"X-Real-IP":       "203.0.113.8",
		})
		assert.Equal(t, "198.51.100.20", ClientIPFromRequest(r, proxies))
	})

	t.Run("forwarding headers ignored when no proxies are trusted", func(t *testing.T) {
		r := request("10.0.0.5:4000", map[string]string{"X-Forwarded-For": "203.0.113.7"})
		assert.Equal(t, "10.0.0.5", ClientIPFromRequest(r, nil))
	})

	t.Run("right-most untrusted hop wins behind a trusted proxy", func(t *testing.T) {
		r := request("10.0.0.5:4000", map[string]string{
			"X-Forwarded-For": "1.2.3.4, 203.0.113.7, 10.1.1.1",
		})
		assert.Equal(t, "203.0.113.7", ClientIPFromRequest(r, proxies))
	})

	t.Run("malformed hop stops the walk", func(t *testing.T) {
		r := request("192.0.2.10:4000", map[string]string{
			"X-Forwarded-For": "203.0.113.7, not-an-ip, 10.1.1.1",
		})
		assert.Equal(t, "10.1.1.1", ClientIPFromRequest(r, proxies))
	})

	t.Run("real ip header behind a trusted proxy", func(t *testing.T) {
		r := request("10.0.0.5:4000", map[string]string{"X-Real-IP": " 198.51.100.2 "})
		assert.Equal(t, "198.51.100.2", ClientIPFromRequest(r, proxies))
	})

	t.Run("remote addr port stripped", func(t *testing.T) {
		r := request("192.0.2.1:5555", nil)
		assert.Equal(t, "192.0.2.1", ClientIPFromRequest(r, proxies))
	})

	t.Run("ipv6 remote addr", func(t *testing.T) {
		r := request("[2001:db8::1]:443", nil)
		assert.Equal(t, "2001:db8::1", ClientIPFromRequest(r, proxies))
	})
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{" 10.0.0.0/8 ", "", "127.0.0.1", "::1"})
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("127.0.0.1/32"),
		netip.MustParsePrefix("::1/128"),
	}, got)

	_, err = ParseTrustedProxies([]string{"10.0.0.0/99"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
}

func TestClientMetadataMiddleware(t *testing.T) {
	var gotIP, gotUA string
	h := ClientMetadata(netip.MustParsePrefix("10.0.0.0/8"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/reports", nil)
	r.RemoteAddr = "10.0.0.2:8080"
	r.Header.Set("X-Real-IP", "198.51.100.9")
	r.Header.Set("User-Agent", "curl/8.4.0")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "198.51.100.9", gotIP)
	assert.Equal(t, "curl/8.4.0", gotUA)

	r = httptest.NewRequest(http.MethodPost, "/reports", nil)
	r.RemoteAddr = "198.51.100.50:8080"
	r.Header.Set("X-Real-IP", "198.51.100.9")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "198.51.100.50", gotIP)
}

func TestDescribeUserAgent(t *testing.T) {
	t.Run("empty user agent", func(t *testing.T) {
		assert.Equal(t, "Unknown Device", DescribeUserAgent(""))
	})

	t.Run("desktop chrome", func(t *testing.T) {
		got := DescribeUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		assert.Contains(t, got, "Chrome")
		assert.Contains(t, got, " on ")
		assert.Equal(t, strings.TrimSpace(got), got)
	})

	t.Run("firefox on linux", func(t *testing.T) {
		got := DescribeUserAgent("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
		assert.Contains(t, got, "Firefox")
	})
}
