package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// a different client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, rl.Visitors())
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", spoofed)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, rl.Visitors())
}

func TestRateLimiter_ClientIPBehindTrustedProxy(t *testing.T) {
	rl := NewRateLimiter(5, 30, "10.0.0.0/8", "192.0.2.10", "not-an-ip")
	assert.Len(t, rl.trusted, 2)

	cases := []struct {
		name      string
		remote    string
		forwarded string
		expected  string
	}{
		{"untrusted peer", "203.0.113.7:1", "198.51.100.1", "203.0.113.7"},
		{"trusted peer", "10.1.2.3:1", "198.51.100.1", "198.51.100.1"},
		{"client prepends a fake hop", "10.1.2.3:1", "1.2.3.4, 198.51.100.1", "198.51.100.1"},
		{"chained trusted proxies", "192.0.2.10:1", "198.51.100.1, 10.9.9.9", "198.51.100.1"},
		{"trusted peer without header", "10.1.2.3:1", "", "10.1.2.3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			assert.Equal(t, tc.expected, rl.clientIP(req))
		})
	}
}

func TestRateLimiter_CleanupVisitors(t *testing.T) {
	rl := NewRateLimiter(5, 30)
	rl.getLimiter("1.1.1.1")
	rl.getLimiter("2.2.2.2")
	rl.visitors["1.1.1.1"].lastSeen = time.Now().Add(-10 * time.Minute)

	assert.Equal(t, 1, rl.CleanupVisitors())
	assert.Equal(t, 1, rl.Visitors())
}
