package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name         string
		remoteAddr   string
		forwarded    string
		realIP       string
		trustProxy   bool
		trustedCount int
		want         string
	}{
		{name: "direct connection", remoteAddr: "192.168.1.100:12345", want: "192.168.1.100"},
		{name: "IPv6 remote address", remoteAddr: "[::1]:12345", want: "::1"},
		{name: "malformed remote address", remoteAddr: "malformed", want: "malformed"},
		{
			name:       "forwarded for ignored without trust",
			remoteAddr: "10.0.0.1:12345",
			forwarded:  "203.0.113.1",
			want:       "10.0.0.1",
		},
		{
			name:       "forwarded for with default proxy count",
			remoteAddr: "10.0.0.1:12345",
			forwarded:  "203.0.113.1, 10.0.0.2",
			trustProxy: true,
			want:       "203.0.113.1",
		},
		{
			name:         "forwarded for with two proxies",
			remoteAddr:   "10.0.0.1:12345",
			forwarded:    "203.0.113.1, 10.0.0.2, 10.0.0.3",
			trustProxy:   true,
			trustedCount: 2,
			want:         "203.0.113.1",
		},
		{
			name:         "spoofed entry left of the client is skipped",
			remoteAddr:   "10.0.0.1:12345",
			forwarded:    "6.6.6.6, 203.0.113.1, 10.0.0.2",
			trustProxy:   true,
			trustedCount: 1,
			want:         "203.0.113.1",
		},
		{
			name:         "more proxies than hops",
			remoteAddr:   "10.0.0.1:12345",
			forwarded:    "203.0.113.1",
			trustProxy:   true,
			trustedCount: 5,
			want:         "203.0.113.1",
		},
		{
			name:       "forwarded for wins over real ip",
			remoteAddr: "10.0.0.1:12345",
			forwarded:  "203.0.113.1",
			realIP:     "203.0.113.2",
			trustProxy: true,
			want:       "203.0.113.1",
		},
		{
			name:       "real ip with trust",
			remoteAddr: "10.0.0.1:12345",
			realIP:     "203.0.113.1",
			trustProxy: true,
			want:       "203.0.113.1",
		},
		{
			name:       "invalid forwarded for falls back to remote address",
			remoteAddr: "10.0.0.1:12345",
			forwarded:  "not-an-ip",
			trustProxy: true,
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			if got := GetClientIP(req, tt.trustProxy, tt.trustedCount); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsSecureRequest(t *testing.T) {
	tests := []struct {
		name       string
		tls        bool
		proto      string
		trustProxy bool
		want       bool
	}{
		{name: "plain http", want: false},
		{name: "tls connection", tls: true, want: true},
		{name: "forwarded proto ignored without trust", proto: "https", want: false},
		{name: "forwarded proto https", proto: "https", trustProxy: true, want: true},
		{name: "forwarded proto case insensitive", proto: "HTTPS", trustProxy: true, want: true},
		{name: "forwarded proto first hop wins", proto: "https, http", trustProxy: true, want: true},
		{name: "forwarded proto http", proto: "http", trustProxy: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			if got := IsSecureRequest(req, tt.trustProxy); got != tt.want {
				t.Errorf("IsSecureRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}
