// Package testutil provides testing utilities for the oauth-server module: a controllable
// clock, a throwaway protector, ticket fixtures and small assertion helpers.
package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/giantswarm/oauth-server/security"
	"github.com/giantswarm/oauth-server/ticket"
)

// MockTime provides a controllable time source for deterministic testing
type MockTime struct {
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.now = t
}

// NewProtector returns an AES protector with a fresh random key.
func NewProtector(t testing.TB) *security.AESProtector {
	t.Helper()
	key, err := security.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	p, err := security.NewAESProtector(key)
	if err != nil {
		t.Fatalf("NewAESProtector() error = %v", err)
	}
	return p
}

// NewTicket returns a ticket for the named subject expiring after ttl.
func NewTicket(subject, clientID string, now time.Time, ttl time.Duration) *ticket.Ticket {
	t := ticket.New(ticket.NewIdentity("Bearer", ticket.NewClaim(ticket.DefaultNameClaimType, subject)), nil)
	t.Properties.SetIssuedUTC(now)
	t.Properties.SetExpiresUTC(now.Add(ttl))
	if clientID != "" {
		t.Properties.Set(ticket.PropertyClientID, clientID)
	}
	return t
}

// GenerateRandomString generates a random base64-encoded string
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertEqual fails the test if got != want
func AssertEqual(t *testing.T, got, want any) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// HTTPRequest is a helper for making test HTTP requests
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Form    url.Values
}

// NewHTTPRequest creates a new HTTP request helper
func NewHTTPRequest(method, url string) *HTTPRequest {
	return &HTTPRequest{
		Method:  method,
		URL:     url,
		Headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *HTTPRequest) WithHeader(key, value string) *HTTPRequest {
	r.Headers[key] = value
	return r
}

// WithForm sets a form-encoded body
func (r *HTTPRequest) WithForm(form url.Values) *HTTPRequest {
	r.Form = form
	return r
}

// WithBasicAuth sets HTTP Basic credentials
func (r *HTTPRequest) WithBasicAuth(user, password string) *HTTPRequest {
	req := &http.Request{Header: http.Header{}}
	req.SetBasicAuth(user, password)
	return r.WithHeader("Authorization", req.Header.Get("Authorization"))
}

// Request builds the *http.Request. An https URL yields a request with TLS state.
func (r *HTTPRequest) Request() *http.Request {
	var req *http.Request
	if r.Form != nil {
		req = httptest.NewRequest(r.Method, r.URL, strings.NewReader(r.Form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(r.Method, r.URL, nil)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	return req
}

// Do executes the HTTP request
func (r *HTTPRequest) Do(handler http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, r.Request())
	return rr
}
