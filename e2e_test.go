package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// newTestServer serves the handler over TLS and signs every authorize
// request in as alice.
func newTestServer(t *testing.T) (*httptest.Server, context.Context) {
	t.Helper()
	h := newTestHandler(t)
	ts := httptest.NewTLSServer(h.Middleware(signInAs(t, h, "alice")))
	t.Cleanup(ts.Close)
	return ts, context.WithValue(context.Background(), oauth2.HTTPClient, ts.Client())
}

func clientConfig(ts *httptest.Server) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  testRedirectURI,
		Scopes:       []string{"read"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   ts.URL + "/oauth/authorize",
			TokenURL:  ts.URL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func TestE2E_AuthorizationCode(t *testing.T) {
	ts, ctx := newTestServer(t)
	conf := clientConfig(ts)

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := client.Get(conf.AuthCodeURL("state-1"))
	if err != nil {
		t.Fatalf("authorize request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("authorize status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location: %v", err)
	}
	if got := location.Query().Get("state"); got != "state-1" {
		t.Errorf("state = %q, want state-1", got)
	}

	tok, err := conf.Exchange(ctx, location.Query().Get("code"))
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if !tok.Valid() {
		t.Error("token is not valid")
	}
	if tok.Type() != "Bearer" {
		t.Errorf("Type() = %q, want Bearer", tok.Type())
	}
	if tok.RefreshToken == "" {
		t.Error("no refresh token issued")
	}
	if got := tok.Extra("scope"); got != "read" {
		t.Errorf("scope = %v, want read", got)
	}

	// the code is single use
	_, err = conf.Exchange(ctx, location.Query().Get("code"))
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) || rerr.ErrorCode != ErrorCodeInvalidGrant {
		t.Errorf("second Exchange() error = %v, want %s", err, ErrorCodeInvalidGrant)
	}

	refreshed, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	if err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == tok.RefreshToken {
		t.Errorf("refresh returned %+v, want new tokens", refreshed)
	}
}

func TestE2E_PasswordCredentials(t *testing.T) {
	ts, ctx := newTestServer(t)
	conf := clientConfig(ts)

	tok, err := conf.PasswordCredentialsToken(ctx, "alice", "wonderland")
	if err != nil {
		t.Fatalf("PasswordCredentialsToken() error = %v", err)
	}
	if tok.AccessToken == "" {
		t.Error("no access token issued")
	}

	_, err = conf.PasswordCredentialsToken(ctx, "alice", "wrong")
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) || rerr.ErrorCode != ErrorCodeInvalidGrant {
		t.Errorf("error = %v, want %s", err, ErrorCodeInvalidGrant)
	}
}

func TestE2E_ClientCredentials(t *testing.T) {
	ts, ctx := newTestServer(t)

	conf := &clientcredentials.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		TokenURL:     ts.URL + "/oauth/token",
		Scopes:       []string{"read", "write"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := conf.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got := tok.Extra("scope"); got != "read write" {
		t.Errorf("scope = %v, want read write", got)
	}

	conf.ClientSecret = "wrong"
	_, err = conf.Token(ctx)
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) || rerr.ErrorCode != ErrorCodeInvalidClient {
		t.Errorf("error = %v, want %s", err, ErrorCodeInvalidClient)
	}
}
