package server_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/giantswarm/oauth-server/internal/testutil"
	"github.com/giantswarm/oauth-server/server"
	storagemock "github.com/giantswarm/oauth-server/storage/mock"
	"github.com/giantswarm/oauth-server/ticket"
)

const (
	testClientID    = "abc"
	testRedirectURI = "https://cb.example.com/callback"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *server.Server
	clock *testutil.MockTime
	store *storagemock.MockTicketStore
}

func newTestEnv(t *testing.T, p server.Provider, opts ...func(*server.Config)) *testEnv {
	t.Helper()

	env := &testEnv{
		clock: testutil.NewMockTime(testStart),
		store: storagemock.NewMockTicketStore(),
	}
	config := &server.Config{
		Protector:              testutil.NewProtector(t),
		Clock:                  env.clock,
		AuthorizationCodeStore: env.store,
		RefreshTokenStore:      env.store,
	}
	for _, opt := range opts {
		opt(config)
	}

	srv, err := server.New(p, config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}
	env.srv = srv
	return env
}

func authorizeRequest(query url.Values) *http.Request {
	return httptest.NewRequest(http.MethodGet, "https://auth.example.com/oauth/authorize?"+query.Encode(), nil)
}

func codeQuery() url.Values {
	return url.Values{
		"response_type": {"code"},
		"client_id":     {testClientID},
		"redirect_uri":  {testRedirectURI},
		"state":         {"xyz"},
	}
}

func tokenRequest(form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "https://auth.example.com/oauth/token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func aliceIdentity() *ticket.Identity {
	return ticket.NewIdentity("Cookies", ticket.NewClaim(ticket.DefaultNameClaimType, "alice"))
}

// begin runs the first authorize phase and fails unless it was accepted.
func (e *testEnv) begin(t *testing.T, query url.Values) *server.PendingAuthorization {
	t.Helper()
	outcome := e.srv.BeginAuthorize(context.Background(), httptest.NewRecorder(), authorizeRequest(query))
	if !outcome.IsValidated() {
		t.Fatalf("BeginAuthorize() = %v, want validated", outcome.Result)
	}
	if outcome.Pending == nil {
		t.Fatal("BeginAuthorize() returned no pending authorization")
	}
	return outcome.Pending
}

// issueCode runs both authorize phases and returns the authorization code.
func (e *testEnv) issueCode(t *testing.T, query url.Values) string {
	t.Helper()
	pending := e.begin(t, query)
	completion, err := e.srv.CompleteAuthorize(context.Background(), nil, pending, aliceIdentity(), nil)
	if err != nil {
		t.Fatalf("CompleteAuthorize() error = %v", err)
	}
	if !completion.IsValidated() {
		t.Fatalf("CompleteAuthorize() = %v, want validated", completion.Result)
	}
	u, err := url.Parse(completion.Location)
	if err != nil {
		t.Fatalf("invalid location %q: %v", completion.Location, err)
	}
	code := u.Query().Get("code")
	if code == "" {
		t.Fatalf("location %q carries no code", completion.Location)
	}
	return code
}

func (e *testEnv) token(t *testing.T, form url.Values) server.TokenOutcome {
	t.Helper()
	outcome, err := e.srv.HandleTokenRequest(context.Background(), tokenRequest(form))
	if err != nil {
		t.Fatalf("HandleTokenRequest() error = %v", err)
	}
	return outcome
}
