package jwtformat

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/giantswarm/oauth-server/internal/testutil"
	"github.com/giantswarm/oauth-server/ticket"
)

var testKey = []byte(strings.Repeat("k", 32))

func testTicket(now time.Time) *ticket.Ticket {
	tk := ticket.New(ticket.NewIdentity("Bearer",
		ticket.NewClaim(ticket.DefaultNameClaimType, "alice"),
		ticket.Claim{Type: "scope", Value: "read", ValueType: ticket.DefaultValueType, Issuer: "https://idp", OriginalIssuer: "https://up"},
	), nil)
	tk.Properties.SetIssuedUTC(now)
	tk.Properties.SetExpiresUTC(now.Add(time.Hour))
	tk.Properties.Set(ticket.PropertyClientID, "abc")
	return tk
}

func TestNew(t *testing.T) {
	if _, err := New(Config{Key: []byte("short")}); err == nil {
		t.Error("New() accepted a short key")
	}
	if _, err := New(Config{Key: testKey}); err != nil {
		t.Errorf("New() error = %v", err)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	clock := testutil.NewMockTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f, err := New(Config{Key: testKey, Issuer: "https://as.example.com", Now: clock.Now})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	in := testTicket(clock.Now())
	token, err := f.Protect(in)
	if err != nil {
		t.Fatalf("Protect() error = %v", err)
	}

	out, err := f.Unprotect(token)
	if err != nil {
		t.Fatalf("Unprotect() error = %v", err)
	}
	if out.Identity.Name() != "alice" {
		t.Errorf("Name() = %q, want %q", out.Identity.Name(), "alice")
	}
	if len(out.Identity.Claims) != 2 || out.Identity.Claims[1] != in.Identity.Claims[1] {
		t.Errorf("claims = %+v, want %+v", out.Identity.Claims, in.Identity.Claims)
	}
	if v, _ := out.Properties.Get(ticket.PropertyClientID); v != "abc" {
		t.Errorf("client_id = %q, want %q", v, "abc")
	}
	exp, _ := out.Properties.ExpiresUTC()
	if !exp.Equal(clock.Now().Add(time.Hour)) {
		t.Errorf("ExpiresUTC() = %v, want %v", exp, clock.Now().Add(time.Hour))
	}
}

func TestFormat_Rejects(t *testing.T) {
	clock := testutil.NewMockTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f, _ := New(Config{Key: testKey, Issuer: "https://as", Now: clock.Now})
	other, _ := New(Config{Key: []byte(strings.Repeat("o", 32)), Issuer: "https://as", Now: clock.Now})
	wrongIssuer, _ := New(Config{Key: testKey, Issuer: "https://evil", Now: clock.Now})

	valid, _ := f.Protect(testTicket(clock.Now()))
	foreign, _ := other.Protect(testTicket(clock.Now()))
	misissued, _ := wrongIssuer.Protect(testTicket(clock.Now()))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"exp": clock.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name    string
		token   string
		advance time.Duration
	}{
		{name: "garbage", token: "not.a.jwt"},
		{name: "wrong key", token: foreign},
		{name: "wrong issuer", token: misissued},
		{name: "alg none", token: none},
		{name: "expired", token: valid, advance: 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *clock
			c.Advance(tt.advance)
			f.now = c.Now
			if _, err := f.Unprotect(tt.token); !errors.Is(err, ticket.ErrInvalidTicket) {
				t.Errorf("Unprotect() error = %v, want ErrInvalidTicket", err)
			}
		})
	}
}

func TestFormat_RequiresExpiry(t *testing.T) {
	f, _ := New(Config{Key: testKey})
	if _, err := f.Protect(ticket.New(ticket.NewIdentity("Bearer"), nil)); err == nil {
		t.Error("Protect() accepted a ticket without expiry")
	}
}
