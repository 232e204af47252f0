package server_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/giantswarm/oauth-server/internal/testutil"
	"github.com/giantswarm/oauth-server/providers/mock"
	"github.com/giantswarm/oauth-server/server"
	"github.com/giantswarm/oauth-server/ticket"
)

// lookupAccessTokens resolves reference tokens from a table.
type lookupAccessTokens struct {
	server.NoTokenProvider
	tickets map[string]*ticket.Ticket
	err     error
}

func (p lookupAccessTokens) ReceiveToken(_ context.Context, _ ticket.Format, token string) (*ticket.Ticket, error) {
	return p.tickets[token], p.err
}

func TestValidateAccessToken(t *testing.T) {
	env := newTestEnv(t, mock.NewAcceptingProvider())
	accessToken := env.token(t, codeForm(env.issueCode(t, codeQuery()))).Response.AccessToken

	tk, err := env.srv.ValidateAccessToken(context.Background(), accessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if got := tk.Identity.Name(); got != "alice" {
		t.Errorf("subject = %q, want alice", got)
	}
	if got, _ := tk.Properties.Get(ticket.PropertyClientID); got != testClientID {
		t.Errorf("client_id = %q, want %q", got, testClientID)
	}

	for _, token := range []string{"", "not-a-token", accessToken + "x"} {
		if _, err := env.srv.ValidateAccessToken(context.Background(), token); !errors.Is(err, server.ErrInvalidAccessToken) {
			t.Errorf("ValidateAccessToken(%q) error = %v, want ErrInvalidAccessToken", token, err)
		}
	}

	env.clock.Advance(time.Hour + time.Second)
	if _, err := env.srv.ValidateAccessToken(context.Background(), accessToken); !errors.Is(err, server.ErrInvalidAccessToken) {
		t.Errorf("expired token error = %v, want ErrInvalidAccessToken", err)
	}
}

func TestValidateAccessToken_Provider(t *testing.T) {
	reference := testutil.NewTicket("bob", testClientID, testStart, time.Minute)

	t.Run("reference token", func(t *testing.T) {
		env := newTestEnv(t, mock.NewAcceptingProvider(), func(c *server.Config) {
			c.AccessTokenProvider = lookupAccessTokens{tickets: map[string]*ticket.Ticket{"ref-1": reference}}
		})

		tk, err := env.srv.ValidateAccessToken(context.Background(), "ref-1")
		if err != nil {
			t.Fatalf("ValidateAccessToken() error = %v", err)
		}
		if got := tk.Identity.Name(); got != "bob" {
			t.Errorf("subject = %q, want bob", got)
		}

		env.clock.Advance(2 * time.Minute)
		if _, err := env.srv.ValidateAccessToken(context.Background(), "ref-1"); !errors.Is(err, server.ErrInvalidAccessToken) {
			t.Errorf("expired reference token error = %v, want ErrInvalidAccessToken", err)
		}
	})

	t.Run("lookup failure", func(t *testing.T) {
		lookupErr := errors.New("token table unavailable")
		env := newTestEnv(t, mock.NewAcceptingProvider(), func(c *server.Config) {
			c.AccessTokenProvider = lookupAccessTokens{err: lookupErr}
		})

		if _, err := env.srv.ValidateAccessToken(context.Background(), "ref-1"); !errors.Is(err, lookupErr) {
			t.Errorf("error = %v, want %v", err, lookupErr)
		}
	})
}
